package commands

import (
	"fmt"

	"github.com/teranos/doxa/logger"
	"github.com/teranos/doxa/sym"
	"github.com/teranos/doxa/version"
)

// printStartupBanner prints the user-friendly startup message
func printStartupBanner(verbosity int, dbPath, addr string) {
	cyan := "\033[36m"
	green := "\033[32m"
	yellow := "\033[33m"
	blue := "\033[34m"
	bold := "\033[1m"
	reset := "\033[0m"

	versionInfo := version.Get()

	fmt.Printf("\n%s%s", cyan, bold)
	fmt.Printf("   ╔══════════════════════════════════════════════╗\n")
	fmt.Printf("   ║                                              ║\n")
	fmt.Printf("   ║   ██████▄   ▄████▄  ██   ██  ▄█████▄         ║\n")
	fmt.Printf("   ║   ██    ██ ██    ██  ██ ██   ██   ██         ║\n")
	fmt.Printf("   ║   ██    ██ ██    ██   ███    ███████         ║\n")
	fmt.Printf("   ║   ██    ██ ██    ██  ██ ██   ██   ██         ║\n")
	fmt.Printf("   ║   ██████▀   ▀████▀  ██   ██  ██   ██         ║\n")
	fmt.Printf("   ║                                              ║\n")
	fmt.Printf("   ║   %s Assert  %s Query  %s Infer  %s Graph         ║\n",
		sym.Assert, sym.Query, sym.Infer, sym.Graph)
	fmt.Printf("   ║                                              ║\n")
	fmt.Printf("   ╚══════════════════════════════════════════════╝%s\n\n", reset)

	fmt.Printf("%s%s┌─ doxa Info ─────────────────────────────────────┐%s\n", green, bold, reset)
	fmt.Printf("%s│%s Version:   %s (commit %s)\n", green, reset, versionInfo.Version, versionInfo.Short())
	fmt.Printf("%s│%s Built:     %s\n", green, reset, versionInfo.BuildTime)
	fmt.Printf("%s│%s Verbosity: %s\n", green, reset, logger.LevelName(verbosity))
	if dbPath != "" {
		fmt.Printf("%s│%s Database:  %s\n", green, reset, dbPath)
	}
	if addr != "" {
		fmt.Printf("%s│%s Listening: http://%s\n", green, reset, addr)
	}
	fmt.Printf("%s└─────────────────────────────────────────────────┘%s\n", green, reset)

	fmt.Printf("\n%s%s✨ Connect a websocket client to watch the graph react%s\n", yellow, bold, reset)
	fmt.Printf("%s💡 Press Ctrl+C to stop%s\n\n", blue, reset)
}
