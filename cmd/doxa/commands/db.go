package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/doxa/display"
	"github.com/teranos/doxa/kb/storage"
	"github.com/teranos/doxa/logger"
	"github.com/teranos/doxa/sym"
)

// DbCmd groups database subcommands.
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: sym.DB + " Manage the doxa database",
	Long: sym.DB + ` db — Database operations

Examples:
  doxa db init                    # Create and migrate the database
  doxa db stats                   # Show table counts and size`,
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database and run migrations",
	Args:  cobra.NoArgs,
	RunE:  runDbInit,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	Args:  cobra.NoArgs,
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbInitCmd)
	DbCmd.AddCommand(dbStatsCmd)
}

func runDbInit(cmd *cobra.Command, args []string) error {
	path := resolveDBPath(cmd)
	database, err := openDatabase(path)
	if err != nil {
		return err
	}
	defer database.Close()

	fmt.Printf("%s Database ready at %s\n", sym.DB, path)
	return nil
}

func runDbStats(cmd *cobra.Command, args []string) error {
	path := resolveDBPath(cmd)
	database, err := openDatabase(path)
	if err != nil {
		return err
	}
	defer database.Close()

	stats, err := storage.NewSQLStore(database, logger.Logger).Stats()
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(stats)
	}

	fmt.Printf("%s Database Statistics\n", sym.DB)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	fmt.Printf("Database Path: %s\n", path)
	fmt.Printf("Size:          %d bytes\n", stats.SizeBytes)
	fmt.Println()
	fmt.Printf("Entities:      %d\n", stats.Entities)
	fmt.Printf("Relations:     %d\n", stats.Relations)
	fmt.Printf("Assertions:    %d\n", stats.Assertions)
	fmt.Printf("Contexts:      %d\n", stats.Contexts)
	fmt.Printf("Rules:         %d\n", stats.Rules)
	fmt.Printf("Watchers:      %d\n", stats.Watchers)

	if stats.System.MemoryTotalBytes > 0 {
		fmt.Println()
		fmt.Printf("Host Memory:   %d / %d bytes available\n",
			stats.System.MemoryAvailableBytes, stats.System.MemoryTotalBytes)
	}
	return nil
}
