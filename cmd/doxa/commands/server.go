package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teranos/doxa/am"
	"github.com/teranos/doxa/errors"
	"github.com/teranos/doxa/kb"
	"github.com/teranos/doxa/kb/watch"
	"github.com/teranos/doxa/logger"
	"github.com/teranos/doxa/server"
	"github.com/teranos/doxa/sym"
)

// ServerCmd starts the graph server.
var ServerCmd = &cobra.Command{
	Use:     "server",
	Aliases: []string{"serve"},
	Short:   sym.Graph + " Start the live graph server",
	Long: sym.Graph + ` server — Serve the knowledge graph over HTTP and websocket

Connected clients receive the graph on connect and a rebuilt graph after
every mutation. Statements sent over the socket execute against the live
session. When watching is enabled, watchers fire on committed changes.

Examples:
  doxa server
  doxa server --port 9944
  doxa server --db tmp/scratch.db`,
	RunE: runServer,
}

var serverPortFlag int

func init() {
	ServerCmd.Flags().IntVar(&serverPortFlag, "port", 0, "Listen port (overrides config)")
}

func runServer(cmd *cobra.Command, args []string) error {
	verbosity, _ := cmd.Flags().GetCount("verbose")
	if verbosity == 0 {
		verbosity = 1
	}

	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	port := cfg.ServerPort()
	if serverPortFlag != 0 {
		port = serverPortFlag
	}

	dbPath := resolveDBPath(cmd)
	database, err := openDatabase(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	sess, err := sessionFromDB(database, cfg)
	if err != nil {
		return err
	}

	srv := server.NewServer(sess, logger.Logger)

	sinks := kb.MultiSink{srv}
	var engine *watch.Engine
	if cfg.Watch.Enabled {
		engine = watch.NewEngine(database, sess, logger.Logger)
		if err := engine.Start(); err != nil {
			return errors.Wrap(err, "failed to start watch engine")
		}
		defer engine.Stop()
		sinks = append(sinks, engine)
	}
	sess.SetSink(sinks)

	addr := fmt.Sprintf("localhost:%d", port)
	printStartupBanner(verbosity, dbPath, addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Infow("Shutting down")
		srv.Shutdown()
	}()

	return srv.Run(addr)
}
