package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/doxa/cmd/doxa/commands"
	"github.com/teranos/doxa/logger"
)

var rootCmd = &cobra.Command{
	Use:   "doxa",
	Short: "doxa - temporal knowledge and reasoning engine",
	Long: `doxa - Temporal knowledge base with four-state truth.

Facts are relations between entities, true or false over time windows,
with UNKNOWN for absent evidence and weighted SUPERPOSITION in between.
Named contexts combine facts with logical connectives, rules derive new
facts, and every answer can be asked at a point or over a range.

Examples:
  doxa assert 'LIKES(ALICE, BOB) = TRUE FROM 2024-01-01 TO 2024-02-01'
  doxa query 'LIKES(ALICE, BOB) ? @ 2024-01-15'
  doxa context define MUTUAL 'LIKES(ALICE, BOB) AND LIKES(BOB, ALICE)'
  doxa infer                  # run rules to fixpoint
  doxa repl                   # interactive session
  doxa server                 # live graph over websocket`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		level := logger.VerbosityToLevel(verbosity)
		if err := logger.InitializeWithLevel(false, level); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json", false, "Output results as JSON")
	rootCmd.PersistentFlags().String("db", "", "Database path (overrides config)")

	rootCmd.AddCommand(commands.EntityCmd)
	rootCmd.AddCommand(commands.RelationCmd)
	rootCmd.AddCommand(commands.AssertCmd)
	rootCmd.AddCommand(commands.QueryCmd)
	rootCmd.AddCommand(commands.ContextCmd)
	rootCmd.AddCommand(commands.InferCmd)
	rootCmd.AddCommand(commands.RulesCmd)
	rootCmd.AddCommand(commands.SaveCmd)
	rootCmd.AddCommand(commands.LoadCmd)
	rootCmd.AddCommand(commands.ReplCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.ServerCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
