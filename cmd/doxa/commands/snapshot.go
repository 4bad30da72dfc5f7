package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/doxa/kb/snapshot"
	"github.com/teranos/doxa/sym"
)

// SaveCmd writes a snapshot of the whole knowledge base.
var SaveCmd = &cobra.Command{
	Use:   "save PATH",
	Short: sym.DB + " Save a snapshot",
	Long: sym.DB + ` save — Write the knowledge base to a snapshot file

The snapshot carries entities, relations, assertions, contexts, and
rules. Derived facts are included with their inferred origin.

Examples:
  doxa save world.json`,
	Args: cobra.ExactArgs(1),
	RunE: runSave,
}

// LoadCmd replaces the knowledge base from a snapshot.
var LoadCmd = &cobra.Command{
	Use:   "load PATH|URL",
	Short: sym.DB + " Load a snapshot",
	Long: sym.DB + ` load — Replace the knowledge base from a snapshot

Accepts local paths and any go-getter source (https://, git::, s3::).
Loading replaces current session state and rewrites the database.

Examples:
  doxa load world.json
  doxa load https://example.com/worlds/base.json`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func runSave(cmd *cobra.Command, args []string) error {
	sess, _, closer, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer closer()

	if err := sess.SaveFile(args[0]); err != nil {
		return err
	}

	entities, relations, assertions, contextCount, ruleCount := sess.Stats()
	fmt.Printf("Saved %d entities, %d relations, %d assertions, %d contexts, %d rules to %s\n",
		entities, relations, assertions, contextCount, ruleCount, args[0])
	return nil
}

func runLoad(cmd *cobra.Command, args []string) error {
	src, err := snapshot.Fetch(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer src.Cleanup()

	sess, _, closer, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer closer()

	if err := sess.LoadFile(src.LocalPath); err != nil {
		return err
	}

	entities, relations, assertions, contextCount, ruleCount := sess.Stats()
	fmt.Printf("Loaded %d entities, %d relations, %d assertions, %d contexts, %d rules from %s\n",
		entities, relations, assertions, contextCount, ruleCount, args[0])
	return nil
}
