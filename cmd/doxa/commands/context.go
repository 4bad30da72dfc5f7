package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/doxa/display"
	"github.com/teranos/doxa/errors"
	"github.com/teranos/doxa/kb/parser"
	"github.com/teranos/doxa/sym"
)

// ContextCmd groups context subcommands.
var ContextCmd = &cobra.Command{
	Use:   "context",
	Short: sym.Context + " Manage named contexts",
	Long: sym.Context + ` context — Manage named context expressions

A context names a logical expression over facts. Queries reference it as
[NAME] and evaluate it at any instant or over any range.

Examples:
  doxa context define MUTUAL 'LIKES(ALICE, BOB) AND LIKES(BOB, ALICE)'
  doxa context define ANYDOG 'EXISTS($X): BARKS($X, MAILMAN)'
  doxa context ls
  doxa context rm MUTUAL`,
}

var contextDefineCmd = &cobra.Command{
	Use:   "define NAME EXPRESSION",
	Short: "Define or replace a named context",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runContextDefine,
}

var contextLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List contexts with their value now",
	Args:  cobra.NoArgs,
	RunE:  runContextLs,
}

var contextRmCmd = &cobra.Command{
	Use:   "rm NAME",
	Short: "Remove a context",
	Args:  cobra.ExactArgs(1),
	RunE:  runContextRm,
}

func init() {
	ContextCmd.AddCommand(contextDefineCmd)
	ContextCmd.AddCommand(contextLsCmd)
	ContextCmd.AddCommand(contextRmCmd)
}

func runContextDefine(cmd *cobra.Command, args []string) error {
	src := fmt.Sprintf("CONTEXT %s: %s", args[0], strings.Join(args[1:], " "))
	stmt, err := parser.Parse(src)
	if err != nil {
		return err
	}
	op, err := parser.Compile(stmt)
	if err != nil {
		return err
	}
	if _, ok := op.(parser.ContextOp); !ok {
		return errors.NewStructural("not a context definition: %s", src)
	}

	sess, _, closer, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer closer()

	res, err := sess.Execute(op)
	if err != nil {
		return err
	}
	return renderResult(cmd, res)
}

func runContextLs(cmd *cobra.Command, args []string) error {
	sess, _, closer, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer closer()

	names := sess.ContextNames()
	sort.Strings(names)

	if display.ShouldOutputJSON(cmd) {
		out := make([]map[string]any, 0, len(names))
		for _, name := range names {
			entry := map[string]any{"name": name}
			if node, err := sess.ResolveContext(name); err == nil {
				entry["expression"] = node.String()
			}
			if v, err := sess.EvalName(name, sess.Now()); err == nil {
				entry["value"] = v
			}
			out = append(out, entry)
		}
		return display.OutputJSON(out)
	}

	rows := pterm.TableData{{"Name", "Expression", "Now"}}
	for _, name := range names {
		expr := ""
		if node, err := sess.ResolveContext(name); err == nil {
			expr = node.String()
		}
		now := "-"
		if v, err := sess.EvalName(name, sess.Now()); err == nil {
			now = display.FormatTruth(v)
		}
		rows = append(rows, []string{name, expr, now})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func runContextRm(cmd *cobra.Command, args []string) error {
	sess, _, closer, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer closer()

	if err := sess.RemoveContext(args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed context %s\n", strings.ToUpper(args[0]))
	return nil
}
