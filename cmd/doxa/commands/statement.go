package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teranos/doxa/display"
	"github.com/teranos/doxa/errors"
	"github.com/teranos/doxa/kb"
	"github.com/teranos/doxa/kb/parser"
	"github.com/teranos/doxa/sym"
)

// AssertCmd executes an assertion statement.
var AssertCmd = &cobra.Command{
	Use:   "assert STATEMENT",
	Short: sym.Assert + " Assert facts",
	Long: sym.Assert + ` assert — Assert facts into the knowledge base

Statements use the surface syntax. Entities and relations are created on
first mention. A window scopes the truth in time; without one the value
becomes the relation's default.

Examples:
  doxa assert 'LIKES(ALICE, BOB) = TRUE'
  doxa assert 'LIKES(ALICE, BOB) = TRUE FROM 2024-01-01 TO 2024-02-01'
  doxa assert 'FIDO IS DOG = TRUE'
  doxa assert 'FORALL($X): BREATHES($X, AIR) = TRUE'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAssert,
}

// QueryCmd executes a query statement.
var QueryCmd = &cobra.Command{
	Use:   "query STATEMENT",
	Short: sym.Query + " Query truth values",
	Long: sym.Query + ` query — Ask for a truth value at a point or over a range

Point queries answer at an instant (default: now). Range queries return
the partition of the window into maximal segments of constant truth.

Examples:
  doxa query 'LIKES(ALICE, BOB) ?'
  doxa query 'LIKES(ALICE, BOB) ? @ 2024-01-15'
  doxa query 'LIKES(ALICE, BOB) ? FROM 2024-01-01 TO 2024-03-01'
  doxa query '[MUTUAL] ? @ 2024-01-15'
  doxa query 'NOT LIKES(ALICE, BOB) AND LIKES(BOB, ALICE) ?'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func runAssert(cmd *cobra.Command, args []string) error {
	src := strings.Join(args, " ")
	stmt, err := parser.Parse(src)
	if err != nil {
		return err
	}
	op, err := parser.Compile(stmt)
	if err != nil {
		return err
	}
	if _, ok := op.(parser.AssertOp); !ok {
		return errors.NewStructural("not an assertion: %s (use doxa query for queries)", src)
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

func runQuery(cmd *cobra.Command, args []string) error {
	src := strings.Join(args, " ")
	op, err := compileQuery(src)
	if err != nil {
		return err
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

// compileQuery parses src, appending the query marker when the user
// left it off.
func compileQuery(src string) (parser.Op, error) {
	stmt, err := parser.Parse(src)
	if err != nil && !strings.Contains(src, "?") {
		stmt, err = parser.Parse(src + " ?")
	}
	if err != nil {
		return nil, err
	}
	op, err := parser.Compile(stmt)
	if err != nil {
		return nil, err
	}
	if _, ok := op.(parser.QueryOp); !ok {
		return nil, errors.NewStructural("not a query: %s", src)
	}
	return op, nil
}

// renderResult prints the outcome of one executed statement.
func renderResult(cmd *cobra.Command, res *kb.Result) error {
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(res)
	}

	switch {
	case res.Value != nil:
		fmt.Printf("%s %s\n", sym.ForValue(*res.Value), display.FormatTruth(*res.Value))
	case res.Segments != nil:
		return display.RenderSegments(res.Segments)
	case len(res.Asserted) > 0:
		for _, f := range res.Asserted {
			fmt.Printf("%s %s\n", sym.Assert, f)
		}
		fmt.Printf("%s %s\n", sym.Clock, res.Window)
	case res.Context != "":
		fmt.Printf("%s Defined context %s\n", sym.Context, res.Context)
	case res.Rule != "":
		fmt.Printf("%s Added rule %s\n", sym.Rule, res.Rule)
	default:
		fmt.Println("ok")
	}
	return nil
}
