package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"github.com/teranos/doxa/display"
	"github.com/teranos/doxa/kb"
	"github.com/teranos/doxa/kb/parser"
	"github.com/teranos/doxa/sym"
	"github.com/teranos/doxa/version"
)

// ReplCmd starts an interactive session.
var ReplCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive session",
	Long: `Start an interactive session against the knowledge base.

Statements execute as typed. Lines starting with a colon are meta
commands; :help lists them.

Examples:
  doxa> LIKES(ALICE, BOB) = TRUE FROM 2024-01-01 TO 2024-02-01
  doxa> LIKES(ALICE, BOB) ? @ 2024-01-15
  doxa> CONTEXT MUTUAL: LIKES(ALICE, BOB) AND LIKES(BOB, ALICE)
  doxa> :infer
  doxa> :save world.json`,
	Args: cobra.NoArgs,
	RunE: runRepl,
}

const replHelp = `Statements
  TYPE(SUBJ, OBJ) = TRUE [FROM t TO t]   assert a fact
  TYPE(SUBJ, OBJ) ? [@ t | FROM t TO t]  query a fact
  CONTEXT NAME: expr                      define a context
  [NAME] ? [@ t]                          query a context
  IF pattern THEN conclusion              add a rule

Meta commands
  :help                 this text
  :stats                session counts
  :entities             list entities
  :relations            list relations
  :contexts             list contexts
  :rules                list rules
  :infer                run inference to fixpoint
  :save PATH            write a snapshot
  :load PATH            replace state from a snapshot
  :quit                 leave`

func runRepl(cmd *cobra.Command, args []string) error {
	sess, _, closer, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer closer()

	fmt.Printf("doxa %s interactive session. :help for commands, :quit to leave.\n", version.Get().Version)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("doxa> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ":") {
			quit, err := runMetaCommand(cmd, sess, line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		if err := executeLine(cmd, sess, line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

func executeLine(cmd *cobra.Command, sess *kb.Session, line string) error {
	stmt, err := parser.Parse(line)
	if err != nil {
		return err
	}
	op, err := parser.Compile(stmt)
	if err != nil {
		return err
	}
	res, err := sess.Execute(op)
	if err != nil {
		return err
	}
	return renderResult(cmd, res)
}

// runMetaCommand handles :commands. The bool result requests exit.
func runMetaCommand(cmd *cobra.Command, sess *kb.Session, line string) (bool, error) {
	words, err := shellquote.Split(strings.TrimPrefix(line, ":"))
	if err != nil {
		return false, err
	}
	if len(words) == 0 {
		return false, nil
	}

	switch words[0] {
	case "quit", "exit", "q":
		return true, nil

	case "help", "h":
		fmt.Println(replHelp)
		return false, nil

	case "stats":
		entities, relations, assertions, contextCount, ruleCount := sess.Stats()
		fmt.Printf("%d entities, %d relations, %d assertions, %d contexts, %d rules\n",
			entities, relations, assertions, contextCount, ruleCount)
		return false, nil

	case "entities":
		return false, display.RenderEntities(sess.Entities())

	case "relations":
		return false, display.RenderRelations(sess.Relations(), sess.Now())

	case "contexts":
		for _, name := range sess.ContextNames() {
			if node, err := sess.ResolveContext(name); err == nil {
				fmt.Printf("%s %s: %s\n", sym.Context, name, node)
			}
		}
		return false, nil

	case "rules":
		for _, r := range sess.Rules() {
			fmt.Printf("%s %s\n", sym.Rule, r.Name)
		}
		return false, nil

	case "infer":
		report, err := sess.Infer()
		if err != nil {
			return false, err
		}
		return false, display.RenderReport(report)

	case "save":
		if len(words) != 2 {
			return false, fmt.Errorf("usage: :save PATH")
		}
		if err := sess.SaveFile(words[1]); err != nil {
			return false, err
		}
		fmt.Printf("%s Saved to %s\n", sym.DB, words[1])
		return false, nil

	case "load":
		if len(words) != 2 {
			return false, fmt.Errorf("usage: :load PATH")
		}
		if err := sess.LoadFile(words[1]); err != nil {
			return false, err
		}
		fmt.Printf("%s Loaded from %s\n", sym.DB, words[1])
		return false, nil

	default:
		return false, fmt.Errorf("unknown command :%s (try :help)", words[0])
	}
}
