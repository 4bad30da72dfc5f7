package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/doxa/display"
	"github.com/teranos/doxa/kb/inference"
	"github.com/teranos/doxa/sym"
)

// RulesCmd groups rule subcommands.
var RulesCmd = &cobra.Command{
	Use:   "rules",
	Short: sym.Rule + " Manage inference rules",
	Long: sym.Rule + ` rules — Manage the inference rule set

Rules load from TOML files or arrive as IF/THEN statements. Loaded rules
persist with the knowledge base and fire on every inference run.

Examples:
  doxa rules ls
  doxa rules load friendship.toml
  doxa rules load ./rules/            # every .toml file in the directory
  doxa rules rm friends-know`,
}

var rulesLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List rules in firing order",
	Args:  cobra.NoArgs,
	RunE:  runRulesLs,
}

var rulesLoadCmd = &cobra.Command{
	Use:   "load PATH",
	Short: "Load rules from a TOML file or directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesLoad,
}

var rulesRmCmd = &cobra.Command{
	Use:   "rm NAME",
	Short: "Remove a rule by name",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesRm,
}

func init() {
	RulesCmd.AddCommand(rulesLsCmd)
	RulesCmd.AddCommand(rulesLoadCmd)
	RulesCmd.AddCommand(rulesRmCmd)
}

func runRulesLs(cmd *cobra.Command, args []string) error {
	sess, _, closer, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer closer()

	rules := sess.Rules()
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(rules)
	}

	rows := pterm.TableData{{"Name", "When", "Then"}}
	for _, r := range rules {
		when := make([]string, len(r.When))
		for i, p := range r.When {
			when[i] = p.String()
		}
		rows = append(rows, []string{r.Name, strings.Join(when, " AND "), r.Then.String()})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func runRulesLoad(cmd *cobra.Command, args []string) error {
	sess, _, closer, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer closer()

	info, err := os.Stat(args[0])
	if err != nil {
		return err
	}

	var loaded []inference.Rule
	if info.IsDir() {
		loaded, err = sess.LoadRuleDir(args[0])
	} else {
		loaded, err = sess.LoadRuleFile(args[0])
	}
	if err != nil {
		return err
	}

	fmt.Printf("Loaded %d rules from %s\n", len(loaded), args[0])
	return nil
}

func runRulesRm(cmd *cobra.Command, args []string) error {
	sess, _, closer, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer closer()

	if err := sess.RemoveRule(args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed rule %s\n", args[0])
	return nil
}
