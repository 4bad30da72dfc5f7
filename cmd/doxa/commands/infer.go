package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/doxa/display"
	"github.com/teranos/doxa/sym"
)

// InferCmd runs the rule set to fixpoint.
var InferCmd = &cobra.Command{
	Use:   "infer",
	Short: sym.Infer + " Run inference to fixpoint",
	Long: sym.Infer + ` infer — Apply every rule until nothing new derives

Derived facts persist with an inferred origin and stay visible to later
queries. The report lists each derivation, contradictions where a rule
concluded against asserted evidence, and whether a budget cut the run
short.

Examples:
  doxa infer
  doxa infer --json`,
	Args: cobra.NoArgs,
	RunE: runInfer,
}

func runInfer(cmd *cobra.Command, args []string) error {
	sess, _, closer, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer closer()

	report, err := sess.Infer()
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(report)
	}
	return display.RenderReport(report)
}
