package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/doxa/display"
	"github.com/teranos/doxa/kb/truth"
)

// RelationCmd groups relation subcommands.
var RelationCmd = &cobra.Command{
	Use:   "relation",
	Short: "Manage relations",
	Long: `Manage typed relations between entities.

A relation is TYPE(SUBJECT, OBJECT) with a default truth value that
answers queries at instants no assertion covers.

Examples:
  doxa relation add LIKES ALICE BOB
  doxa relation add OWNS ALICE FIDO --default TRUE
  doxa relation ls
  doxa relation rm LIKES ALICE BOB`,
}

var relationDefaultFlag string

var relationAddCmd = &cobra.Command{
	Use:   "add TYPE SUBJECT OBJECT",
	Short: "Create a relation",
	Args:  cobra.ExactArgs(3),
	RunE:  runRelationAdd,
}

var relationRmCmd = &cobra.Command{
	Use:   "rm TYPE SUBJECT OBJECT",
	Short: "Remove a relation and its assertions",
	Args:  cobra.ExactArgs(3),
	RunE:  runRelationRm,
}

var relationLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List relations with their value now",
	Args:  cobra.NoArgs,
	RunE:  runRelationLs,
}

func init() {
	relationAddCmd.Flags().StringVar(&relationDefaultFlag, "default", "UNKNOWN", "Default truth value (TRUE, FALSE, UNKNOWN, MAYBE(w))")

	RelationCmd.AddCommand(relationAddCmd)
	RelationCmd.AddCommand(relationRmCmd)
	RelationCmd.AddCommand(relationLsCmd)
}

func runRelationAdd(cmd *cobra.Command, args []string) error {
	def, err := truth.ParseValue(relationDefaultFlag)
	if err != nil {
		return err
	}

	sess, _, closer, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer closer()

	rel, err := sess.CreateRelation(args[1], args[0], args[2], def)
	if err != nil {
		return err
	}
	fmt.Printf("Created relation %s\n", rel.Key)
	return nil
}

func runRelationRm(cmd *cobra.Command, args []string) error {
	sess, _, closer, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer closer()

	if err := sess.RemoveRelation(args[1], args[0], args[2]); err != nil {
		return err
	}
	fmt.Println("Removed relation")
	return nil
}

func runRelationLs(cmd *cobra.Command, args []string) error {
	sess, _, closer, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer closer()

	relations := sess.Relations()
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(relations)
	}
	return display.RenderRelations(relations, sess.Now())
}
