package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teranos/doxa/display"
	"github.com/teranos/doxa/errors"
)

// EntityCmd groups entity subcommands.
var EntityCmd = &cobra.Command{
	Use:   "entity",
	Short: "Manage entities",
	Long: `Manage the entities facts are about.

Entities are upper-case identifiers created explicitly here or implicitly
by asserting facts that name them. Parents build an inheritance hierarchy
used by the IS sugar and hierarchy inference.

Examples:
  doxa entity add FIDO --attr species=dog --note "the good boy"
  doxa entity add FIDO --parent DOG
  doxa entity ls
  doxa entity rm FIDO`,
}

var (
	entityAttrFlags   []string
	entityParentFlags []string
	entityNoteFlag    string
)

var entityAddCmd = &cobra.Command{
	Use:   "add ID",
	Short: "Create an entity",
	Args:  cobra.ExactArgs(1),
	RunE:  runEntityAdd,
}

var entityRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Remove an entity and its relations",
	Args:  cobra.ExactArgs(1),
	RunE:  runEntityRm,
}

var entityLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List entities",
	Args:  cobra.NoArgs,
	RunE:  runEntityLs,
}

func init() {
	entityAddCmd.Flags().StringArrayVar(&entityAttrFlags, "attr", nil, "Attribute as key=value (repeatable)")
	entityAddCmd.Flags().StringArrayVar(&entityParentFlags, "parent", nil, "Parent entity (repeatable)")
	entityAddCmd.Flags().StringVar(&entityNoteFlag, "note", "", "Free-form note")

	EntityCmd.AddCommand(entityAddCmd)
	EntityCmd.AddCommand(entityRmCmd)
	EntityCmd.AddCommand(entityLsCmd)
}

func runEntityAdd(cmd *cobra.Command, args []string) error {
	sess, _, closer, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer closer()

	attrs, err := parseAttrFlags(entityAttrFlags)
	if err != nil {
		return err
	}

	entity, err := sess.CreateEntity(args[0], attrs)
	if err != nil {
		return err
	}
	for _, parent := range entityParentFlags {
		if err := sess.AddParent(string(entity.ID), parent); err != nil {
			return err
		}
	}
	if entityNoteFlag != "" {
		if err := sess.SetNote(string(entity.ID), entityNoteFlag); err != nil {
			return err
		}
	}

	fmt.Printf("Created entity %s\n", entity.ID)
	return nil
}

func runEntityRm(cmd *cobra.Command, args []string) error {
	sess, _, closer, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer closer()

	if err := sess.RemoveEntity(args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed entity %s\n", strings.ToUpper(args[0]))
	return nil
}

func runEntityLs(cmd *cobra.Command, args []string) error {
	sess, _, closer, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer closer()

	entities := sess.Entities()
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(entities)
	}
	return display.RenderEntities(entities)
}

func parseAttrFlags(flags []string) (map[string]string, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	attrs := make(map[string]string, len(flags))
	for _, raw := range flags {
		key, value, ok := strings.Cut(raw, "=")
		if !ok || key == "" {
			return nil, errors.Newf("invalid attribute %q (want key=value)", raw)
		}
		attrs[key] = value
	}
	return attrs, nil
}
