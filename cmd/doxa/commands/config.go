package commands

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/teranos/doxa/am"
	"github.com/teranos/doxa/display"
	"github.com/teranos/doxa/errors"
)

// ConfigCmd groups configuration subcommands.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage doxa configuration",
	Long: `Manage doxa configuration.

Configuration merges system, user, and project TOML files, with DOXA_*
environment variables on top. Writes go to the user config file and keep
rotating backups.

Examples:
  doxa config show
  doxa config path
  doxa config set database.path /data/facts.db
  doxa config set ontology.overlap_policy replace`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the user config file location",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Persist a setting to the user config",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

func init() {
	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configPathCmd)
	ConfigCmd.AddCommand(configSetCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cfg)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path, err := am.UserConfigPath()
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	var err error
	switch key {
	case "database.path":
		err = am.UpdateDatabasePath(value)
	case "ontology.overlap_policy":
		err = am.UpdateOverlapPolicy(value)
	case "inference.rules_dir":
		err = am.UpdateRulesDir(value)
	default:
		return errors.Newf("unsupported key %q (settable: database.path, ontology.overlap_policy, inference.rules_dir)", key)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Set %s = %s\n", key, value)
	return nil
}
