package commands

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/doxa/display"
	"github.com/teranos/doxa/errors"
	"github.com/teranos/doxa/internal/httpclient"
	"github.com/teranos/doxa/kb/storage"
	"github.com/teranos/doxa/kb/truth"
	"github.com/teranos/doxa/sym"
)

// WatchCmd groups watcher subcommands.
var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: sym.Watch + " Manage standing watchers",
	Long: sym.Watch + ` watch — React to committed truth changes

A watcher matches committed assertions against a glob pattern and fires
an action: log, webhook, or an inference run. The server evaluates
watchers live; this command manages their definitions.

Examples:
  doxa watch add alerts --type 'ALARM_*' --state TRUE --action webhook --target https://ops.example.com/hook
  doxa watch add chatter --subject 'FIDO' --action log --rate 10
  doxa watch ls
  doxa watch disable <id>
  doxa watch rm <id>`,
}

var (
	watchSubjectFlag string
	watchTypeFlag    string
	watchObjectFlag  string
	watchStateFlag   string
	watchActionFlag  string
	watchTargetFlag  string
	watchRateFlag    int
)

var watchAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Create a watcher",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatchAdd,
}

var watchLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List watchers",
	Args:  cobra.NoArgs,
	RunE:  runWatchLs,
}

var watchRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a watcher",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatchRm,
}

var watchEnableCmd = &cobra.Command{
	Use:   "enable ID",
	Short: "Enable a watcher",
	Args:  cobra.ExactArgs(1),
	RunE:  makeWatchToggle(true),
}

var watchDisableCmd = &cobra.Command{
	Use:   "disable ID",
	Short: "Disable a watcher",
	Args:  cobra.ExactArgs(1),
	RunE:  makeWatchToggle(false),
}

func init() {
	watchAddCmd.Flags().StringVar(&watchSubjectFlag, "subject", "", "Subject glob (empty matches any)")
	watchAddCmd.Flags().StringVar(&watchTypeFlag, "type", "", "Relation type glob (empty matches any)")
	watchAddCmd.Flags().StringVar(&watchObjectFlag, "object", "", "Object glob (empty matches any)")
	watchAddCmd.Flags().StringVar(&watchStateFlag, "state", "", "Required truth state (TRUE, FALSE, UNKNOWN, SUPERPOSITION)")
	watchAddCmd.Flags().StringVar(&watchActionFlag, "action", "log", "Action: log, webhook, or infer")
	watchAddCmd.Flags().StringVar(&watchTargetFlag, "target", "", "Webhook URL (action=webhook)")
	watchAddCmd.Flags().IntVar(&watchRateFlag, "rate", 6, "Max fires per minute (0 matches but never fires)")

	WatchCmd.AddCommand(watchAddCmd)
	WatchCmd.AddCommand(watchLsCmd)
	WatchCmd.AddCommand(watchRmCmd)
	WatchCmd.AddCommand(watchEnableCmd)
	WatchCmd.AddCommand(watchDisableCmd)
}

func runWatchAdd(cmd *cobra.Command, args []string) error {
	action := storage.ActionType(watchActionFlag)
	switch action {
	case storage.ActionLog, storage.ActionWebhook, storage.ActionInfer:
	default:
		return errors.Newf("unknown action %q (want log, webhook, or infer)", watchActionFlag)
	}
	if action == storage.ActionWebhook {
		if watchTargetFlag == "" {
			return errors.New("webhook action requires --target")
		}
		if err := httpclient.ValidateURL(watchTargetFlag, httpclient.Options{}); err != nil {
			return errors.Wrap(err, "webhook target rejected")
		}
	}

	pattern := storage.Pattern{
		Subject: watchSubjectFlag,
		Type:    watchTypeFlag,
		Object:  watchObjectFlag,
	}
	if watchStateFlag != "" {
		state, err := truth.ParseState(watchStateFlag)
		if err != nil {
			return err
		}
		pattern.State = &state
	}

	database, err := openDatabase(resolveDBPath(cmd))
	if err != nil {
		return err
	}
	defer database.Close()

	w := &storage.Watcher{
		Name:          args[0],
		Pattern:       pattern,
		Action:        action,
		Target:        watchTargetFlag,
		RatePerMinute: watchRateFlag,
		Enabled:       true,
	}
	if err := storage.NewWatcherStore(database).Create(cmd.Context(), w); err != nil {
		return err
	}

	fmt.Printf("Created watcher %s (%s)\n", w.Name, w.ID)
	return nil
}

func runWatchLs(cmd *cobra.Command, args []string) error {
	database, err := openDatabase(resolveDBPath(cmd))
	if err != nil {
		return err
	}
	defer database.Close()

	watchers, err := storage.NewWatcherStore(database).List(cmd.Context(), false)
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(watchers)
	}

	rows := pterm.TableData{{"ID", "Name", "Pattern", "Action", "Rate/min", "Enabled", "Fires", "Last Fired"}}
	for _, w := range watchers {
		lastFired := "-"
		if w.LastFiredAt != nil {
			lastFired = w.LastFiredAt.Format(time.RFC3339)
		}
		rows = append(rows, []string{
			w.ID,
			w.Name,
			formatPattern(w.Pattern),
			string(w.Action),
			fmt.Sprintf("%d", w.RatePerMinute),
			fmt.Sprintf("%t", w.Enabled),
			fmt.Sprintf("%d", w.FireCount),
			lastFired,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func runWatchRm(cmd *cobra.Command, args []string) error {
	database, err := openDatabase(resolveDBPath(cmd))
	if err != nil {
		return err
	}
	defer database.Close()

	if err := storage.NewWatcherStore(database).Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed watcher %s\n", args[0])
	return nil
}

func makeWatchToggle(enabled bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase(resolveDBPath(cmd))
		if err != nil {
			return err
		}
		defer database.Close()

		store := storage.NewWatcherStore(database)
		w, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		w.Enabled = enabled
		if err := store.Update(cmd.Context(), w); err != nil {
			return err
		}

		verb := "Disabled"
		if enabled {
			verb = "Enabled"
		}
		fmt.Printf("%s watcher %s\n", verb, w.Name)
		return nil
	}
}

func formatPattern(p storage.Pattern) string {
	orAny := func(s string) string {
		if s == "" {
			return "*"
		}
		return s
	}
	s := fmt.Sprintf("%s(%s, %s)", orAny(p.Type), orAny(p.Subject), orAny(p.Object))
	if p.State != nil {
		s += "=" + p.State.String()
	}
	return s
}
