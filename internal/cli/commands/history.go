package commands

import (
	"github.com/spf13/cobra"
)

// HistoryCommand handles the history command
type HistoryCommand struct {
	env *Env
}

// Execute runs the command
func (hc *HistoryCommand) Execute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := hc.env.openHistory(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	flags := hc.env.Config.Flags
	entries, err := store.Recent(ctx, flags.Case, flags.Limit)
	if err != nil {
		return err
	}
	hc.env.Formatter.PrintHistory(entries)
	return nil
}
