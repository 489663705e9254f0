package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"goldref/internal/domain"
	"goldref/internal/ui"
)

// ReportCommand handles the report command
type ReportCommand struct {
	env *Env
}

// Execute runs the command
func (rc *ReportCommand) Execute(cmd *cobra.Command, args []string) error {
	run, err := rc.env.Storage.Load()
	if err != nil {
		return err
	}

	if id := rc.env.Config.Flags.Case; id != "" {
		for _, o := range run.Details {
			if o.CaseID == id {
				rc.env.Formatter.PrintOutcome(o)
				return nil
			}
		}
		return fmt.Errorf("case %s in last run: %w", id, domain.ErrNotFound)
	}

	var viewer ui.Viewer = ui.NewReportViewer(rc.env.Storage)
	return viewer.View(run)
}
