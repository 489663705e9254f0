package commands

import (
	"context"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"goldref/internal/domain"
	"goldref/internal/execution"
)

// CaptureCommand handles the capture command
type CaptureCommand struct {
	env *Env
}

// Execute runs the command
func (cc *CaptureCommand) Execute(cmd *cobra.Command, args []string) error {
	cases, err := cc.env.selectCases()
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		color.Yellow("No cases to capture")
		return nil
	}

	flags := cc.env.Config.Flags
	opts := execution.CaptureOptions{Overwrite: flags.Overwrite, Verify: flags.Verify}
	cc.env.Log.Info("capturing baselines", "cases", len(cases), "mode", cc.env.Config.Mode,
		"baselines", cc.env.Baselines.Root(), "overwrite", opts.Overwrite, "verify", opts.Verify)

	ctx := cmd.Context()
	run, err := cc.env.batch(len(cases), "Capturing", func(r *execution.Runner) (*domain.RunOutput, error) {
		return r.Capture(ctx, cases, opts)
	})
	if run == nil {
		return err
	}

	cc.env.record(context.WithoutCancel(ctx), run)
	if err != nil {
		return err
	}
	cc.env.Formatter.PrintSummary(run)
	return failedError(run)
}
