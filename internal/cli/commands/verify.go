package commands

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"goldref/internal/compare"
	"goldref/internal/domain"
	"goldref/internal/execution"
)

// VerifyCommand handles the verify command
type VerifyCommand struct {
	env *Env
}

// Execute runs the command
func (vc *VerifyCommand) Execute(cmd *cobra.Command, args []string) error {
	cases, err := vc.env.selectCases()
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		color.Yellow("No cases to verify")
		return nil
	}

	tol, err := compare.ParseTolerance(vc.env.Config.Tolerance)
	if err != nil {
		vc.env.Log.Warn("invalid tolerance, using default", "tolerance", vc.env.Config.Tolerance, "default", compare.Normal.Name, "error", err)
		tol = compare.Normal
	}
	vc.env.Log.Info("verifying against baselines", "cases", len(cases), "tolerance", tol.String(), "mode", vc.env.Config.Mode)

	ctx := cmd.Context()
	run, err := vc.env.batch(len(cases), "Verifying", func(r *execution.Runner) (*domain.RunOutput, error) {
		return r.Verify(ctx, cases, tol)
	})
	if run == nil {
		return err
	}

	// An interrupted run still keeps the cases it finished.
	saveErr := vc.env.Storage.Save(run)
	vc.env.record(context.WithoutCancel(ctx), run)
	if err != nil {
		if saveErr != nil {
			vc.env.Log.Warn("failed to save partial verification results", "error", saveErr)
		}
		return err
	}
	if saveErr != nil {
		return fmt.Errorf("failed to save verification results: %w", saveErr)
	}

	vc.env.Formatter.PrintSummary(run)
	if vc.env.Config.Flags.Case != "" {
		for _, o := range run.Details {
			vc.env.Formatter.PrintOutcome(o)
		}
	}
	return failedError(run)
}
