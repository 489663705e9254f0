package commands

import (
	"context"
	"errors"
	"fmt"

	"goldref/internal/domain"
	"goldref/internal/execution"
	"goldref/internal/history"
	"goldref/internal/ui"
)

// batch runs fn with a Runner wired to a fresh engine session and shuts the
// engine down afterwards.
func (e *Env) batch(count int, label string, fn func(*execution.Runner) (*domain.RunOutput, error)) (*domain.RunOutput, error) {
	eng, err := e.NewEngine(e.Config, e.Log)
	if err != nil {
		return nil, err
	}
	profile := e.Config.Profile()
	harness := execution.NewHarness(eng, profile, e.Log)
	defer func() {
		if err := harness.Shutdown(); err != nil {
			e.Log.Warn("engine shutdown failed", "error", err)
		}
	}()

	runner := execution.NewRunner(harness, e.Baselines, profile.CasePause, e.Log)
	if e.Sleep != nil {
		harness.SetSleep(e.Sleep)
		runner.SetSleep(e.Sleep)
	}
	runner.SetProgress(ui.NewProgressBar(count, label))

	run, err := fn(runner)
	if run != nil {
		run.Meta.Mode = e.Config.Mode
	}
	return run, err
}

var errHistoryDisabled = errors.New("history is disabled (history.driver is none)")

// openHistory opens the configured verdict history. MySQL without an
// explicit DSN connects through the DB_* environment.
func (e *Env) openHistory(ctx context.Context) (*history.Store, error) {
	driver := e.Config.History.Driver
	if driver == "" || driver == "none" {
		return nil, errHistoryDisabled
	}
	dsn := e.Config.GetHistoryDSN()
	if driver == history.DriverMySQL && dsn == "" {
		dsn = history.MySQLDSNFromEnv()
	}
	return history.Open(ctx, driver, dsn)
}

// record appends run to the verdict history. Failures only warn.
func (e *Env) record(ctx context.Context, run *domain.RunOutput) {
	store, err := e.openHistory(ctx)
	if errors.Is(err, errHistoryDisabled) {
		return
	}
	if err != nil {
		e.Log.Warn("history unavailable", "driver", e.Config.History.Driver, "error", err)
		return
	}
	defer store.Close()
	if err := store.Record(ctx, run); err != nil {
		e.Log.Warn("recording history failed", "error", err)
	}
}

func failedError(run *domain.RunOutput) error {
	if n := run.Meta.Summary.Failed; n > 0 {
		return fmt.Errorf("%d case(s) failed", n)
	}
	return nil
}
