package execution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"goldref/internal/baseline"
	"goldref/internal/compare"
	"goldref/internal/domain"
	"goldref/internal/engine"
)

// Progress receives per-case progress of a batch
type Progress interface {
	Update(summary domain.Summary)
	Finish()
}

// CaptureOptions controls baseline capture
type CaptureOptions struct {
	Overwrite bool // Replace existing baselines
	Verify    bool // Run each case twice and compare the runs under strict tolerance
}

// Runner composes the harness, baseline store and comparator into batch
// capture and verification. Cases run strictly one after another; one
// case's failure never stops the batch.
type Runner struct {
	exec     Executor
	store    *baseline.Store
	pause    time.Duration
	log      *slog.Logger
	sleep    engine.SleepFunc
	progress Progress
}

// NewRunner creates a Runner. pause is slept between cases.
func NewRunner(exec Executor, store *baseline.Store, pause time.Duration, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Runner{exec: exec, store: store, pause: pause, log: log, sleep: engine.Sleep}
}

// SetProgress sets the progress reporter for the runner
func (r *Runner) SetProgress(p Progress) {
	r.progress = p
}

// SetSleep replaces the pause primitive, mainly for tests.
func (r *Runner) SetSleep(fn engine.SleepFunc) {
	r.sleep = fn
}

// Capture runs every case and saves its result as a baseline. Cases with an
// existing baseline are skipped unless opts.Overwrite is set.
func (r *Runner) Capture(ctx context.Context, cases []domain.Case, opts CaptureOptions) (*domain.RunOutput, error) {
	out := r.newOutput("capture")
	err := r.each(ctx, cases, out, func(c domain.Case) domain.CaseOutcome {
		return r.captureOne(ctx, c, opts)
	})
	return out, err
}

// Verify runs every case that has a baseline and compares the fresh result
// against it under tol. Cases without a baseline are skipped.
func (r *Runner) Verify(ctx context.Context, cases []domain.Case, tol compare.Tolerance) (*domain.RunOutput, error) {
	out := r.newOutput("verify")
	out.Meta.Tolerance = tol.Name
	out.Meta.ToleranceValue = tol.Value
	err := r.each(ctx, cases, out, func(c domain.Case) domain.CaseOutcome {
		return r.verifyOne(ctx, c, tol)
	})
	return out, err
}

func (r *Runner) newOutput(kind string) *domain.RunOutput {
	return &domain.RunOutput{Meta: domain.RunMeta{RunID: uuid.NewString(), Kind: kind}}
}

func (r *Runner) each(ctx context.Context, cases []domain.Case, out *domain.RunOutput, run func(domain.Case) domain.CaseOutcome) error {
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		out.Meta.Duration = elapsed.Round(time.Millisecond).String()
		out.Meta.DurationSeconds = elapsed.Seconds()
		out.Meta.Timestamp = start.Format(time.RFC3339)
		if r.progress != nil {
			r.progress.Finish()
		}
	}()

	for i, c := range cases {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.log.Info("processing case", "n", i+1, "of", len(cases), "case", c.ID)

		caseStart := time.Now()
		outcome := run(c)
		outcome.CaseID = c.ID
		outcome.Duration = time.Since(caseStart)
		outcome.DurationSeconds = outcome.Duration.Seconds()

		out.Details = append(out.Details, outcome)
		out.Meta.Summary.Add(outcome.Status)
		if r.progress != nil {
			r.progress.Update(out.Meta.Summary)
		}

		if i < len(cases)-1 && outcome.Status != domain.StatusSkipped {
			if err := r.sleep(ctx, r.pause); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Runner) captureOne(ctx context.Context, c domain.Case, opts CaptureOptions) domain.CaseOutcome {
	log := r.log.With("case", c.ID)

	if !opts.Overwrite && r.store.Exists(c.ID) {
		log.Info("skipping, baseline already exists")
		return domain.CaseOutcome{Status: domain.StatusSkipped, Message: "baseline already exists"}
	}

	capture, err := r.exec.RunCase(ctx, c)
	if err != nil {
		log.Warn("capture failed", "error", err)
		return failed(err)
	}
	res := capture.Result
	outcome := domain.CaseOutcome{
		Signals:     res.Len(),
		Fingerprint: res.Fingerprint(),
		Partial:     capture.Partial,
	}
	if res.Len() == 0 {
		log.Warn("no signals captured, the circuit may have no scopes")
		outcome.Status = domain.StatusFailed
		outcome.Message = "no signals captured"
		return outcome
	}

	if err := r.store.Save(res, opts.Overwrite); err != nil {
		log.Warn("saving baseline failed", "error", err)
		outcome.Status = domain.StatusFailed
		outcome.Message = err.Error()
		return outcome
	}
	log.Info("saved baseline", "signals", res.Len(), "checksum", res.Fingerprint())

	if opts.Verify {
		log.Info("verifying baseline reproducibility")
		second, err := r.exec.RunCase(ctx, c)
		if err != nil {
			log.Warn("verification run failed", "error", err)
			outcome.Status = domain.StatusFailed
			outcome.Message = fmt.Sprintf("baseline saved, verification run failed: %v", err)
			return outcome
		}
		report := compare.Compare(res, second.Result, compare.Strict)
		reproducible := report.Match
		outcome.Reproducible = &reproducible
		outcome.MaxAbsoluteError = report.MaxAbsoluteError
		outcome.MaxRelativeError = report.MaxRelativeError
		outcome.WorstSample = report.WorstSample
		if reproducible {
			log.Info("verification passed, results are reproducible")
		} else {
			log.Warn("verification failed, results differ between runs",
				"max_abs", report.MaxAbsoluteError, "max_rel", report.MaxRelativeError)
			outcome.Message = "results differ between runs"
			outcome.Differences = report.Differences
		}
	}

	outcome.Status = domain.StatusPassed
	return outcome
}

func (r *Runner) verifyOne(ctx context.Context, c domain.Case, tol compare.Tolerance) domain.CaseOutcome {
	log := r.log.With("case", c.ID)

	if !r.store.Exists(c.ID) {
		log.Info("skipping, no baseline")
		return domain.CaseOutcome{Status: domain.StatusSkipped, Message: "no baseline"}
	}
	expected, meta, err := r.store.Load(c.ID)
	if err != nil {
		log.Warn("loading baseline failed", "error", err)
		return failed(err)
	}

	capture, err := r.exec.RunCase(ctx, c)
	if err != nil {
		log.Warn("simulation failed", "error", err)
		return failed(err)
	}
	actual := capture.Result

	report := compare.Compare(expected, actual, tol)
	outcome := domain.CaseOutcome{
		Signals:          actual.Len(),
		Fingerprint:      actual.Fingerprint(),
		Match:            report.Match,
		QuickMatch:       compare.QuickCompare(expected, actual),
		MaxAbsoluteError: report.MaxAbsoluteError,
		MaxRelativeError: report.MaxRelativeError,
		WorstSample:      report.WorstSample,
		Differences:      report.Differences,
		Partial:          capture.Partial,
	}
	if err := baseline.CheckIntegrity(meta, expected); err != nil {
		log.Warn("baseline checksum does not match its tables", "error", err)
		outcome.Message = err.Error()
	}

	if report.Match {
		outcome.Status = domain.StatusPassed
		log.Info("matches baseline", "max_abs", report.MaxAbsoluteError, "quick_match", outcome.QuickMatch)
	} else {
		outcome.Status = domain.StatusFailed
		if outcome.Message == "" {
			outcome.Message = "results do not match baseline"
		}
		log.Warn("does not match baseline", "max_abs", report.MaxAbsoluteError, "worst", report.WorstSample)
	}
	return outcome
}

func failed(err error) domain.CaseOutcome {
	return domain.CaseOutcome{Status: domain.StatusFailed, Message: err.Error()}
}
