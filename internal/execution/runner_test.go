package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldref/internal/baseline"
	"goldref/internal/compare"
	"goldref/internal/domain"
	"goldref/internal/fixture"
	"goldref/internal/result"
)

// scriptedExecutor replays queued captures or errors per case id.
type scriptedExecutor struct {
	script map[string][]step
	calls  map[string]int
}

type step struct {
	result *result.Result
	err    error
}

func newScripted() *scriptedExecutor {
	return &scriptedExecutor{script: map[string][]step{}, calls: map[string]int{}}
}

func (s *scriptedExecutor) then(id string, r *result.Result, err error) *scriptedExecutor {
	s.script[id] = append(s.script[id], step{result: r, err: err})
	return s
}

func (s *scriptedExecutor) RunCase(ctx context.Context, c domain.Case) (*Capture, error) {
	n := s.calls[c.ID]
	s.calls[c.ID]++
	steps := s.script[c.ID]
	if n >= len(steps) {
		return nil, errors.New("unscripted run of " + c.ID)
	}
	if steps[n].err != nil {
		return nil, steps[n].err
	}
	return &Capture{Result: steps[n].result, Completion: StateCompletedByFlag}, nil
}

type recordingProgress struct {
	updates  []domain.Summary
	finished bool
}

func (p *recordingProgress) Update(summary domain.Summary) {
	p.updates = append(p.updates, summary)
}

func (p *recordingProgress) Finish() { p.finished = true }

func cases(ids ...string) []domain.Case {
	out := make([]domain.Case, len(ids))
	for i, id := range ids {
		out[i] = domain.Case{ID: id, Path: "/circuits/" + id}
	}
	return out
}

func drifted(t *testing.T, caseID string, delta float64) *result.Result {
	t.Helper()
	base := fixture.MockResult(caseID)
	b := result.NewBuilder(caseID, base.EndTime(), base.Timestep())
	for _, s := range base.Signals() {
		values := s.Values()
		for i := range values {
			values[i] += delta
		}
		require.NoError(t, b.Add(s.Name(), s.Time(), values))
	}
	return b.Seal()
}

func newRunner(t *testing.T, exec Executor) (*Runner, *baseline.Store) {
	t.Helper()
	store := baseline.NewStore(t.TempDir(), ".ipes")
	r := NewRunner(exec, store, 0, nil)
	return r, store
}

func TestRunner_Capture(t *testing.T) {
	exec := newScripted().
		then("a.ipes", fixture.MockResult("a.ipes"), nil).
		then("b.ipes", nil, &domain.TimeoutError{CaseID: "b.ipes", Elapsed: 5 * time.Minute}).
		then("c.ipes", result.NewBuilder("c.ipes", 1, 1).Seal(), nil)
	r, store := newRunner(t, exec)
	require.NoError(t, store.Save(fixture.MockResult("d.ipes"), false))

	progress := &recordingProgress{}
	r.SetProgress(progress)

	out, err := r.Capture(context.Background(), cases("a.ipes", "b.ipes", "c.ipes", "d.ipes"), CaptureOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.Summary{Total: 4, Succeeded: 1, Failed: 2, Skipped: 1}, out.Meta.Summary)
	assert.Equal(t, "capture", out.Meta.Kind)
	_, err = uuid.Parse(out.Meta.RunID)
	assert.NoError(t, err)

	require.Len(t, out.Details, 4)
	assert.Equal(t, domain.StatusPassed, out.Details[0].Status)
	assert.Equal(t, 2, out.Details[0].Signals)
	assert.Contains(t, out.Details[1].Message, "did not complete within 5m0s")
	assert.Equal(t, "no signals captured", out.Details[2].Message)
	assert.Equal(t, domain.StatusSkipped, out.Details[3].Status)
	assert.Zero(t, exec.calls["d.ipes"], "existing baseline is not re-run")

	assert.True(t, store.Exists("a.ipes"))
	assert.False(t, store.Exists("c.ipes"))

	require.Len(t, progress.updates, 4)
	assert.Equal(t, domain.Summary{Total: 1, Succeeded: 1}, progress.updates[0])
	assert.Equal(t, domain.Summary{Total: 3, Succeeded: 1, Failed: 2}, progress.updates[2])
	assert.Equal(t, out.Meta.Summary, progress.updates[3])
	assert.True(t, progress.finished)
}

func TestRunner_CaptureOverwrite(t *testing.T) {
	exec := newScripted().then("a.ipes", drifted(t, "a.ipes", 1), nil)
	r, store := newRunner(t, exec)
	require.NoError(t, store.Save(fixture.MockResult("a.ipes"), false))

	out, err := r.Capture(context.Background(), cases("a.ipes"), CaptureOptions{Overwrite: true})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Meta.Summary.Succeeded)

	loaded, _, err := store.Load("a.ipes")
	require.NoError(t, err)
	assert.Equal(t, drifted(t, "a.ipes", 1).Fingerprint(), loaded.Fingerprint())
}

func TestRunner_CaptureVerify(t *testing.T) {
	exec := newScripted().
		then("same.ipes", fixture.MockResult("same.ipes"), nil).
		then("same.ipes", fixture.MockResult("same.ipes"), nil).
		then("flaky.ipes", fixture.MockResult("flaky.ipes"), nil).
		then("flaky.ipes", drifted(t, "flaky.ipes", 1e-9), nil).
		then("broken.ipes", fixture.MockResult("broken.ipes"), nil).
		then("broken.ipes", nil, errors.New("engine crashed"))
	r, store := newRunner(t, exec)

	out, err := r.Capture(context.Background(), cases("same.ipes", "flaky.ipes", "broken.ipes"), CaptureOptions{Verify: true})
	require.NoError(t, err)
	require.Len(t, out.Details, 3)

	same := out.Details[0]
	assert.Equal(t, domain.StatusPassed, same.Status)
	require.NotNil(t, same.Reproducible)
	assert.True(t, *same.Reproducible)

	flaky := out.Details[1]
	assert.Equal(t, domain.StatusPassed, flaky.Status, "non-reproducible runs only warn")
	require.NotNil(t, flaky.Reproducible)
	assert.False(t, *flaky.Reproducible)
	assert.NotEmpty(t, flaky.Differences)

	broken := out.Details[2]
	assert.Equal(t, domain.StatusFailed, broken.Status)
	assert.Contains(t, broken.Message, "engine crashed")
	assert.True(t, store.Exists("broken.ipes"), "baseline is kept when the second run fails")
}

func TestRunner_Verify(t *testing.T) {
	exec := newScripted().
		then("ok.ipes", fixture.MockResult("ok.ipes"), nil).
		then("drift.ipes", drifted(t, "drift.ipes", 1e-3), nil).
		then("crash.ipes", nil, &domain.EngineFaultError{CaseID: "crash.ipes", Op: "run", Err: errors.New("boom")})
	r, store := newRunner(t, exec)
	for _, id := range []string{"ok.ipes", "drift.ipes", "crash.ipes"} {
		require.NoError(t, store.Save(fixture.MockResult(id), false))
	}

	out, err := r.Verify(context.Background(), cases("ok.ipes", "drift.ipes", "new.ipes", "crash.ipes"), compare.Normal)
	require.NoError(t, err)

	assert.Equal(t, domain.Summary{Total: 4, Succeeded: 1, Failed: 2, Skipped: 1}, out.Meta.Summary)
	assert.Equal(t, "normal", out.Meta.Tolerance)
	assert.Equal(t, 1e-10, out.Meta.ToleranceValue)

	ok := out.Details[0]
	assert.True(t, ok.Match)
	assert.True(t, ok.QuickMatch)
	assert.Empty(t, ok.Differences)

	drift := out.Details[1]
	assert.False(t, drift.Match)
	assert.False(t, drift.QuickMatch)
	assert.InDelta(t, 1e-3, drift.MaxAbsoluteError, 1e-9)
	assert.NotEmpty(t, drift.WorstSample)
	assert.Equal(t, "results do not match baseline", drift.Message)

	assert.Equal(t, domain.StatusSkipped, out.Details[2].Status)
	assert.Zero(t, exec.calls["new.ipes"])

	assert.Contains(t, out.Details[3].Message, "engine fault during run of crash.ipes")
	assert.Len(t, out.Failures(), 2)
}

func TestRunner_VerifyDriftOnSanitizedSignalName(t *testing.T) {
	build := func(offset float64) *result.Result {
		b := result.NewBuilder("buck.ipes", 1e-3, 1e-6)
		require.NoError(t, b.Add("V out", []float64{0, 5e-4, 1e-3}, []float64{0, 12 + offset, 12}))
		require.NoError(t, b.Add("I(L1)", []float64{0, 1e-3}, []float64{0, 1}))
		return b.Seal()
	}
	exec := newScripted().then("buck.ipes", build(997), nil)
	r, store := newRunner(t, exec)
	require.NoError(t, store.Save(build(0), false))

	out, err := r.Verify(context.Background(), cases("buck.ipes"), compare.Normal)
	require.NoError(t, err)
	require.Len(t, out.Details, 1)

	got := out.Details[0]
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.False(t, got.Match)
	assert.InDelta(t, 997, got.MaxAbsoluteError, 1e-9)
	assert.Contains(t, got.WorstSample, "V out")
	for _, d := range got.Differences {
		assert.NotContains(t, d, "missing")
		assert.NotContains(t, d, "Unexpected")
	}
}

func TestRunner_PausesBetweenCases(t *testing.T) {
	exec := newScripted().
		then("a.ipes", fixture.MockResult("a.ipes"), nil).
		then("b.ipes", fixture.MockResult("b.ipes"), nil)
	store := baseline.NewStore(t.TempDir(), ".ipes")
	r := NewRunner(exec, store, time.Second, nil)
	var clock time.Duration
	r.SetSleep(virtualSleep(&clock))

	_, err := r.Capture(context.Background(), cases("a.ipes", "b.ipes"), CaptureOptions{})
	require.NoError(t, err)
	assert.Equal(t, time.Second, clock, "no pause after the last case")
}

func TestRunner_StopsWhenCancelled(t *testing.T) {
	r, _ := newRunner(t, newScripted())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := r.Verify(ctx, cases("a.ipes"), compare.Normal)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.Details)
}
