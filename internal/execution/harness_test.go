package execution

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldref/internal/config"
	"goldref/internal/domain"
	"goldref/internal/engine"
	"goldref/internal/engine/enginetest"
)

func testProfile() config.Profile {
	return config.Profile{
		BootstrapTimeout: time.Second,
		BootstrapPoll:    10 * time.Millisecond,
		BootSettle:       2 * time.Second,
		LoadSettle:       500 * time.Millisecond,
		PollInterval:     500 * time.Millisecond,
		MaxWait:          5 * time.Minute,
		ProgressEvery:    30 * time.Second,
	}
}

// virtualSleep advances clock instead of sleeping.
func virtualSleep(clock *time.Duration) engine.SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*clock += d
		return ctx.Err()
	}
}

func newHarness(t *testing.T, fake *enginetest.Fake) *Harness {
	t.Helper()
	h := NewHarness(fake, testProfile(), nil)
	var clock time.Duration
	h.SetSleep(virtualSleep(&clock))
	t.Cleanup(func() { h.Shutdown() })
	return h
}

func artifact(t *testing.T, id string) domain.Case {
	t.Helper()
	path := filepath.Join(t.TempDir(), filepath.Base(id))
	require.NoError(t, os.WriteFile(path, []byte("circuit"), 0644))
	return domain.Case{ID: id, Path: path}
}

func scopeFake() *enginetest.Fake {
	return &enginetest.Fake{
		EndTimeValue:  0.02,
		TimestepValue: 1e-7,
		Control:       []string{"Scope1", " ", ""},
		Circuit:       []string{"R1", "L1"},
		Signals: map[string]enginetest.Signal{
			"Scope1": {Time: []float64{0, 0.01, 0.02}, Values: []float64{1, 2, 3}},
			"R1":     {Time: []float64{0, 0.02}, Values: []float64{0.5, 0.25}},
		},
	}
}

func TestHarness_RunCase_CompletedByFlag(t *testing.T) {
	fake := scopeFake()
	fake.CompleteAfter = 2
	fake.HideDataUntilComplete = true
	h := newHarness(t, fake)

	capture, err := h.RunCase(context.Background(), artifact(t, "sub/rc.ipes"))
	require.NoError(t, err)

	assert.Equal(t, StateCompletedByFlag, capture.Completion)
	assert.Equal(t, time.Second, capture.Waited)
	assert.Empty(t, capture.Partial)

	r := capture.Result
	assert.Equal(t, "sub/rc.ipes", r.CaseID())
	assert.Equal(t, []string{"Scope1", "circuit_R1"}, r.Names(), "blank names and empty elements are skipped")
	assert.Equal(t, 0.02, r.EndTime())
	assert.Equal(t, 1e-7, r.Timestep())
	assert.NotEmpty(t, r.Fingerprint())
}

func TestHarness_RunCase_CompletedByHeuristic(t *testing.T) {
	fake := scopeFake()
	fake.CompleteAfter = -1
	h := newHarness(t, fake)

	capture, err := h.RunCase(context.Background(), artifact(t, "rc.ipes"))
	require.NoError(t, err)

	assert.Equal(t, StateCompletedByHeuristic, capture.Completion)
	assert.Zero(t, capture.Waited)
	assert.True(t, h.session.Completed(), "completion is synthesized on the session")
	assert.False(t, fake.Completed())
	assert.Equal(t, 2, capture.Result.Len())
}

func TestHarness_RunCase_TimesOutAtBound(t *testing.T) {
	fake := scopeFake()
	fake.CompleteAfter = -1
	fake.HideDataUntilComplete = true
	h := newHarness(t, fake)

	capture, err := h.RunCase(context.Background(), artifact(t, "slow.ipes"))
	require.Error(t, err)
	assert.Nil(t, capture)
	assert.ErrorIs(t, err, domain.ErrTimeout)

	var timeout *domain.TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "slow.ipes", timeout.CaseID)
	assert.Equal(t, 5*time.Minute, timeout.Elapsed)
}

func TestHarness_RunCase_MissingArtifact(t *testing.T) {
	fake := scopeFake()
	h := newHarness(t, fake)

	_, err := h.RunCase(context.Background(), domain.Case{ID: "gone.ipes", Path: filepath.Join(t.TempDir(), "gone.ipes")})
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, fake.Loads())
}

func TestHarness_RunCase_EngineFaults(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*enginetest.Fake)
		wantOp string
	}{
		{"load", func(f *enginetest.Fake) { f.LoadErr = errors.New("corrupt file") }, "load"},
		{"run", func(f *enginetest.Fake) { f.RunErr = errors.New("solver crashed") }, "run"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := scopeFake()
			tt.setup(fake)
			h := newHarness(t, fake)

			_, err := h.RunCase(context.Background(), artifact(t, "rc.ipes"))
			require.ErrorIs(t, err, domain.ErrEngineFault)

			var fault *domain.EngineFaultError
			require.ErrorAs(t, err, &fault)
			assert.Equal(t, tt.wantOp, fault.Op)
			assert.Equal(t, "rc.ipes", fault.CaseID)
			assert.Zero(t, fake.Runs())
		})
	}
}

func TestHarness_RunCase_DefaultParameters(t *testing.T) {
	fake := scopeFake()
	fake.ParamErr = errors.New("no solver settings")
	h := newHarness(t, fake)

	capture, err := h.RunCase(context.Background(), artifact(t, "rc.ipes"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultEndTime, capture.Result.EndTime())
	assert.Equal(t, config.DefaultTimestep, capture.Result.Timestep())
}

func TestHarness_RunCase_PartialCapture(t *testing.T) {
	fake := scopeFake()
	fake.Control = []string{"Scope1", "Scope2", "Gain"}
	fake.Signals["Scope2"] = enginetest.Signal{Time: []float64{0, 1, 2, 3, 4}, Values: []float64{9, 8, 7}}
	fake.ElementErr = map[string]error{"Gain": errors.New("not a scope")}
	h := newHarness(t, fake)

	capture, err := h.RunCase(context.Background(), artifact(t, "rc.ipes"))
	require.NoError(t, err)

	r := capture.Result
	assert.Equal(t, []string{"Scope1", "Scope2", "circuit_R1"}, r.Names())
	scope2, ok := r.Signal("Scope2")
	require.True(t, ok)
	assert.Equal(t, []float64{0, 1, 2}, scope2.Time(), "both arrays cut to the shorter length")
	assert.Equal(t, []float64{9, 8, 7}, scope2.Values())

	require.Len(t, capture.Partial, 2)
	assert.Equal(t, domain.PartialCapture{Element: "Scope2", Kind: domain.PartialTruncated, Detail: "time=5 values=3 kept=3"}, capture.Partial[0])
	assert.Equal(t, "Gain", capture.Partial[1].Element)
	assert.Equal(t, domain.PartialOmitted, capture.Partial[1].Kind)
}

func TestHarness_RunCase_ListFailure(t *testing.T) {
	fake := scopeFake()
	fake.ListErr = errors.New("engine busy")
	h := newHarness(t, fake)

	capture, err := h.RunCase(context.Background(), artifact(t, "rc.ipes"))
	require.NoError(t, err)
	assert.Zero(t, capture.Result.Len())
	assert.Len(t, capture.Partial, 2)
}

func TestHarness_InitializeOnce(t *testing.T) {
	fake := scopeFake()
	h := newHarness(t, fake)
	c := artifact(t, "rc.ipes")

	for range 3 {
		_, err := h.RunCase(context.Background(), c)
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return fake.Boots() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 3, fake.Runs())

	require.NoError(t, h.Shutdown())
	_, err := h.RunCase(context.Background(), c)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return fake.Boots() == 2 }, time.Second, time.Millisecond)
}

func TestHarness_InitializeProceedsWhenNotReady(t *testing.T) {
	fake := scopeFake()
	fake.NeverReady = true
	h := newHarness(t, fake)

	require.NoError(t, h.Initialize(context.Background()))
	capture, err := h.RunCase(context.Background(), artifact(t, "rc.ipes"))
	require.NoError(t, err)
	assert.Equal(t, 2, capture.Result.Len())
}

func TestHarness_RunCase_CancelledWait(t *testing.T) {
	fake := scopeFake()
	fake.CompleteAfter = -1
	fake.HideDataUntilComplete = true
	h := newHarness(t, fake)
	require.NoError(t, h.Initialize(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.RunCase(ctx, artifact(t, "rc.ipes"))
	require.ErrorIs(t, err, context.Canceled)
}
