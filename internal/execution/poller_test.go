package execution

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldref/internal/engine"
	"goldref/internal/engine/enginetest"
	"goldref/internal/logging"
)

func runningSession(t *testing.T, fake *enginetest.Fake) *engine.Session {
	t.Helper()
	require.NoError(t, fake.Load("case.ipes"))
	require.NoError(t, fake.Run())
	return engine.NewSession(fake, nil)
}

func TestPoller_Transitions(t *testing.T) {
	fake := &enginetest.Fake{CompleteAfter: 1}
	var clock time.Duration
	p := NewPoller(runningSession(t, fake), nil, time.Second, time.Minute, 0, virtualSleep(&clock), logging.Discard())

	assert.Equal(t, StateLoaded, p.State())
	state, err := p.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, state, "nothing happens before the run starts")

	p.Started()
	state, err = p.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateRunning, state)
	assert.Equal(t, time.Second, p.Waited())

	state, err = p.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCompletedByFlag, state)
	assert.True(t, state.Completed())

	// Terminal states are sticky.
	state, _ = p.Step(context.Background())
	assert.Equal(t, StateCompletedByFlag, state)
	assert.Equal(t, time.Second, clock)
}

func TestPoller_HeuristicMarksSession(t *testing.T) {
	fake := &enginetest.Fake{CompleteAfter: -1}
	session := runningSession(t, fake)
	probes := 0
	probe := func() bool {
		probes++
		return probes == 3
	}
	var clock time.Duration
	p := NewPoller(session, probe, 500*time.Millisecond, time.Minute, 0, virtualSleep(&clock), logging.Discard())
	p.Started()

	state, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCompletedByHeuristic, state)
	assert.Equal(t, time.Second, p.Waited())
	assert.True(t, session.Completed())
}

func TestPoller_TimesOut(t *testing.T) {
	fake := &enginetest.Fake{CompleteAfter: -1}
	var clock time.Duration
	p := NewPoller(runningSession(t, fake), func() bool { return false }, 500*time.Millisecond, 10*time.Second, 0, virtualSleep(&clock), logging.Discard())
	p.Started()

	state, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateTimedOut, state)
	assert.False(t, state.Completed())
	assert.Equal(t, 10*time.Second, p.Waited())
	assert.Equal(t, 10*time.Second, clock)
}

func TestPoller_Cancelled(t *testing.T) {
	fake := &enginetest.Fake{CompleteAfter: -1}
	p := NewPoller(runningSession(t, fake), nil, time.Second, time.Minute, 0, engine.Sleep, logging.Discard())
	p.Started()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	state, err := p.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateRunning, state)
}

func TestPoller_ProgressWithUnevenInterval(t *testing.T) {
	fake := &enginetest.Fake{CompleteAfter: -1}
	var clock time.Duration
	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, nil))
	p := NewPoller(runningSession(t, fake), nil, 700*time.Millisecond, 7*time.Second, 2*time.Second, virtualSleep(&clock), log)
	p.Started()

	state, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateTimedOut, state)
	assert.Equal(t, 7*time.Second, clock)

	// Thresholds 2s, 4s and 6s are first crossed at 2.1s, 4.2s and 6.3s.
	assert.Equal(t, 3, strings.Count(logs.String(), "simulation running"))
	assert.Contains(t, logs.String(), "elapsed=2.1s")
	assert.Contains(t, logs.String(), "elapsed=6.3s")
}
