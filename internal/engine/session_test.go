package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldref/internal/engine"
	"goldref/internal/engine/enginetest"
)

// instantSleep advances a virtual clock instead of sleeping.
func instantSleep(waited *time.Duration) engine.SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*waited += d
		return ctx.Err()
	}
}

func TestSession_StartIsIdempotent(t *testing.T) {
	fake := &enginetest.Fake{}
	s := engine.NewSession(fake, nil)

	s.Start(context.Background())
	s.Start(context.Background())
	require.Eventually(t, fake.Ready, time.Second, time.Millisecond)
	require.True(t, s.AwaitReady(context.Background(), time.Millisecond, time.Second))

	require.NoError(t, s.Stop())
	assert.Equal(t, 1, fake.Boots())
}

func TestSession_AwaitReadyGivesUp(t *testing.T) {
	fake := &enginetest.Fake{NeverReady: true}
	s := engine.NewSession(fake, nil)
	var waited time.Duration
	s.SetSleep(instantSleep(&waited))

	s.Start(context.Background())
	defer s.Stop()

	assert.False(t, s.AwaitReady(context.Background(), 10*time.Millisecond, time.Second))
	assert.LessOrEqual(t, waited, time.Second)
}

func TestSession_SynthesizedCompletion(t *testing.T) {
	fake := &enginetest.Fake{CompleteAfter: -1}
	s := engine.NewSession(fake, nil)

	assert.False(t, s.Completed())
	s.MarkCompleted()
	assert.True(t, s.Completed())

	s.ResetCompleted()
	assert.False(t, s.Completed())
}

func TestSession_StopWithoutStart(t *testing.T) {
	s := engine.NewSession(&enginetest.Fake{}, nil)
	assert.NoError(t, s.Stop())
}
