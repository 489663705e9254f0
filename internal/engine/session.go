package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Session owns one Engine: it boots it in the background, tracks readiness
// and layers a synthesized completion flag over the engine's own.
type Session struct {
	eng   Engine
	log   *slog.Logger
	sleep SleepFunc

	mu      sync.Mutex
	started bool
	done    chan struct{}
	bootErr error

	synthesized atomic.Bool
}

// NewSession wraps eng. A nil logger discards output.
func NewSession(eng Engine, log *slog.Logger) *Session {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Session{eng: eng, log: log, sleep: Sleep}
}

// SetSleep replaces the wait primitive, mainly for tests.
func (s *Session) SetSleep(fn SleepFunc) {
	s.sleep = fn
}

// Engine returns the wrapped engine.
func (s *Session) Engine() Engine {
	return s.eng
}

// Start boots the engine in its own goroutine. Calling it again while the
// engine is running does nothing.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.done = make(chan struct{})
	s.bootErr = nil

	done := s.done
	go func() {
		defer close(done)
		err := s.eng.Boot(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("engine exited", "error", err)
		}
		s.mu.Lock()
		s.bootErr = err
		s.mu.Unlock()
	}()
}

// AwaitReady polls the readiness flag every poll until timeout. It returns
// false when the engine did not become ready in time or exited early.
func (s *Session) AwaitReady(ctx context.Context, poll, timeout time.Duration) bool {
	var waited time.Duration
	for !s.eng.Ready() {
		if waited >= timeout || s.exited() {
			return false
		}
		if err := s.sleep(ctx, poll); err != nil {
			return false
		}
		waited += poll
	}
	return true
}

// Err returns the error Boot exited with, if it has exited.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bootErr
}

func (s *Session) exited() bool {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return true
	default:
		return false
	}
}

// Completed reports the engine's flag or a synthesized completion.
func (s *Session) Completed() bool {
	return s.synthesized.Load() || s.eng.Completed()
}

// MarkCompleted synthesizes completion when it was inferred from data.
func (s *Session) MarkCompleted() {
	s.synthesized.Store(true)
}

// ResetCompleted clears both the engine flag and any synthesized completion.
func (s *Session) ResetCompleted() {
	s.synthesized.Store(false)
	s.eng.ResetCompleted()
}

// Stop closes the engine and waits briefly for Boot to return.
func (s *Session) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	done := s.done
	s.mu.Unlock()

	err := s.eng.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.log.Warn("engine did not exit after close")
	}
	return err
}
