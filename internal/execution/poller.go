package execution

import (
	"context"
	"log/slog"
	"time"

	"goldref/internal/engine"
)

// State is a step of the completion state machine
type State string

const (
	StateLoaded               State = "loaded"
	StateRunning              State = "running"
	StateCompletedByFlag      State = "completed"
	StateCompletedByHeuristic State = "completed-by-heuristic"
	StateTimedOut             State = "timed-out"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case StateCompletedByFlag, StateCompletedByHeuristic, StateTimedOut:
		return true
	}
	return false
}

// Completed reports whether the run finished, by flag or by heuristic.
func (s State) Completed() bool {
	return s == StateCompletedByFlag || s == StateCompletedByHeuristic
}

// Poller waits for a run to complete by polling at a fixed interval.
//
// The engine's completion flag is checked first. When it is not set, probe
// is asked whether output data already exists; if so completion is
// synthesized on the session. The wait is bounded by maxWait measured as
// the sum of poll intervals slept.
type Poller struct {
	session       *engine.Session
	probe         func() bool
	interval      time.Duration
	maxWait       time.Duration
	progressEvery time.Duration
	sleep         engine.SleepFunc
	log           *slog.Logger

	state        State
	waited       time.Duration
	nextProgress time.Duration
}

// NewPoller creates a Poller in the Loaded state.
func NewPoller(session *engine.Session, probe func() bool, interval, maxWait, progressEvery time.Duration, sleep engine.SleepFunc, log *slog.Logger) *Poller {
	if interval <= 0 {
		interval = time.Millisecond
	}
	return &Poller{
		session:       session,
		probe:         probe,
		interval:      interval,
		maxWait:       maxWait,
		progressEvery: progressEvery,
		sleep:         sleep,
		log:           log,
		state:         StateLoaded,
		nextProgress:  progressEvery,
	}
}

// State returns the current state.
func (p *Poller) State() State {
	return p.state
}

// Waited returns the accumulated wait.
func (p *Poller) Waited() time.Duration {
	return p.waited
}

// Started moves Loaded to Running once the run command was accepted.
func (p *Poller) Started() {
	if p.state == StateLoaded {
		p.state = StateRunning
	}
}

// Step performs one poll and returns the resulting state. Terminal states
// are sticky. A cancelled context is returned as an error and leaves the
// state unchanged.
func (p *Poller) Step(ctx context.Context) (State, error) {
	if p.state != StateRunning {
		return p.state, nil
	}

	if p.session.Completed() {
		p.state = StateCompletedByFlag
		return p.state, nil
	}
	if p.probe != nil && p.probe() {
		p.session.MarkCompleted()
		p.state = StateCompletedByHeuristic
		return p.state, nil
	}
	if p.waited >= p.maxWait {
		p.state = StateTimedOut
		return p.state, nil
	}

	if err := p.sleep(ctx, p.interval); err != nil {
		return p.state, err
	}
	p.waited += p.interval
	if p.progressEvery > 0 && p.waited >= p.nextProgress {
		p.log.Info("simulation running", "elapsed", p.waited)
		for p.nextProgress <= p.waited {
			p.nextProgress += p.progressEvery
		}
	}
	return p.state, nil
}

// Wait steps until a terminal state is reached or ctx is cancelled.
func (p *Poller) Wait(ctx context.Context) (State, error) {
	for !p.state.Terminal() {
		if p.state == StateLoaded {
			return p.state, nil
		}
		if _, err := p.Step(ctx); err != nil {
			return p.state, err
		}
	}
	return p.state, nil
}
