package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"goldref/internal/config"
	"goldref/internal/domain"
	"goldref/internal/engine"
	"goldref/internal/result"
)

// circuitPrefix marks signals harvested from circuit-domain elements.
const circuitPrefix = "circuit_"

// Harness drives one engine session through load, run and harvest for a
// single case at a time. RunCase is not safe for concurrent use.
type Harness struct {
	session *engine.Session
	profile config.Profile
	log     *slog.Logger
	sleep   engine.SleepFunc

	mu          sync.Mutex
	initialized bool
	cancel      context.CancelFunc
}

// NewHarness creates a Harness owning eng.
func NewHarness(eng engine.Engine, profile config.Profile, log *slog.Logger) *Harness {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Harness{
		session: engine.NewSession(eng, log),
		profile: profile,
		log:     log,
		sleep:   engine.Sleep,
	}
}

// SetSleep replaces the wait primitive for every bounded wait, mainly for tests.
func (h *Harness) SetSleep(fn engine.SleepFunc) {
	h.sleep = fn
	h.session.SetSleep(fn)
}

// Initialize boots the engine once. A readiness timeout only logs a
// warning: the engine may still be usable.
func (h *Harness) Initialize(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.initialized {
		return nil
	}

	h.log.Info("starting simulation engine")
	engineCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h.cancel = cancel
	h.session.Start(engineCtx)

	if !h.session.AwaitReady(ctx, h.profile.BootstrapPoll, h.profile.BootstrapTimeout) {
		if err := ctx.Err(); err != nil {
			return err
		}
		h.log.Warn("engine did not become ready, continuing anyway",
			"timeout", h.profile.BootstrapTimeout, "error", h.session.Err())
	}
	if err := h.sleep(ctx, h.profile.BootSettle); err != nil {
		return err
	}

	h.initialized = true
	h.log.Info("simulation engine started")
	return nil
}

// RunCase loads c, runs it to completion and harvests every signal.
//
// Load and run failures return an *domain.EngineFaultError; a run that does
// not complete in time returns a *domain.TimeoutError. Elements that cannot
// be read are left out and listed in Capture.Partial.
func (h *Harness) RunCase(ctx context.Context, c domain.Case) (*Capture, error) {
	if _, err := os.Stat(c.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("artifact %s: %w", c.Path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("artifact %s: %w", c.Path, err)
	}
	if err := h.Initialize(ctx); err != nil {
		return nil, err
	}

	log := h.log.With("case", c.ID)
	log.Info("running simulation")
	eng := h.session.Engine()

	h.session.ResetCompleted()
	if err := eng.Load(c.Path); err != nil {
		return nil, &domain.EngineFaultError{CaseID: c.ID, Op: "load", Err: err}
	}
	if err := h.sleep(ctx, h.profile.LoadSettle); err != nil {
		return nil, err
	}

	endTime, timestep := h.parameters(log, eng)

	poller := NewPoller(h.session, func() bool { return h.hasOutput(eng, endTime) },
		h.profile.PollInterval, h.profile.MaxWait, h.profile.ProgressEvery, h.sleep, log)

	if err := eng.Run(); err != nil {
		return nil, &domain.EngineFaultError{CaseID: c.ID, Op: "run", Err: err}
	}
	poller.Started()

	state, err := poller.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if state == StateTimedOut {
		return nil, &domain.TimeoutError{CaseID: c.ID, Elapsed: poller.Waited()}
	}
	if state == StateCompletedByHeuristic {
		log.Debug("completion inferred from available output")
	}

	b := result.NewBuilder(c.ID, endTime, timestep)
	partial := h.harvest(log, eng, b, endTime)
	r := b.Seal()

	log.Info("simulation completed", "signals", r.Len(), "waited", poller.Waited())
	return &Capture{
		Result:     r,
		Partial:    partial,
		Completion: state,
		Waited:     poller.Waited(),
	}, nil
}

// parameters reads the nominal end time and timestep, substituting defaults
// when the engine cannot report them.
func (h *Harness) parameters(log *slog.Logger, eng engine.Engine) (float64, float64) {
	endTime, err := eng.EndTime()
	if err == nil {
		var timestep float64
		if timestep, err = eng.Timestep(); err == nil {
			log.Debug("simulation parameters", "tend", endTime, "dt", timestep)
			return endTime, timestep
		}
	}
	log.Warn("could not read simulation parameters, using defaults",
		"tend", config.DefaultEndTime, "dt", config.DefaultTimestep, "error", err)
	return config.DefaultEndTime, config.DefaultTimestep
}

// hasOutput reports whether any control-domain element already yields data.
func (h *Harness) hasOutput(eng engine.Engine, endTime float64) bool {
	names, err := eng.ControlElements()
	if err != nil {
		return false
	}
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		times, err := eng.TimeArray(name, 0, endTime, 0)
		if err == nil && len(times) > 0 {
			return true
		}
	}
	return false
}

func (h *Harness) harvest(log *slog.Logger, eng engine.Engine, b *result.Builder, endTime float64) []domain.PartialCapture {
	var partial []domain.PartialCapture

	control, err := eng.ControlElements()
	if err != nil {
		log.Warn("could not list control elements", "error", err)
		partial = append(partial, domain.PartialCapture{Element: "control elements", Kind: domain.PartialOmitted, Detail: err.Error()})
	} else if len(control) == 0 {
		log.Warn("no control elements found")
	}
	for _, name := range control {
		partial = h.captureElement(log, eng, b, name, name, endTime, partial)
	}

	circuit, err := eng.CircuitElements()
	if err != nil {
		log.Warn("could not list circuit elements", "error", err)
		partial = append(partial, domain.PartialCapture{Element: "circuit elements", Kind: domain.PartialOmitted, Detail: err.Error()})
	}
	for _, name := range circuit {
		partial = h.captureElement(log, eng, b, name, circuitPrefix+name, endTime, partial)
	}
	return partial
}

func (h *Harness) captureElement(log *slog.Logger, eng engine.Engine, b *result.Builder, element, signal string, endTime float64, partial []domain.PartialCapture) []domain.PartialCapture {
	if strings.TrimSpace(element) == "" {
		return partial
	}

	times, err := eng.TimeArray(element, 0, endTime, 0)
	if err == nil {
		var values []float64
		values, err = eng.ValueArray(element, 0, endTime, 0)
		if err == nil {
			return h.addSignal(log, b, signal, times, values, partial)
		}
	}
	log.Debug("could not capture element", "element", element, "error", err)
	return append(partial, domain.PartialCapture{Element: signal, Kind: domain.PartialOmitted, Detail: err.Error()})
}

func (h *Harness) addSignal(log *slog.Logger, b *result.Builder, signal string, times, values []float64, partial []domain.PartialCapture) []domain.PartialCapture {
	if len(times) == 0 || len(values) == 0 {
		// Elements without series data are expected, not errors.
		return partial
	}
	if len(times) != len(values) {
		n := min(len(times), len(values))
		log.Warn("time and value lengths differ, truncating", "signal", signal, "time", len(times), "values", len(values))
		partial = append(partial, domain.PartialCapture{
			Element: signal,
			Kind:    domain.PartialTruncated,
			Detail:  fmt.Sprintf("time=%d values=%d kept=%d", len(times), len(values), n),
		})
		times, values = times[:n], values[:n]
	}
	// Lengths agree here, so Add cannot fail.
	_ = b.Add(signal, times, values)
	log.Debug("captured signal", "signal", signal, "points", len(times))
	return partial
}

// Shutdown stops the engine. A later RunCase boots it again.
func (h *Harness) Shutdown() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.initialized {
		return nil
	}
	h.log.Info("shutting down simulation engine")
	h.initialized = false
	err := h.session.Stop()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	return err
}
