// Package enginetest provides a scriptable in-memory engine for tests.
package enginetest

import (
	"context"
	"errors"
	"sync"

	"goldref/internal/engine"
)

// Signal is the data an element exposes after a run.
type Signal struct {
	Time   []float64
	Values []float64
}

// Fake is an engine.Engine whose behaviour is set through its exported
// fields before use.
type Fake struct {
	EndTimeValue  float64
	TimestepValue float64
	ParamErr      error
	LoadErr       error
	RunErr        error
	ListErr       error

	Control    []string
	Circuit    []string
	Signals    map[string]Signal
	ElementErr map[string]error

	// CompleteAfter is how many completion checks after Run report false
	// before the flag sets. Negative means the flag never sets.
	CompleteAfter int
	// HideDataUntilComplete makes every element return empty arrays until
	// the completion flag is set.
	HideDataUntilComplete bool
	// NeverReady keeps the readiness flag down after Boot.
	NeverReady bool

	mu        sync.Mutex
	ready     bool
	completed bool
	running   bool
	checks    int
	closed    chan struct{}
	loaded    string
	boots     int
	loads     int
	runs      int
}

var _ engine.Engine = (*Fake)(nil)

// Boot marks the engine ready and blocks until Close or ctx is done.
func (f *Fake) Boot(ctx context.Context) error {
	f.mu.Lock()
	f.boots++
	if f.closed == nil {
		f.closed = make(chan struct{})
	}
	closed := f.closed
	f.ready = !f.NeverReady
	f.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-closed:
		return nil
	}
}

func (f *Fake) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *Fake) Load(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LoadErr != nil {
		return f.LoadErr
	}
	f.loads++
	f.loaded = path
	f.running = false
	return nil
}

func (f *Fake) EndTime() (float64, error) {
	if f.ParamErr != nil {
		return 0, f.ParamErr
	}
	return f.EndTimeValue, nil
}

func (f *Fake) Timestep() (float64, error) {
	if f.ParamErr != nil {
		return 0, f.ParamErr
	}
	return f.TimestepValue, nil
}

func (f *Fake) Run() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RunErr != nil {
		return f.RunErr
	}
	if f.loaded == "" {
		return errors.New("nothing loaded")
	}
	f.runs++
	f.running = true
	f.checks = 0
	return nil
}

func (f *Fake) Completed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running && !f.completed && f.CompleteAfter >= 0 {
		if f.checks >= f.CompleteAfter {
			f.completed = true
		}
		f.checks++
	}
	return f.completed
}

func (f *Fake) ResetCompleted() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = false
	f.checks = 0
}

func (f *Fake) ControlElements() ([]string, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return f.Control, nil
}

func (f *Fake) CircuitElements() ([]string, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return f.Circuit, nil
}

func (f *Fake) TimeArray(element string, start, end float64, decimation int) ([]float64, error) {
	sig, err := f.element(element)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), sig.Time...), nil
}

func (f *Fake) ValueArray(element string, start, end float64, decimation int) ([]float64, error) {
	sig, err := f.element(element)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), sig.Values...), nil
}

func (f *Fake) element(name string) (Signal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ElementErr[name]; err != nil {
		return Signal{}, err
	}
	if f.HideDataUntilComplete && !f.completed {
		return Signal{}, nil
	}
	return f.Signals[name], nil
}

// Close releases Boot.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = false
	if f.closed != nil {
		close(f.closed)
		f.closed = nil
	}
	return nil
}

// Boots returns how many times Boot was entered.
func (f *Fake) Boots() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.boots
}

// Loads returns how many loads succeeded.
func (f *Fake) Loads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

// Runs returns how many runs were started.
func (f *Fake) Runs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

// Loaded returns the last loaded path.
func (f *Fake) Loaded() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded
}
