// Package result holds the captured output of one simulation run: named time
// series plus the nominal run parameters and a content fingerprint.
//
// A Result is assembled through a Builder and becomes immutable once sealed.
// Sealing computes the fingerprint and snapshots the signal map, so later
// changes to the Builder never reach a sealed Result.
package result

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
)

// paramEpsilon is the slack allowed when comparing nominal parameters for equality.
const paramEpsilon = 1e-15

// Builder accumulates signals for one run before sealing.
type Builder struct {
	caseID   string
	endTime  float64
	timestep float64
	order    []string
	signals  map[string]Series
}

// NewBuilder starts an empty result for the given case and nominal parameters.
func NewBuilder(caseID string, endTime, timestep float64) *Builder {
	return &Builder{
		caseID:   caseID,
		endTime:  endTime,
		timestep: timestep,
		signals:  make(map[string]Series),
	}
}

// Add copies time and values in as a new signal.
func (b *Builder) Add(name string, time, values []float64) error {
	s, err := NewSeries(name, time, values)
	if err != nil {
		return err
	}
	b.AddSeries(s)
	return nil
}

// AddSeries stores s under its name. Re-adding a name replaces the series
// but keeps the position of the first insertion.
func (b *Builder) AddSeries(s Series) {
	if _, ok := b.signals[s.name]; !ok {
		b.order = append(b.order, s.name)
	}
	b.signals[s.name] = s
}

// Len returns the number of signals added so far.
func (b *Builder) Len() int {
	return len(b.order)
}

// Seal computes the fingerprint and returns an immutable snapshot.
func (b *Builder) Seal() *Result {
	order := make([]string, len(b.order))
	copy(order, b.order)
	signals := make(map[string]Series, len(b.signals))
	for name, s := range b.signals {
		signals[name] = s
	}
	return &Result{
		caseID:      b.caseID,
		endTime:     b.endTime,
		timestep:    b.timestep,
		order:       order,
		signals:     signals,
		fingerprint: Fingerprint(order, signals),
	}
}

// Result is a sealed, read-only run result.
type Result struct {
	caseID      string
	endTime     float64
	timestep    float64
	order       []string
	signals     map[string]Series
	fingerprint string
}

// CaseID returns the id of the case that produced the result.
func (r *Result) CaseID() string { return r.caseID }

// EndTime returns the nominal simulated end time in seconds.
func (r *Result) EndTime() float64 { return r.endTime }

// Timestep returns the nominal simulation timestep in seconds.
func (r *Result) Timestep() float64 { return r.timestep }

// Fingerprint returns the hex digest of all signal content, or "" when absent.
func (r *Result) Fingerprint() string { return r.fingerprint }

// Len returns the number of signals.
func (r *Result) Len() int { return len(r.order) }

// Names returns signal names in insertion order.
func (r *Result) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Signal looks up one signal by name.
func (r *Result) Signal(name string) (Series, bool) {
	s, ok := r.signals[name]
	return s, ok
}

// Has reports whether a signal with the given name exists.
func (r *Result) Has(name string) bool {
	_, ok := r.signals[name]
	return ok
}

// Signals returns all signals in insertion order.
func (r *Result) Signals() []Series {
	out := make([]Series, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.signals[name])
	}
	return out
}

// Fingerprint hashes signals in the given order: each name, then the
// canonical decimal text of every time value, then of every sample value.
// The digest depends on order, so equal content added in a different order
// fingerprints differently. Stored baselines rely on this exact layout.
func Fingerprint(order []string, signals map[string]Series) string {
	h := sha256.New()
	for _, name := range order {
		s := signals[name]
		h.Write([]byte(name))
		for _, t := range s.time {
			h.Write([]byte(FormatDecimal(t)))
		}
		for _, v := range s.values {
			h.Write([]byte(FormatDecimal(v)))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Equal reports whether two sealed results carry the same case, nominal
// parameters, signal map and fingerprint. It is meant for
// self-consistency checks; verdicts come from the compare package.
func Equal(a, b *Result) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.caseID != b.caseID || a.fingerprint != b.fingerprint {
		return false
	}
	if math.Abs(a.endTime-b.endTime) > paramEpsilon || math.Abs(a.timestep-b.timestep) > paramEpsilon {
		return false
	}
	if len(a.signals) != len(b.signals) {
		return false
	}
	for name, s := range a.signals {
		other, ok := b.signals[name]
		if !ok || !s.equal(other) {
			return false
		}
	}
	return true
}
