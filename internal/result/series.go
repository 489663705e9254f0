package result

import (
	"errors"
	"fmt"
)

// ErrLengthMismatch is returned when a series' time and value arrays differ in length.
var ErrLengthMismatch = errors.New("time and value arrays must have the same length")

// Series is a named, time-ordered numeric signal. It is immutable: the
// constructor copies its inputs and accessors hand out copies.
type Series struct {
	name   string
	time   []float64
	values []float64
}

// NewSeries copies time and values into a new Series.
func NewSeries(name string, time, values []float64) (Series, error) {
	if len(time) != len(values) {
		return Series{}, fmt.Errorf("signal %s: %w (time=%d, values=%d)", name, ErrLengthMismatch, len(time), len(values))
	}
	return Series{
		name:   name,
		time:   clone(time),
		values: clone(values),
	}, nil
}

// Name returns the signal name.
func (s Series) Name() string {
	return s.name
}

// Len returns the number of samples.
func (s Series) Len() int {
	return len(s.values)
}

// Time returns a copy of the time values in seconds.
func (s Series) Time() []float64 {
	return clone(s.time)
}

// Values returns a copy of the sample values.
func (s Series) Values() []float64 {
	return clone(s.values)
}

func (s Series) equal(o Series) bool {
	return s.name == o.name && sameFloats(s.time, o.time) && sameFloats(s.values, o.values)
}

func clone(in []float64) []float64 {
	out := make([]float64, len(in))
	copy(out, in)
	return out
}

// sameFloats compares element-wise with ==, so NaN never equals NaN.
func sameFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
