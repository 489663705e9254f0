// Package engine defines the contract of the external simulation engine and
// the session that owns one engine instance for the life of a batch.
package engine

import "context"

// Engine is the external simulator. Every method except Boot must return
// promptly; Run only starts the simulation.
type Engine interface {
	// Boot starts the engine and blocks for its whole lifetime.
	Boot(ctx context.Context) error
	// Ready reports whether the engine finished booting.
	Ready() bool

	// Load replaces the loaded artifact.
	Load(path string) error
	// EndTime returns the nominal simulated end time of the loaded artifact.
	EndTime() (float64, error)
	// Timestep returns the nominal timestep of the loaded artifact.
	Timestep() (float64, error)
	// Run starts the simulation without waiting for it.
	Run() error

	// Completed reports the engine's own completion flag. It is not reliable.
	Completed() bool
	// ResetCompleted clears the completion flag before a new load.
	ResetCompleted()

	ControlElements() ([]string, error)
	CircuitElements() ([]string, error)

	// TimeArray returns the time values of an element between start and end,
	// keeping every (decimation+1)-th point.
	TimeArray(element string, start, end float64, decimation int) ([]float64, error)
	// ValueArray returns the sample values matching TimeArray.
	ValueArray(element string, start, end float64, decimation int) ([]float64, error)

	// Close shuts the engine down and makes Boot return.
	Close() error
}
