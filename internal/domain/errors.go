package domain

import (
	"errors"
	"fmt"
	"time"
)

// Fatal per-case errors. Callers match them with errors.Is.
var (
	// ErrNotFound indicates a missing artifact or baseline.
	ErrNotFound = errors.New("not found")

	// ErrEngineFault indicates the engine rejected a load or run command.
	ErrEngineFault = errors.New("engine fault")

	// ErrTimeout indicates a bounded wait was exceeded.
	ErrTimeout = errors.New("timed out")
)

// EngineFaultError wraps an engine failure with the case and command that caused it.
type EngineFaultError struct {
	CaseID string
	Op     string
	Err    error
}

func (e *EngineFaultError) Error() string {
	return fmt.Sprintf("engine fault during %s of %s: %v", e.Op, e.CaseID, e.Err)
}

// Is makes errors.Is(err, ErrEngineFault) hold for every EngineFaultError.
func (e *EngineFaultError) Is(target error) bool {
	return target == ErrEngineFault
}

func (e *EngineFaultError) Unwrap() error {
	return e.Err
}

// TimeoutError reports a run that did not complete within its bound.
type TimeoutError struct {
	CaseID  string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("simulation of %s did not complete within %s", e.CaseID, e.Elapsed)
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}

// PartialKind classifies a non-fatal capture loss.
type PartialKind string

const (
	// PartialOmitted means the element could not be read and was left out.
	PartialOmitted PartialKind = "omitted"
	// PartialTruncated means time and value arrays disagreed in length and were cut to the shorter one.
	PartialTruncated PartialKind = "truncated"
)

// PartialCapture records a per-element loss during harvesting. It is never returned as an error.
type PartialCapture struct {
	Element string      `json:"element"`
	Kind    PartialKind `json:"kind"`
	Detail  string      `json:"detail,omitempty"`
}

func (p PartialCapture) String() string {
	if p.Detail == "" {
		return fmt.Sprintf("%s: %s", p.Element, p.Kind)
	}
	return fmt.Sprintf("%s: %s (%s)", p.Element, p.Kind, p.Detail)
}
