package domain

import "time"

// Status is the verdict of one case in a batch
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// CaseOutcome represents the result of capturing or verifying one case
type CaseOutcome struct {
	CaseID           string           `json:"case_id"`
	Status           Status           `json:"status"`
	Message          string           `json:"message,omitempty"`
	Signals          int              `json:"signals"`
	Fingerprint      string           `json:"fingerprint,omitempty"`
	Match            bool             `json:"match"`
	QuickMatch       bool             `json:"quick_match"`
	Reproducible     *bool            `json:"reproducible,omitempty"` // Set only when capture re-ran the case
	MaxAbsoluteError float64          `json:"max_absolute_error"`
	MaxRelativeError float64          `json:"max_relative_error"`
	WorstSample      string           `json:"worst_sample,omitempty"`
	Differences      []string         `json:"differences,omitempty"`
	Partial          []PartialCapture `json:"partial,omitempty"`
	Duration         time.Duration    `json:"-"`
	DurationSeconds  float64          `json:"duration_seconds"`
	Resolved         bool             `json:"resolved,omitempty"` // Toggled in the report viewer
}

// Summary counts case outcomes of a batch
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Add counts one outcome.
func (s *Summary) Add(status Status) {
	s.Total++
	switch status {
	case StatusPassed:
		s.Succeeded++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	}
}

// RunMeta contains metadata about a capture or verification run
type RunMeta struct {
	RunID           string  `json:"run_id"`
	Kind            string  `json:"kind"` // "capture" or "verify"
	Tolerance       string  `json:"tolerance,omitempty"`
	ToleranceValue  float64 `json:"tolerance_value,omitempty"`
	Mode            string  `json:"mode"`
	Summary         Summary `json:"summary"`
	Duration        string  `json:"duration"`
	DurationSeconds float64 `json:"duration_seconds"`
	Timestamp       string  `json:"timestamp"`
}

// RunOutput is the complete persisted structure of a run
type RunOutput struct {
	Meta    RunMeta       `json:"meta"`
	Details []CaseOutcome `json:"details"`
}

// Failures returns the outcomes that did not pass.
func (o *RunOutput) Failures() []CaseOutcome {
	var failed []CaseOutcome
	for _, d := range o.Details {
		if d.Status == StatusFailed {
			failed = append(failed, d)
		}
	}
	return failed
}
