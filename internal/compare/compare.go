// Package compare diffs a candidate result against its baseline under a
// numeric tolerance. Verdicts are values; nothing here returns an error.
package compare

import (
	"fmt"
	"math"
	"strings"

	"goldref/internal/result"
)

const (
	// maxLinesPerSignal caps detail lines for one signal before the truncation line.
	maxLinesPerSignal = 5

	// relativeFloor is the baseline magnitude below which relative error is left at zero.
	relativeFloor = 1e-15
)

// Report is the outcome of comparing two results.
type Report struct {
	Match            bool
	Differences      []string
	MaxAbsoluteError float64
	MaxRelativeError float64
	WorstSample      string // "name[index]" of the largest absolute error, empty if none
}

// Compare diffs candidate against baseline.
//
// Nominal parameter and fingerprint deltas are recorded but informational:
// the run matches when nothing was recorded or the largest absolute sample
// error is within tolerance. A sample produces a line only when both its
// absolute and its relative error exceed tolerance. Signals whose lengths
// differ get one line and no sample comparison.
func Compare(baseline, candidate *result.Result, tol Tolerance) Report {
	var (
		diffs  []string
		maxAbs float64
		maxRel float64
		worst  string
	)
	limit := tol.Value

	if math.Abs(baseline.EndTime()-candidate.EndTime()) > limit {
		diffs = append(diffs, fmt.Sprintf("Simulation time differs: expected=%s, actual=%s",
			result.FormatDecimal(baseline.EndTime()), result.FormatDecimal(candidate.EndTime())))
	}
	if math.Abs(baseline.Timestep()-candidate.Timestep()) > limit {
		diffs = append(diffs, fmt.Sprintf("Timestep differs: expected=%s, actual=%s",
			result.FormatDecimal(baseline.Timestep()), result.FormatDecimal(candidate.Timestep())))
	}

	if baseline.Fingerprint() != "" && candidate.Fingerprint() != "" && baseline.Fingerprint() != candidate.Fingerprint() {
		diffs = append(diffs, fmt.Sprintf("Checksums differ: expected=%s, actual=%s",
			baseline.Fingerprint(), candidate.Fingerprint()))
	}

	for _, name := range baseline.Names() {
		if !candidate.Has(name) {
			diffs = append(diffs, "Signal missing in actual result: "+name)
		}
	}
	for _, name := range candidate.Names() {
		if !baseline.Has(name) {
			diffs = append(diffs, "Unexpected signal in actual result: "+name)
		}
	}

	for _, name := range baseline.Names() {
		actualSig, ok := candidate.Signal(name)
		if !ok {
			continue
		}
		expectedSig, _ := baseline.Signal(name)
		expected, actual := expectedSig.Values(), actualSig.Values()

		if len(expected) != len(actual) {
			diffs = append(diffs, fmt.Sprintf("Signal %s has different lengths: expected=%d, actual=%d",
				name, len(expected), len(actual)))
			continue
		}

		lines := 0
		for i := range expected {
			absErr := math.Abs(expected[i] - actual[i])
			relErr := 0.0
			if math.Abs(expected[i]) > relativeFloor {
				relErr = absErr / math.Abs(expected[i])
			}

			if absErr > maxAbs {
				maxAbs = absErr
				worst = fmt.Sprintf("%s[%d]", name, i)
			}
			if relErr > maxRel {
				maxRel = relErr
			}

			if absErr <= limit || relErr <= limit {
				continue
			}
			switch {
			case lines < maxLinesPerSignal:
				diffs = append(diffs, fmt.Sprintf("Signal %s[%d] differs: expected=%s, actual=%s, absError=%s, relError=%s",
					name, i, result.FormatDecimal(expected[i]), result.FormatDecimal(actual[i]),
					result.FormatDecimal(absErr), result.FormatDecimal(relErr)))
			case lines == maxLinesPerSignal:
				diffs = append(diffs, fmt.Sprintf("Signal %s has additional errors (truncated)", name))
			}
			lines++
		}
	}

	return Report{
		Match:            len(diffs) == 0 || maxAbs <= limit,
		Differences:      diffs,
		MaxAbsoluteError: maxAbs,
		MaxRelativeError: maxRel,
		WorstSample:      worst,
	}
}

// QuickCompare reports whether both results carry a fingerprint and the
// fingerprints are equal. It is order-sensitive and can disagree with Compare.
func QuickCompare(baseline, candidate *result.Result) bool {
	if baseline == nil || candidate == nil {
		return false
	}
	return baseline.Fingerprint() != "" && baseline.Fingerprint() == candidate.Fingerprint()
}

// String renders the report for humans.
func (r Report) String() string {
	var b strings.Builder
	verdict := "FAIL"
	if r.Match {
		verdict = "PASS"
	}
	fmt.Fprintf(&b, "Comparison Result: %s\n", verdict)
	fmt.Fprintf(&b, "Max Absolute Error: %s\n", result.FormatDecimal(r.MaxAbsoluteError))
	fmt.Fprintf(&b, "Max Relative Error: %s\n", result.FormatDecimal(r.MaxRelativeError))
	if r.WorstSample != "" {
		fmt.Fprintf(&b, "Signal with Max Error: %s\n", r.WorstSample)
	}
	if len(r.Differences) > 0 {
		b.WriteString("\nDifferences Found:\n")
		for _, d := range r.Differences {
			fmt.Fprintf(&b, "  - %s\n", d)
		}
	}
	return b.String()
}
