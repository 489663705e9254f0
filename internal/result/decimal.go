package result

import (
	"math"
	"strconv"
	"strings"
)

// FormatDecimal renders v as canonical decimal text: the shortest digits that
// round-trip, laid out the way stored baselines were written ("0.0", "2.5",
// "0.001", "1.0E-6", "1.0E7"). Fingerprints and CSV rows both use it.
func FormatDecimal(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case v == 0:
		if math.Signbit(v) {
			return "-0.0"
		}
		return "0.0"
	}

	s := strconv.FormatFloat(v, 'e', -1, 64)
	neg := s[0] == '-'
	if neg {
		s = s[1:]
	}
	mant, expText, _ := strings.Cut(s, "e")
	exp, _ := strconv.Atoi(expText)
	digits := strings.Replace(mant, ".", "", 1)

	var out string
	if abs := math.Abs(v); abs >= 1e-3 && abs < 1e7 {
		switch {
		case exp < 0:
			out = "0." + strings.Repeat("0", -exp-1) + digits
		case len(digits) <= exp+1:
			out = digits + strings.Repeat("0", exp+1-len(digits)) + ".0"
		default:
			out = digits[:exp+1] + "." + digits[exp+1:]
		}
	} else {
		frac := digits[1:]
		if frac == "" {
			frac = "0"
		}
		out = digits[:1] + "." + frac + "E" + strconv.Itoa(exp)
	}

	if neg {
		return "-" + out
	}
	return out
}

// ParseDecimal parses text written by FormatDecimal (or any Go float syntax).
func ParseDecimal(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
