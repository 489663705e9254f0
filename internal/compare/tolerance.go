package compare

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Tolerance is a named absolute-error threshold.
type Tolerance struct {
	Name        string
	Value       float64
	Description string
}

var (
	Strict  = Tolerance{Name: "strict", Value: 1e-12, Description: "bit-identical"}
	Normal  = Tolerance{Name: "normal", Value: 1e-10, Description: "standard floating-point tolerance"}
	Relaxed = Tolerance{Name: "relaxed", Value: 1e-6, Description: "relaxed for performance optimizations"}
)

// Profiles returns the named tolerance profiles, tightest first.
func Profiles() []Tolerance {
	return []Tolerance{Strict, Normal, Relaxed}
}

func (t Tolerance) String() string {
	return fmt.Sprintf("%s (%g)", t.Name, t.Value)
}

// ParseTolerance resolves a profile name (case-insensitive) or a positive
// finite number such as "1e-9".
func ParseTolerance(s string) (Tolerance, error) {
	s = strings.TrimSpace(s)
	for _, p := range Profiles() {
		if strings.EqualFold(s, p.Name) {
			return p, nil
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return Tolerance{}, fmt.Errorf("unknown tolerance %q (want strict, normal, relaxed or a positive finite number)", s)
	}
	return Tolerance{Name: "custom", Value: v, Description: "user supplied"}, nil
}
