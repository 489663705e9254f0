package discovery

import (
	"path/filepath"
	"strings"

	"goldref/internal/domain"
)

// Filter narrows discovered cases
type Filter struct{}

// NewFilter creates a new Filter
func NewFilter() *Filter {
	return &Filter{}
}

// FilterByName filters cases by artifact file name using wildcard matching.
// Supports patterns like "*buck*.ipes" or "*Boost*"; a pattern without
// wildcards matches as a substring.
func (f *Filter) FilterByName(cases []domain.Case, pattern string) []domain.Case {
	if pattern == "" {
		return cases
	}

	var filtered []domain.Case
	for _, c := range cases {
		if matchName(c.Name(), pattern) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// FilterByDir keeps cases under the given directory, relative to the circuits root
func (f *Filter) FilterByDir(cases []domain.Case, dir string) []domain.Case {
	if strings.Trim(dir, "/\\") == "" {
		return cases
	}
	var filtered []domain.Case
	for _, c := range cases {
		if c.InDir(dir) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// FindByID returns the case whose ID equals id. A bare file name is accepted
// when it identifies exactly one case.
func (f *Filter) FindByID(cases []domain.Case, id string) (domain.Case, bool) {
	id = strings.ReplaceAll(id, "\\", "/")
	var byName []domain.Case
	for _, c := range cases {
		if c.ID == id {
			return c, true
		}
		if c.Name() == id {
			byName = append(byName, c)
		}
	}
	if len(byName) == 1 {
		return byName[0], true
	}
	return domain.Case{}, false
}

func matchName(name, pattern string) bool {
	// filepath.Match supports * and ? wildcards
	if matched, err := filepath.Match(pattern, name); err == nil && matched {
		return true
	}

	if strings.Contains(pattern, "*") {
		// Fall back to requiring every non-empty part, for patterns like "*Boost*"
		hasPart := false
		for _, part := range strings.Split(pattern, "*") {
			if part == "" {
				continue
			}
			hasPart = true
			if !strings.Contains(name, part) {
				return false
			}
		}
		return hasPart
	}

	if !strings.Contains(pattern, "?") {
		return strings.Contains(name, pattern)
	}
	return false
}
