package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"goldref/internal/domain"
)

// Scanner finds simulation artifacts under a root directory
type Scanner struct {
	ext      string
	skipDirs map[string]bool
}

// NewScanner creates a Scanner matching files that end with ext, skipping the
// given directory names
func NewScanner(ext string, skipDirs []string) *Scanner {
	skipMap := make(map[string]bool)
	for _, dir := range skipDirs {
		skipMap[dir] = true
	}
	return &Scanner{ext: ext, skipDirs: skipMap}
}

// Scan returns every artifact under root as a Case whose ID is the path
// relative to root with forward slashes. Results are sorted by ID so the
// same tree always yields the same order. Entries that cannot be read are
// skipped.
func (s *Scanner) Scan(root string) ([]domain.Case, error) {
	var cases []domain.Case

	// Clean and validate the root path
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("circuits path does not exist: %s", root)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("circuits path is not a directory: %s", root)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve circuits path: %w", err)
	}

	err = filepath.WalkDir(absRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != absRoot {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path == absRoot {
				return nil
			}
			name := d.Name()
			// Skip hidden directories (starting with .)
			if strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if s.skipDirs[name] {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.HasSuffix(d.Name(), s.ext) {
			return nil
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		cases = append(cases, domain.Case{ID: filepath.ToSlash(rel), Path: path})
		return nil
	})

	sort.Slice(cases, func(i, j int) bool { return cases[i].ID < cases[j].ID })
	return cases, err
}
