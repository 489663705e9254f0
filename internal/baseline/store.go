// Package baseline persists sealed results as trusted baselines using a
// directory-per-case layout:
//
//	<root>/<case-id-without-extension>/
//	    _metadata.txt   key=value lines (circuit, simulationTime, timestep, checksum, signalCount, signals, names)
//	    <signal>.csv    "time,value" header followed by one row per sample
//
// Writes are not transactional; a crash mid-save can leave an incomplete
// baseline behind.
package baseline

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"goldref/internal/domain"
	"goldref/internal/result"
)

const (
	// MetadataFile is the per-case metadata record.
	MetadataFile = "_metadata.txt"
	// SignalExt is the extension of per-signal tables.
	SignalExt = ".csv"
)

var (
	// ErrExists is returned when saving over a baseline without overwrite.
	ErrExists = errors.New("baseline already exists")

	// ErrNameCollision is returned when two signal names sanitize to the same file.
	ErrNameCollision = errors.New("signal names collide after sanitizing")

	// ErrManifestMismatch is returned when the stored tables disagree with the metadata manifest.
	ErrManifestMismatch = errors.New("signal tables do not match manifest")

	// ErrIntegrity is returned when a recomputed fingerprint differs from the stored one.
	ErrIntegrity = errors.New("fingerprint does not match stored checksum")
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeName replaces every character outside [A-Za-z0-9._-] with '_'.
func SanitizeName(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// Store reads and writes baselines under a root directory
type Store struct {
	root string
	ext  string // Artifact extension stripped from case ids, e.g. ".ipes"
}

// NewStore creates a Store rooted at root. ext is the artifact extension
// removed from case ids to form directory names.
func NewStore(root, ext string) *Store {
	return &Store{root: root, ext: ext}
}

// Root returns the baseline root directory.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the directory holding the baseline of caseID.
func (s *Store) Dir(caseID string) (string, error) {
	rel := strings.ReplaceAll(caseID, "\\", "/")
	if s.ext != "" {
		rel = strings.TrimSuffix(rel, s.ext)
	} else {
		rel = strings.TrimSuffix(rel, path.Ext(rel))
	}
	rel = path.Clean(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") || path.IsAbs(rel) {
		return "", fmt.Errorf("invalid case id %q", caseID)
	}
	return filepath.Join(s.root, filepath.FromSlash(rel)), nil
}

// Exists reports whether the metadata record of caseID is present and readable.
func (s *Store) Exists(caseID string) bool {
	dir, err := s.Dir(caseID)
	if err != nil {
		return false
	}
	f, err := os.Open(filepath.Join(dir, MetadataFile))
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// Save writes r as the baseline of its case. An existing baseline is only
// replaced when overwrite is set; its old signal tables are removed first.
func (s *Store) Save(r *result.Result, overwrite bool) error {
	dir, err := s.Dir(r.CaseID())
	if err != nil {
		return err
	}
	if s.Exists(r.CaseID()) && !overwrite {
		return fmt.Errorf("%s: %w", r.CaseID(), ErrExists)
	}

	stems := make([]string, 0, r.Len())
	owner := make(map[string]string, r.Len())
	for _, name := range r.Names() {
		stem := SanitizeName(name)
		if prev, ok := owner[stem]; ok {
			return fmt.Errorf("%s: %q and %q: %w", r.CaseID(), prev, name, ErrNameCollision)
		}
		owner[stem] = name
		stems = append(stems, stem)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create baseline dir: %w", err)
	}
	if overwrite {
		if err := removeTables(dir); err != nil {
			return err
		}
	}

	meta := Metadata{
		CaseID:      r.CaseID(),
		EndTime:     r.EndTime(),
		Timestep:    r.Timestep(),
		Fingerprint: r.Fingerprint(),
		SignalCount: r.Len(),
		Signals:     stems,
		Names:       r.Names(),
	}
	if err := writeMetadata(filepath.Join(dir, MetadataFile), meta); err != nil {
		return err
	}

	for i, sig := range r.Signals() {
		if err := writeSignal(filepath.Join(dir, stems[i]+SignalExt), sig); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the baseline of caseID and seals it. The fingerprint is
// recomputed from the loaded tables; the stored one is returned in Metadata
// so callers can run CheckIntegrity.
//
// With a manifest, exactly the listed tables are read in manifest order and
// take the signal names recorded next to it. Baselines written without one
// are read leniently: every table in the directory becomes a signal, in
// lexical file order, named after its file.
func (s *Store) Load(caseID string) (*result.Result, Metadata, error) {
	dir, err := s.Dir(caseID)
	if err != nil {
		return nil, Metadata{}, err
	}
	meta, err := readMetadata(filepath.Join(dir, MetadataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, Metadata{}, fmt.Errorf("baseline for %s: %w", caseID, domain.ErrNotFound)
		}
		return nil, Metadata{}, err
	}

	present, err := listTables(dir)
	if err != nil {
		return nil, meta, err
	}

	stems := present
	if meta.Signals != nil {
		if err := checkManifest(meta.Signals, present); err != nil {
			return nil, meta, fmt.Errorf("baseline for %s: %w", caseID, err)
		}
		stems = meta.Signals
	}
	names := stems
	if meta.Names != nil {
		if meta.Signals == nil || len(meta.Names) != len(meta.Signals) {
			return nil, meta, fmt.Errorf("baseline for %s: %d names for %d signals: %w",
				caseID, len(meta.Names), len(stems), ErrManifestMismatch)
		}
		names = meta.Names
	}

	b := result.NewBuilder(caseID, meta.EndTime, meta.Timestep)
	for i, stem := range stems {
		times, values, err := readSignal(filepath.Join(dir, stem+SignalExt))
		if err != nil {
			return nil, meta, err
		}
		if err := b.Add(names[i], times, values); err != nil {
			return nil, meta, err
		}
	}
	return b.Seal(), meta, nil
}

// Remove deletes the baseline directory of caseID.
func (s *Store) Remove(caseID string) error {
	dir, err := s.Dir(caseID)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

// List returns the case ids of all stored baselines, sorted.
func (s *Store) List() ([]string, error) {
	if _, err := os.Stat(s.root); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	var ids []string
	err := filepath.WalkDir(s.root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != MetadataFile {
			return nil
		}
		meta, err := readMetadata(p)
		if err != nil || meta.CaseID == "" {
			rel, relErr := filepath.Rel(s.root, filepath.Dir(p))
			if relErr != nil {
				return nil
			}
			ids = append(ids, filepath.ToSlash(rel)+s.ext)
			return nil
		}
		ids = append(ids, meta.CaseID)
		return nil
	})
	sort.Strings(ids)
	return ids, err
}

// CheckIntegrity compares the stored checksum with the fingerprint of the
// loaded result. A baseline without a stored checksum passes.
func CheckIntegrity(meta Metadata, r *result.Result) error {
	if meta.Fingerprint == "" || meta.Fingerprint == r.Fingerprint() {
		return nil
	}
	return fmt.Errorf("%s: stored %s, recomputed %s: %w", r.CaseID(), meta.Fingerprint, r.Fingerprint(), ErrIntegrity)
}

func listTables(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read baseline dir: %w", err)
	}
	var stems []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), SignalExt) {
			continue
		}
		stems = append(stems, strings.TrimSuffix(e.Name(), SignalExt))
	}
	return stems, nil
}

func removeTables(dir string) error {
	stems, err := listTables(dir)
	if err != nil {
		return err
	}
	for _, stem := range stems {
		if err := os.Remove(filepath.Join(dir, stem+SignalExt)); err != nil {
			return fmt.Errorf("remove stale table: %w", err)
		}
	}
	return nil
}

func checkManifest(manifest, present []string) error {
	onDisk := make(map[string]bool, len(present))
	for _, stem := range present {
		onDisk[stem] = true
	}
	listed := make(map[string]bool, len(manifest))
	var missing, stray []string
	for _, stem := range manifest {
		listed[stem] = true
		if !onDisk[stem] {
			missing = append(missing, stem)
		}
	}
	for _, stem := range present {
		if !listed[stem] {
			stray = append(stray, stem)
		}
	}
	if len(missing) == 0 && len(stray) == 0 {
		return nil
	}
	return fmt.Errorf("%w: missing [%s], unlisted [%s]", ErrManifestMismatch,
		strings.Join(missing, ", "), strings.Join(stray, ", "))
}
