package domain

import (
	"path"
	"strings"
)

// Case represents one simulation input under regression verification
type Case struct {
	ID   string // Path relative to the circuits root, always with forward slashes
	Path string // Full path to the artifact on disk
}

// Name returns just the artifact file name
func (c Case) Name() string {
	return path.Base(c.ID)
}

// Dir returns the directory part of the case id ("" for top-level cases)
func (c Case) Dir() string {
	dir := path.Dir(c.ID)
	if dir == "." {
		return ""
	}
	return dir
}

// InDir reports whether the case lives under the given relative directory.
func (c Case) InDir(dir string) bool {
	dir = strings.Trim(strings.ReplaceAll(dir, "\\", "/"), "/")
	if dir == "" {
		return true
	}
	return c.ID == dir || strings.HasPrefix(c.ID, dir+"/")
}
