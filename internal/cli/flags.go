package cli

import "goldref/internal/config"

// Flags holds command-line flags
type Flags struct {
	Project    string
	ConfigFile string
	LogLevel   string
	LogFormat  string

	Dir       string
	Filter    string
	Case      string
	Mode      string
	Tolerance string
	Overwrite bool
	Verify    bool
	Baselines bool
	Prune     bool
	Limit     int
}

// ToConfigFlags converts CLI flags to config flags
func (f *Flags) ToConfigFlags() config.Flags {
	return config.Flags{
		Project:    f.Project,
		ConfigFile: f.ConfigFile,
		LogLevel:   f.LogLevel,
		LogFormat:  f.LogFormat,
		Dir:        f.Dir,
		Filter:     f.Filter,
		Case:       f.Case,
		Mode:       f.Mode,
		Tolerance:  f.Tolerance,
		Overwrite:  f.Overwrite,
		Verify:     f.Verify,
		Baselines:  f.Baselines,
		Prune:      f.Prune,
		Limit:      f.Limit,
	}
}
