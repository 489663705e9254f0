package config

import "time"

const (
	// DefaultProjectPath is the default project path
	DefaultProjectPath = "."
	// DefaultCircuitsPath is the directory scanned for simulation artifacts
	DefaultCircuitsPath = "circuits"
	// DefaultBaselinePath is the baseline root directory
	DefaultBaselinePath = "baselines"
	// DefaultExtension is the artifact file extension
	DefaultExtension = ".ipes"
	// DefaultOutputJSONFile is the default output JSON file name
	DefaultOutputJSONFile = "verify-results.json"
	// DefaultOutputJSONDir is the default output directory
	DefaultOutputJSONDir = "storage"
	// DefaultConfigFile is the optional config file looked up in the project directory
	DefaultConfigFile = "goldref.yaml"
	// DefaultTolerance is the tolerance profile used when none is given
	DefaultTolerance = "normal"
	// DefaultHistoryDriver is the verdict history backend
	DefaultHistoryDriver = "sqlite"
	// DefaultHistoryFile is the sqlite file under the output directory
	DefaultHistoryFile = "history.db"
	// DefaultCallTimeout bounds a single request to a subprocess engine
	DefaultCallTimeout = 30 * time.Second
	// DefaultLogLevel is the default slog level
	DefaultLogLevel = "info"
	// DefaultLogFormat is the default slog handler format
	DefaultLogFormat = "text"

	// DefaultEndTime substitutes the simulated end time when the engine cannot report it
	DefaultEndTime = 0.01
	// DefaultTimestep substitutes the timestep when the engine cannot report it
	DefaultTimestep = 1e-6
)

const (
	// ModeHeadless runs the engine without a display
	ModeHeadless = "headless"
	// ModeInteractive runs the engine with a display and longer waits
	ModeInteractive = "interactive"
)

// DefaultPathsToIgnore are the directories skipped when scanning for artifacts
var DefaultPathsToIgnore = []string{
	".git",
	"baselines",
	"storage",
	"node_modules",
	"target",
	"build",
}

var profiles = map[string]Profile{
	ModeHeadless: {
		BootstrapTimeout: 60 * time.Second,
		BootstrapPoll:    10 * time.Millisecond,
		BootSettle:       2 * time.Second,
		LoadSettle:       500 * time.Millisecond,
		PollInterval:     500 * time.Millisecond,
		MaxWait:          5 * time.Minute,
		ProgressEvery:    30 * time.Second,
		CasePause:        0,
	},
	ModeInteractive: {
		BootstrapTimeout: 120 * time.Second,
		BootstrapPoll:    10 * time.Millisecond,
		BootSettle:       5 * time.Second,
		LoadSettle:       2 * time.Second,
		PollInterval:     time.Second,
		MaxWait:          10 * time.Minute,
		ProgressEvery:    30 * time.Second,
		CasePause:        time.Second,
	},
}
