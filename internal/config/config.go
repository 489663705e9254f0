package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	// Project settings
	ProjectPath  string `yaml:"-"`
	CircuitsPath string `yaml:"circuits"`
	BaselinePath string `yaml:"baselines"`
	Extension    string `yaml:"extension"`

	// Output settings
	OutputJSONFile string `yaml:"output_file"`
	OutputJSONDir  string `yaml:"output_dir"`

	// Paths to ignore when scanning
	PathsToIgnore []string `yaml:"ignore"`

	// Run settings
	Mode      string `yaml:"mode"`
	Tolerance string `yaml:"tolerance"`
	// CasePause overrides the mode's pause between cases when >= 0
	CasePause time.Duration `yaml:"case_pause"`

	Engine  EngineConfig  `yaml:"engine"`
	History HistoryConfig `yaml:"history"`
	Log     LogConfig     `yaml:"log"`

	// Command flags
	Flags Flags `yaml:"-"`
}

// EngineConfig describes the subprocess engine.
type EngineConfig struct {
	Command     string        `yaml:"command"`
	Args        []string      `yaml:"args"`
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// HistoryConfig selects the verdict history backend: "sqlite", "mysql" or "none".
type HistoryConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// LogConfig configures operational logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

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

// Profile holds the wait bounds of a run mode.
type Profile struct {
	BootstrapTimeout time.Duration
	BootstrapPoll    time.Duration
	BootSettle       time.Duration
	LoadSettle       time.Duration
	PollInterval     time.Duration
	MaxWait          time.Duration
	ProgressEvery    time.Duration
	CasePause        time.Duration
}

// New creates a new Config with defaults
func New() *Config {
	cfg := &Config{
		ProjectPath:    DefaultProjectPath,
		CircuitsPath:   DefaultCircuitsPath,
		BaselinePath:   DefaultBaselinePath,
		Extension:      DefaultExtension,
		OutputJSONFile: DefaultOutputJSONFile,
		OutputJSONDir:  DefaultOutputJSONDir,
		Mode:           ModeHeadless,
		Tolerance:      DefaultTolerance,
		CasePause:      -1,
		Engine:         EngineConfig{CallTimeout: DefaultCallTimeout},
		History:        HistoryConfig{Driver: DefaultHistoryDriver},
		Log:            LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
	}
	// Copy default paths to ignore
	cfg.PathsToIgnore = make([]string, len(DefaultPathsToIgnore))
	copy(cfg.PathsToIgnore, DefaultPathsToIgnore)
	return cfg
}

// Load builds the config for a command.
// Order: defaults -> <project>/.env -> config file -> GOLDREF_* env -> flags
func Load(flags Flags) (*Config, error) {
	cfg := New()
	cfg.Flags = flags
	if flags.Project != "" {
		cfg.ProjectPath = flags.Project
	}

	// .env might not exist, that's okay - use environment variables
	_ = godotenv.Load(filepath.Join(cfg.ProjectPath, ".env"))

	configFile := flags.ConfigFile
	if configFile == "" {
		candidate := filepath.Join(cfg.ProjectPath, DefaultConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
		}
	}
	if configFile != "" {
		if err := cfg.LoadFile(configFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	// Apply flag overrides
	if flags.Mode != "" {
		cfg.Mode = flags.Mode
	}
	if flags.Tolerance != "" {
		cfg.Tolerance = flags.Tolerance
	}
	if flags.LogLevel != "" {
		cfg.Log.Level = flags.LogLevel
	}
	if flags.LogFormat != "" {
		cfg.Log.Format = flags.LogFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile merges a YAML config file into c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"GOLDREF_CIRCUITS":       &c.CircuitsPath,
		"GOLDREF_BASELINES":      &c.BaselinePath,
		"GOLDREF_EXTENSION":      &c.Extension,
		"GOLDREF_MODE":           &c.Mode,
		"GOLDREF_TOLERANCE":      &c.Tolerance,
		"GOLDREF_ENGINE_COMMAND": &c.Engine.Command,
		"GOLDREF_HISTORY_DRIVER": &c.History.Driver,
		"GOLDREF_HISTORY_DSN":    &c.History.DSN,
		"GOLDREF_LOG_LEVEL":      &c.Log.Level,
		"GOLDREF_LOG_FORMAT":     &c.Log.Format,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("GOLDREF_ENGINE_ARGS"); v != "" {
		c.Engine.Args = strings.Fields(v)
	}
	if v := os.Getenv("GOLDREF_CALL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("GOLDREF_CALL_TIMEOUT: %w", err)
		}
		c.Engine.CallTimeout = d
	}
	if v := os.Getenv("GOLDREF_CASE_PAUSE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("GOLDREF_CASE_PAUSE: %w", err)
		}
		c.CasePause = d
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if _, ok := profiles[c.Mode]; !ok {
		return fmt.Errorf("invalid mode: %s (valid: %s, %s)", c.Mode, ModeHeadless, ModeInteractive)
	}
	switch c.History.Driver {
	case "sqlite", "mysql", "none", "":
	default:
		return fmt.Errorf("invalid history driver: %s (valid: sqlite, mysql, none)", c.History.Driver)
	}
	if c.Engine.CallTimeout <= 0 {
		return errors.New("engine call_timeout must be positive")
	}
	if c.Extension != "" && !strings.HasPrefix(c.Extension, ".") {
		c.Extension = "." + c.Extension
	}
	return nil
}

// Profile returns the wait bounds of the configured mode.
func (c *Config) Profile() Profile {
	p, ok := profiles[c.Mode]
	if !ok {
		p = profiles[ModeHeadless]
	}
	if c.CasePause >= 0 {
		p.CasePause = c.CasePause
	}
	return p
}

// GetCircuitsPath returns the directory scanned for artifacts
func (c *Config) GetCircuitsPath() string {
	return c.resolve(c.CircuitsPath)
}

// GetBaselinePath returns the baseline root directory
func (c *Config) GetBaselinePath() string {
	return c.resolve(c.BaselinePath)
}

// GetOutputPath returns the full path to the output JSON file.
// Resolves to an absolute path so verify and report always use the same file regardless of cwd.
func (c *Config) GetOutputPath() string {
	p := filepath.Join(c.ProjectPath, c.OutputJSONDir, c.OutputJSONFile)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// GetHistoryDSN returns the sqlite file path, or the configured DSN for other drivers
func (c *Config) GetHistoryDSN() string {
	if c.History.DSN != "" || c.History.Driver != "sqlite" {
		return c.History.DSN
	}
	return filepath.Join(c.ProjectPath, c.OutputJSONDir, DefaultHistoryFile)
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ProjectPath, p)
}
