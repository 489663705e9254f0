package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"goldref/internal/baseline"
	"goldref/internal/cli"
	"goldref/internal/config"
	"goldref/internal/discovery"
	"goldref/internal/domain"
	"goldref/internal/engine"
	"goldref/internal/logging"
	"goldref/internal/storage"
	"goldref/internal/ui"
)

// EngineFactory builds the simulation engine for a capture or verify run.
type EngineFactory func(cfg *config.Config, log *slog.Logger) (engine.Engine, error)

// Env holds the dependencies of one invocation, built after flags are parsed
type Env struct {
	Config    *config.Config
	Log       *slog.Logger
	Scanner   *discovery.Scanner
	Filter    *discovery.Filter
	Baselines *baseline.Store
	Storage   storage.Storage
	Formatter *ui.Formatter
	NewEngine EngineFactory
	Sleep     engine.SleepFunc // nil sleeps for real
}

// Commands holds all CLI commands
type Commands struct {
	env     *Env
	List    *ListCommand
	Capture *CaptureCommand
	Verify  *VerifyCommand
	Report  *ReportCommand
	History *HistoryCommand
}

// NewCommands creates all commands sharing one Env that Register fills in
// before any command runs
func NewCommands() *Commands {
	env := &Env{NewEngine: ProcessEngine}
	return &Commands{
		env:     env,
		List:    &ListCommand{env: env},
		Capture: &CaptureCommand{env: env},
		Verify:  &VerifyCommand{env: env},
		Report:  &ReportCommand{env: env},
		History: &HistoryCommand{env: env},
	}
}

// SetEngineFactory replaces the engine constructor, e.g. with a scripted engine in tests.
func (c *Commands) SetEngineFactory(f EngineFactory) {
	c.env.NewEngine = f
}

// SetSleep replaces every bounded wait of capture and verify runs.
func (c *Commands) SetSleep(fn engine.SleepFunc) {
	c.env.Sleep = fn
}

// ProcessEngine builds a subprocess engine from the engine section of cfg.
func ProcessEngine(cfg *config.Config, log *slog.Logger) (engine.Engine, error) {
	if cfg.Engine.Command == "" {
		return nil, fmt.Errorf("no engine command configured (set engine.command in %s or GOLDREF_ENGINE_COMMAND)", config.DefaultConfigFile)
	}
	return engine.NewProcessEngine(cfg.Engine.Command, cfg.Engine.Args, cfg.Engine.CallTimeout, log,
		engine.WithDir(cfg.ProjectPath)), nil
}

func (c *Commands) setup(cmd *cobra.Command, flags *cli.Flags) error {
	cfg, err := config.Load(flags.ToConfigFlags())
	if err != nil {
		return err
	}
	c.env.Config = cfg
	c.env.Log = logging.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	c.env.Scanner = discovery.NewScanner(cfg.Extension, cfg.PathsToIgnore)
	c.env.Filter = discovery.NewFilter()
	c.env.Baselines = baseline.NewStore(cfg.GetBaselinePath(), cfg.Extension)
	c.env.Storage = storage.NewJSONStorage(cfg)
	out := cmd.OutOrStdout()
	if out == os.Stdout {
		out = color.Output
	}
	c.env.Formatter = ui.NewFormatterTo(out)
	return nil
}

// selectCases discovers cases and applies --dir, --filter and --case.
func (e *Env) selectCases() ([]domain.Case, error) {
	cases, err := e.Scanner.Scan(e.Config.GetCircuitsPath())
	if err != nil {
		return nil, err
	}
	flags := e.Config.Flags
	cases = e.Filter.FilterByDir(cases, flags.Dir)
	cases = e.Filter.FilterByName(cases, flags.Filter)
	if flags.Case != "" {
		c, ok := e.Filter.FindByID(cases, flags.Case)
		if !ok {
			return nil, fmt.Errorf("case %s: %w", flags.Case, domain.ErrNotFound)
		}
		cases = []domain.Case{c}
	}
	return cases, nil
}

// Register registers all commands with cobra
func (c *Commands) Register(rootCmd *cobra.Command, flags *cli.Flags) {
	rootCmd.PersistentFlags().StringVar(&flags.Project, "project", "", "Project directory holding circuits, baselines and storage (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&flags.ConfigFile, "config", "", "Config file (default: <project>/goldref.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flags.LogFormat, "log-format", "", "Log format: text or json")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Build config and dependencies after flags are parsed
		return c.setup(cmd, flags)
	}

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered circuit cases",
		Long:  "Scan the circuits directory and list every case without running the engine",
		RunE:  c.List.Execute,
	}
	listCmd.Flags().StringVarP(&flags.Dir, "dir", "d", "", "Only cases under this subdirectory of the circuits path")
	listCmd.Flags().StringVarP(&flags.Filter, "filter", "f", "", "Filter cases by file name pattern (supports wildcards, e.g. 'buck*' or '*converter*')")
	listCmd.Flags().BoolVarP(&flags.Baselines, "baselines", "b", false, "Mark cases that have a baseline and report orphaned baselines")
	listCmd.Flags().BoolVar(&flags.Prune, "prune", false, "With --baselines, delete orphaned baselines")
	rootCmd.AddCommand(listCmd)

	// Capture command
	captureCmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture baselines",
		Long:  "Run every selected case in the engine and store its waveforms as the golden reference",
		RunE:  c.Capture.Execute,
	}
	addSelectionFlags(captureCmd, flags)
	captureCmd.Flags().BoolVar(&flags.Overwrite, "overwrite", false, "Replace existing baselines")
	captureCmd.Flags().BoolVar(&flags.Verify, "verify", false, "Run each case twice and check the results are reproducible")
	rootCmd.AddCommand(captureCmd)

	// Verify command
	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify cases against their baselines",
		Long:  "Run every selected case and compare it with its stored baseline under a tolerance",
		RunE:  c.Verify.Execute,
	}
	addSelectionFlags(verifyCmd, flags)
	verifyCmd.Flags().StringVarP(&flags.Tolerance, "tolerance", "t", "", "Tolerance profile (strict, normal, relaxed) or a positive number")
	rootCmd.AddCommand(verifyCmd)

	// Report command
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "View failures of the last verification interactively",
		Long:  "Display failed cases of the last verification run; with --case, print one case's comparison details",
		RunE:  c.Report.Execute,
	}
	reportCmd.Flags().StringVarP(&flags.Case, "case", "c", "", "Print the details of one case instead of opening the viewer")
	rootCmd.AddCommand(reportCmd)

	// History command
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded verdicts",
		Long:  "List recent per-case verdicts from the history database, newest first",
		RunE:  c.History.Execute,
	}
	historyCmd.Flags().StringVarP(&flags.Case, "case", "c", "", "Only verdicts of this case id")
	historyCmd.Flags().IntVarP(&flags.Limit, "limit", "n", 20, "Maximum number of verdicts")
	rootCmd.AddCommand(historyCmd)
}

func addSelectionFlags(cmd *cobra.Command, flags *cli.Flags) {
	cmd.Flags().StringVarP(&flags.Dir, "dir", "d", "", "Only cases under this subdirectory of the circuits path")
	cmd.Flags().StringVarP(&flags.Filter, "filter", "f", "", "Filter cases by file name pattern (supports wildcards)")
	cmd.Flags().StringVarP(&flags.Case, "case", "c", "", "Run a single case by id or unique file name")
	cmd.Flags().StringVarP(&flags.Mode, "mode", "m", "", "Run mode: headless or interactive")
}
