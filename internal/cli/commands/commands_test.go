package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldref/internal/cli"
	"goldref/internal/config"
	"goldref/internal/domain"
	"goldref/internal/engine"
	"goldref/internal/engine/enginetest"
)

// newProject lays out circuits/buck.ipes and circuits/power/boost.ipes.
func newProject(t *testing.T) string {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	dir := t.TempDir()
	for _, rel := range []string{"circuits/buck.ipes", "circuits/power/boost.ipes"} {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("circuit"), 0644))
	}
	return dir
}

// scopeEngine returns a factory for engines exposing one scope whose values
// are shifted by offset.
func scopeEngine(offset float64) EngineFactory {
	return func(cfg *config.Config, log *slog.Logger) (engine.Engine, error) {
		return &enginetest.Fake{
			EndTimeValue:  1e-3,
			TimestepValue: 1e-6,
			Control:       []string{"Scope1"},
			Circuit:       []string{"C1"},
			Signals: map[string]enginetest.Signal{
				"Scope1": {Time: []float64{0, 5e-4, 1e-3}, Values: []float64{0, 1 + offset, 2}},
				"C1":     {Time: []float64{0, 1e-3}, Values: []float64{12, 11.5}},
			},
		}, nil
	}
}

func execute(t *testing.T, factory EngineFactory, args ...string) (string, error) {
	t.Helper()
	noWait := func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return executeContext(t, context.Background(), factory, noWait, args...)
}

func executeContext(t *testing.T, ctx context.Context, factory EngineFactory, sleep engine.SleepFunc, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "goldref", SilenceUsage: true, SilenceErrors: true}
	var flags cli.Flags
	cmds := NewCommands()
	if factory != nil {
		cmds.SetEngineFactory(factory)
	}
	cmds.SetSleep(sleep)
	cmds.Register(root, &flags)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestCaptureThenVerify(t *testing.T) {
	project := newProject(t)

	out, err := execute(t, scopeEngine(0), "capture", "--project", project)
	require.NoError(t, err)
	assert.Contains(t, out, "Baseline Capture Statistics")
	assert.Contains(t, out, "✓ All cases passed!")
	assert.FileExists(t, filepath.Join(project, "baselines", "buck", "_metadata.txt"))
	assert.FileExists(t, filepath.Join(project, "baselines", "power", "boost", "circuit_C1.csv"))

	out, err = execute(t, scopeEngine(0), "verify", "--project", project, "--tolerance", "strict")
	require.NoError(t, err)
	assert.Contains(t, out, "Verification Statistics")
	assert.Contains(t, out, "strict (1.0E-12)")
	assert.FileExists(t, filepath.Join(project, "storage", "verify-results.json"))

	out, err = execute(t, nil, "report", "--project", project, "--case", "power/boost.ipes")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "✓ power/boost.ipes"))
	assert.Contains(t, out, "Quick Match:")

	out, err = execute(t, nil, "history", "--project", project)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 5, "header plus two capture and two verify verdicts")
	assert.Contains(t, lines[1], "verify")
	assert.Contains(t, lines[4], "capture")
}

func TestCapture_SkipsExistingBaselines(t *testing.T) {
	project := newProject(t)
	_, err := execute(t, scopeEngine(0), "capture", "--project", project, "--case", "buck.ipes")
	require.NoError(t, err)

	_, err = execute(t, scopeEngine(0), "capture", "--project", project)
	require.NoError(t, err)

	st, err := os.ReadFile(filepath.Join(project, "baselines", "buck", "_metadata.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(st), "circuit=buck.ipes")
}

func TestVerify_DriftFails(t *testing.T) {
	project := newProject(t)
	_, err := execute(t, scopeEngine(0), "capture", "--project", project)
	require.NoError(t, err)

	out, err := execute(t, scopeEngine(1e-3), "verify", "--project", project, "--case", "boost.ipes")
	require.EqualError(t, err, "1 case(s) failed")
	assert.Contains(t, out, "✗ 1 case(s) failed")
	assert.Contains(t, out, "Signal Scope1[1] differs: expected=1.0, actual=1.001")

	out, err = execute(t, nil, "report", "--project", project, "--case", "power/boost.ipes")
	require.NoError(t, err)
	assert.Contains(t, out, "results do not match baseline")
}

func TestVerify_InvalidToleranceFallsBack(t *testing.T) {
	project := newProject(t)
	_, err := execute(t, scopeEngine(0), "capture", "--project", project)
	require.NoError(t, err)

	out, err := execute(t, scopeEngine(0), "verify", "--project", project, "--tolerance", "loose")
	require.NoError(t, err)
	assert.Contains(t, out, "normal (1.0E-10)")
}

func TestVerify_InterruptedRunKeepsFinishedCases(t *testing.T) {
	project := newProject(t)
	_, err := execute(t, scopeEngine(0), "capture", "--project", project)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(project, "goldref.yaml"), []byte("case_pause: 7s\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	interrupt := func(ctx context.Context, d time.Duration) error {
		if d == 7*time.Second {
			cancel()
		}
		return ctx.Err()
	}
	_, err = executeContext(t, ctx, scopeEngine(0), interrupt, "verify", "--project", project)
	require.ErrorIs(t, err, context.Canceled)

	raw, err := os.ReadFile(filepath.Join(project, "storage", "verify-results.json"))
	require.NoError(t, err)
	var run domain.RunOutput
	require.NoError(t, json.Unmarshal(raw, &run))
	require.Len(t, run.Details, 1)
	assert.Equal(t, "buck.ipes", run.Details[0].CaseID)
	assert.Equal(t, domain.StatusPassed, run.Details[0].Status)

	out, err := execute(t, nil, "history", "--project", project)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 4, "header plus two capture verdicts and the finished verify verdict")
	assert.Contains(t, lines[1], "verify")
}

func TestVerify_UnknownCase(t *testing.T) {
	project := newProject(t)
	_, err := execute(t, scopeEngine(0), "verify", "--project", project, "--case", "missing.ipes")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCapture_RequiresEngineCommand(t *testing.T) {
	project := newProject(t)
	_, err := execute(t, nil, "capture", "--project", project)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no engine command configured")
}

func TestList(t *testing.T) {
	project := newProject(t)

	out, err := execute(t, nil, "list", "--project", project)
	require.NoError(t, err)
	assert.Equal(t, "Found 2 case(s):\n\n├── buck.ipes\n└── power/boost.ipes\n", out)

	out, err = execute(t, nil, "list", "--project", project, "--dir", "power")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 case(s)")
}

func TestList_BaselinesAndPrune(t *testing.T) {
	project := newProject(t)
	_, err := execute(t, scopeEngine(0), "capture", "--project", project, "--case", "power/boost.ipes")
	require.NoError(t, err)

	out, err := execute(t, nil, "list", "--project", project, "--baselines")
	require.NoError(t, err)
	assert.Contains(t, out, "├── buck.ipes [-]")
	assert.Contains(t, out, "└── power/boost.ipes [B]")
	assert.Contains(t, out, "1 of 2 case(s) have a baseline")
	assert.NotContains(t, out, "orphaned")

	require.NoError(t, os.Remove(filepath.Join(project, "circuits", "power", "boost.ipes")))
	out, err = execute(t, nil, "list", "--project", project, "--baselines", "--prune")
	require.NoError(t, err)
	assert.Contains(t, out, "1 orphaned baseline(s):\n  power/boost.ipes\n")
	assert.NoDirExists(t, filepath.Join(project, "baselines", "power", "boost"))
}

func TestHistory_Disabled(t *testing.T) {
	project := newProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(project, "goldref.yaml"), []byte("history:\n  driver: none\n"), 0644))

	_, err := execute(t, nil, "history", "--project", project)
	require.ErrorIs(t, err, errHistoryDisabled)
}
