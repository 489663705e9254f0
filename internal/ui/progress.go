package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"goldref/internal/domain"
)

// ProgressBar creates and manages progress bars
type ProgressBar struct {
	bar   *progressbar.ProgressBar
	label string
}

// NewProgressBar creates a new progress bar over count cases, e.g. "Capturing"
func NewProgressBar(count int, label string) *ProgressBar {
	bar := progressbar.NewOptions(count,
		progressbar.OptionSetDescription(describe(label, domain.Summary{})),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        color.CyanString("█"),
			SaucerHead:    color.CyanString("█"),
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)

	return &ProgressBar{bar: bar, label: label}
}

// Update updates the progress bar with the running summary
func (p *ProgressBar) Update(summary domain.Summary) {
	p.bar.Set(summary.Total)
	p.bar.Describe(describe(p.label, summary))
}

// Finish completes the progress bar
func (p *ProgressBar) Finish() {
	p.bar.Finish()
}

func describe(label string, s domain.Summary) string {
	return color.CyanString("%s: ", label) +
		color.GreenString("[passed: %d", s.Succeeded) +
		" | " +
		color.RedString("failed: %d", s.Failed) +
		" | " +
		color.YellowString("skipped: %d]", s.Skipped)
}
