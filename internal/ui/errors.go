package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"goldref/internal/domain"
	"goldref/internal/storage"
)

// ReportViewer displays the failed cases of a stored run in an interactive TUI
type ReportViewer struct {
	storage storage.Storage
}

// NewReportViewer creates a new ReportViewer
func NewReportViewer(st storage.Storage) *ReportViewer {
	return &ReportViewer{storage: st}
}

// View displays failed cases with their comparison details. Pressing R
// toggles a case's resolved flag, which is saved back to the run file.
func (rv *ReportViewer) View(run *domain.RunOutput) error {
	failed := failedIndexes(run)
	if len(failed) == 0 {
		color.Green("✓ No failed cases in the last run!")
		return nil
	}

	app := tview.NewApplication()

	list := tview.NewList().
		ShowSecondaryText(false).
		SetHighlightFullLine(true)

	for n, idx := range failed {
		list.AddItem(listItemText(n, run.Details[idx]), "", 0, nil)
	}

	list.SetMainTextColor(tview.Styles.PrimaryTextColor).
		SetSelectedTextColor(tcell.ColorWhite).
		SetSelectedBackgroundColor(tcell.ColorDarkCyan).
		SetSecondaryTextColor(tview.Styles.SecondaryTextColor)

	statsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false).
		SetWordWrap(false)

	detailsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true).
		SetWordWrap(true)

	detailsContainer := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(detailsView, 0, 1, false).
		AddItem(tview.NewBox(), 2, 0, false)

	rightSide := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(statsView, 3, 0, false).
		AddItem(detailsContainer, 0, 1, false)

	// list on left (1/3), details on right (2/3)
	flex := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(list, 0, 1, true).
		AddItem(rightSide, 0, 2, false)

	headerView := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true)

	updateHeader := func() {
		headerView.SetText(fmt.Sprintf(" %s run %s: %d failed, %d unresolved | ↑↓ navigate, [yellow]R[white] mark resolved, → details, ← back, Ctrl+C exit ",
			run.Meta.Kind, shortID(run.Meta.RunID), len(failed), countUnresolved(run, failed)))
	}
	updateHeader()

	updateDetails := func() {
		n := list.GetCurrentItem()
		if n < 0 || n >= len(failed) {
			return
		}
		o := run.Details[failed[n]]
		statsView.SetText(formatStats(run.Meta, o))
		detailsView.SetText(FormatOutcome(o, true))
		detailsView.ScrollToBeginning()
	}

	list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEnter, tcell.KeyRight:
			app.SetFocus(detailsView)
			return nil
		case tcell.KeyCtrlC:
			app.Stop()
			return nil
		case tcell.KeyRune:
			if event.Rune() == 'r' || event.Rune() == 'R' {
				n := list.GetCurrentItem()
				if n >= 0 && n < len(failed) {
					ToggleResolved(run, failed[n])
					list.SetItemText(n, listItemText(n, run.Details[failed[n]]), "")
					updateHeader()
					updateDetails()
					// Keep the TUI running; the flag is saved again on the next toggle.
					_ = rv.storage.SaveOutput(run)
				}
				return nil
			}
		}
		return event
	})

	detailsView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyLeft, tcell.KeyEsc:
			app.SetFocus(list)
			return nil
		case tcell.KeyCtrlC:
			app.Stop()
			return nil
		}
		return event
	})

	list.SetChangedFunc(func(index int, mainText string, secondaryText string, shortcut rune) {
		updateDetails()
	})
	updateDetails()

	mainLayout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(headerView, 1, 0, false).
		AddItem(tview.NewBox(), 1, 0, false).
		AddItem(flex, 0, 1, true)

	if err := app.SetRoot(mainLayout, true).SetFocus(list).Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// ToggleResolved flips the resolved flag of the outcome at index.
func ToggleResolved(run *domain.RunOutput, index int) {
	run.Details[index].Resolved = !run.Details[index].Resolved
}

func failedIndexes(run *domain.RunOutput) []int {
	var idx []int
	for i, d := range run.Details {
		if d.Status == domain.StatusFailed {
			idx = append(idx, i)
		}
	}
	return idx
}

func countUnresolved(run *domain.RunOutput, failed []int) int {
	count := 0
	for _, i := range failed {
		if !run.Details[i].Resolved {
			count++
		}
	}
	return count
}

func listItemText(n int, o domain.CaseOutcome) string {
	if o.Resolved {
		return fmt.Sprintf("[gray]✓ [yellow]%d.[gray] %s[white]", n+1, o.CaseID)
	}
	return fmt.Sprintf("[yellow]%d.[white] %s", n+1, o.CaseID)
}

// formatStats formats the header line above the details of a case
func formatStats(meta domain.RunMeta, o domain.CaseOutcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[cyan]case:[white] [yellow]%s[white]", o.CaseID)
	if meta.Tolerance != "" {
		fmt.Fprintf(&b, "  [cyan]tolerance:[white] %s", meta.Tolerance)
	}
	fmt.Fprintf(&b, "  [cyan]duration:[white] %.2fs\n", o.DurationSeconds)
	return b.String()
}
