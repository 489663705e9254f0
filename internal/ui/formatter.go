package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/rivo/tview"

	"goldref/internal/domain"
	"goldref/internal/history"
	"goldref/internal/result"
)

var (
	cyan   = color.New(color.FgCyan)
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	white  = color.New(color.FgWhite)
	gray   = color.New(color.FgHiBlack)
)

// Formatter formats and displays output
type Formatter struct {
	out io.Writer
}

// NewFormatter creates a Formatter writing to the colour-aware stdout
func NewFormatter() *Formatter {
	return NewFormatterTo(color.Output)
}

// NewFormatterTo creates a Formatter writing to w
func NewFormatterTo(w io.Writer) *Formatter {
	return &Formatter{out: w}
}

// PrintSummary displays the statistics table of a run followed by its failures
func (f *Formatter) PrintSummary(run *domain.RunOutput) {
	meta := run.Meta
	title := "Baseline Capture Statistics"
	if meta.Kind == "verify" {
		title = "Verification Statistics"
	}

	fmt.Fprintln(f.out)
	cyan.Fprintln(f.out, "╔═══════════════════════════════════════════════════════════════╗")
	cyan.Fprintf(f.out, "║ %-61s ║\n", centered(title, 61))
	cyan.Fprintln(f.out, "╚═══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(f.out)

	fmt.Fprintln(f.out, "┌─────────────────────────────────┬─────────────────────────────┐")
	f.row("Total Cases", white, fmt.Sprint(meta.Summary.Total))
	f.separator()
	f.row("Passed", green, fmt.Sprint(meta.Summary.Succeeded))
	f.separator()
	f.row("Failed", red, fmt.Sprint(meta.Summary.Failed))
	f.separator()
	f.row("Skipped", yellow, fmt.Sprint(meta.Summary.Skipped))
	f.separator()
	if meta.Tolerance != "" {
		f.row("Tolerance", white, fmt.Sprintf("%s (%s)", meta.Tolerance, result.FormatDecimal(meta.ToleranceValue)))
		f.separator()
	}
	f.row("Mode", white, meta.Mode)
	f.separator()
	f.row("Duration", white, fmt.Sprintf("%.2fs", meta.DurationSeconds))
	f.separator()
	f.row("Timestamp", white, meta.Timestamp)
	fmt.Fprintln(f.out, "└─────────────────────────────────┴─────────────────────────────┘")

	fmt.Fprintln(f.out)
	failures := run.Failures()
	if len(failures) == 0 {
		green.Fprintln(f.out, "✓ All cases passed!")
		return
	}
	red.Fprintf(f.out, "✗ %d case(s) failed\n", len(failures))
	fmt.Fprintln(f.out)
	f.printFailedTree(failures)
}

func (f *Formatter) row(label string, c *color.Color, value string) {
	fmt.Fprintf(f.out, "│ %-31s │ ", label)
	c.Fprintf(f.out, "%-27s", value)
	fmt.Fprintln(f.out, " │")
}

func (f *Formatter) separator() {
	fmt.Fprintln(f.out, "├─────────────────────────────────┼─────────────────────────────┤")
}

func centered(s string, width int) string {
	pad := width - len([]rune(s))
	if pad <= 0 {
		return s
	}
	return strings.Repeat(" ", pad/2) + s
}

// TreeNode represents a node in the case directory tree
type TreeNode struct {
	Name     string
	Children map[string]*TreeNode
	Outcome  *domain.CaseOutcome
}

// printFailedTree prints failed cases grouped by directory with their messages
func (f *Formatter) printFailedTree(failures []domain.CaseOutcome) {
	root := &TreeNode{Children: make(map[string]*TreeNode)}
	for i := range failures {
		current := root
		for _, part := range strings.Split(failures[i].CaseID, "/") {
			if part == "" {
				continue
			}
			if current.Children[part] == nil {
				current.Children[part] = &TreeNode{Name: part, Children: make(map[string]*TreeNode)}
			}
			current = current.Children[part]
		}
		current.Outcome = &failures[i]
	}
	f.printTreeNode(root, "")
}

func (f *Formatter) printTreeNode(node *TreeNode, prefix string) {
	// Sort children for consistent output
	keys := make([]string, 0, len(node.Children))
	for key := range node.Children {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for i, key := range keys {
		child := node.Children[key]
		last := i == len(keys)-1
		connector, indent := "├── ", "│   "
		if last {
			connector, indent = "└── ", "    "
		}

		if child.Outcome != nil {
			red.Fprintf(f.out, "%s%s%s\n", prefix, connector, child.Name)
			if child.Outcome.Message != "" {
				gray.Fprintf(f.out, "%s%s%s\n", prefix, indent, child.Outcome.Message)
			}
		} else {
			cyan.Fprintf(f.out, "%s%s%s\n", prefix, connector, child.Name)
		}
		f.printTreeNode(child, prefix+indent)
	}
}

// PrintCaseList prints discovered cases. When hasBaseline is set, cases are
// marked [B] if a baseline exists and [-] otherwise.
func (f *Formatter) PrintCaseList(cases []domain.Case, hasBaseline func(domain.Case) bool) {
	green.Fprintf(f.out, "Found %d case(s):\n\n", len(cases))

	withBaseline := 0
	for i, c := range cases {
		connector := "├── "
		if i == len(cases)-1 {
			connector = "└── "
		}
		marker := ""
		if hasBaseline != nil {
			if hasBaseline(c) {
				withBaseline++
				marker = " " + green.Sprint("[B]")
			} else {
				marker = " " + gray.Sprint("[-]")
			}
		}
		cyan.Fprintf(f.out, "%s%s", connector, c.ID)
		fmt.Fprintln(f.out, marker)
	}

	if hasBaseline != nil {
		fmt.Fprintln(f.out)
		fmt.Fprintf(f.out, "%d of %d case(s) have a baseline\n", withBaseline, len(cases))
	}
}

// PrintOrphans prints stored baselines that no discovered case owns
func (f *Formatter) PrintOrphans(ids []string) {
	if len(ids) == 0 {
		return
	}
	fmt.Fprintln(f.out)
	yellow.Fprintf(f.out, "%d orphaned baseline(s):\n", len(ids))
	for _, id := range ids {
		gray.Fprintf(f.out, "  %s\n", id)
	}
}

// PrintOutcome prints the comparison details of one case
func (f *Formatter) PrintOutcome(o domain.CaseOutcome) {
	fmt.Fprint(f.out, FormatOutcome(o, false))
}

// FormatOutcome renders one case outcome. With tags set, it uses tview
// colour tags instead of terminal colours.
func FormatOutcome(o domain.CaseOutcome, tags bool) string {
	paint := func(c *color.Color, tag, s string) string {
		if tags {
			return "[" + tag + "]" + tview.Escape(s) + "[white]"
		}
		return c.Sprint(s)
	}
	text := func(s string) string {
		if tags {
			return tview.Escape(s)
		}
		return s
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)

	switch o.Status {
	case domain.StatusPassed:
		fmt.Fprintf(w, "%s\n\n", paint(green, "green", "✓ "+o.CaseID))
	case domain.StatusSkipped:
		fmt.Fprintf(w, "%s\n\n", paint(yellow, "yellow", "- "+o.CaseID))
	default:
		fmt.Fprintf(w, "%s\n\n", paint(red, "red", "✗ "+o.CaseID))
	}

	if o.Message != "" {
		fmt.Fprintf(w, "%s\n%s\n\n", paint(yellow, "yellow", "Message:"), text(o.Message))
	}

	fmt.Fprintf(w, "Signals:\t%d\n", o.Signals)
	if o.Fingerprint != "" {
		fmt.Fprintf(w, "Checksum:\t%s\n", o.Fingerprint)
	}
	fmt.Fprintf(w, "Max Absolute Error:\t%s\n", result.FormatDecimal(o.MaxAbsoluteError))
	fmt.Fprintf(w, "Max Relative Error:\t%s\n", result.FormatDecimal(o.MaxRelativeError))
	if o.WorstSample != "" {
		fmt.Fprintf(w, "Signal with Max Error:\t%s\n", text(o.WorstSample))
	}
	fmt.Fprintf(w, "Quick Match:\t%t\n", o.QuickMatch)
	if o.Reproducible != nil {
		fmt.Fprintf(w, "Reproducible:\t%t\n", *o.Reproducible)
	}
	w.Flush()

	if len(o.Differences) > 0 {
		fmt.Fprintf(&b, "\n%s\n", paint(yellow, "yellow", "Differences Found:"))
		for _, d := range o.Differences {
			fmt.Fprintf(&b, "  - %s\n", text(d))
		}
	}
	if len(o.Partial) > 0 {
		fmt.Fprintf(&b, "\n%s\n", paint(yellow, "yellow", "Partial Capture:"))
		for _, p := range o.Partial {
			fmt.Fprintf(&b, "  - %s\n", text(p.String()))
		}
	}
	return b.String()
}

// PrintHistory prints recorded verdicts, newest first
func (f *Formatter) PrintHistory(entries []history.Entry) {
	if len(entries) == 0 {
		yellow.Fprintln(f.out, "No history recorded")
		return
	}

	w := tabwriter.NewWriter(f.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tKIND\tCASE\tSTATUS\tTOLERANCE\tMAX ABS ERROR\tRUN")
	for _, e := range entries {
		status := string(e.Status)
		switch e.Status {
		case domain.StatusPassed:
			status = green.Sprint(status)
		case domain.StatusFailed:
			status = red.Sprint(status)
		default:
			status = yellow.Sprint(status)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.RecordedAt.Local().Format("2006-01-02 15:04:05"), e.Kind, e.CaseID, status,
			e.Tolerance, result.FormatDecimal(e.MaxAbsoluteError), shortID(e.RunID))
	}
	w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
