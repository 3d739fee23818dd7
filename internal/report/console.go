package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/lance13c/stateshot/internal/scheduler"
)

// Styles for console output
type Styles struct {
	Pass    lipgloss.Style
	Fail    lipgloss.Style
	Warn    lipgloss.Style
	Muted   lipgloss.Style
	Title   lipgloss.Style
	Heading lipgloss.Style
}

// NewStyles returns the default palette
func NewStyles() *Styles {
	return &Styles{
		Pass:    lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")),
		Fail:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
		Warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD93D")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")),
		Title:   lipgloss.NewStyle().Foreground(lipgloss.Color("#4A9EFF")).Bold(true),
		Heading: lipgloss.NewStyle().Bold(true).Underline(true),
	}
}

// UseColor decides whether to style output for w. mode is auto, always
// or never; auto styles only terminals.
func UseColor(w io.Writer, mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if f, ok := w.(interface{ Fd() uintptr }); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// Console prints one line per result as results arrive
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	styles  *Styles
	color   bool
	verbose bool
}

// NewConsole creates a console sink writing to w
func NewConsole(w io.Writer, color, verbose bool) *Console {
	return &Console{w: w, styles: NewStyles(), color: color, verbose: verbose}
}

func (c *Console) paint(style lipgloss.Style, s string) string {
	if !c.color {
		return s
	}
	return style.Render(s)
}

func (c *Console) outcomeStyle(o scheduler.Outcome) lipgloss.Style {
	switch o {
	case scheduler.OutcomePassed, scheduler.OutcomeGathered:
		return c.styles.Pass
	case scheduler.OutcomeSkipped:
		return c.styles.Muted
	case scheduler.OutcomeNoBaseline, scheduler.OutcomeAborted:
		return c.styles.Warn
	}
	return c.styles.Fail
}

func outcomeMark(o scheduler.Outcome) string {
	switch o {
	case scheduler.OutcomePassed, scheduler.OutcomeGathered:
		return "✓"
	case scheduler.OutcomeSkipped:
		return "-"
	case scheduler.OutcomeNoBaseline, scheduler.OutcomeAborted:
		return "!"
	}
	return "✗"
}

// Record implements scheduler.Sink. Skipped states only print when
// verbose is set.
func (c *Console) Record(r scheduler.Result) {
	if r.Outcome == scheduler.OutcomeSkipped && !c.verbose {
		return
	}

	var b strings.Builder
	style := c.outcomeStyle(r.Outcome)
	fmt.Fprintf(&b, "%s %-11s %s / %s @ %s",
		c.paint(style, outcomeMark(r.Outcome)),
		c.paint(style, string(r.Outcome)),
		r.Suite(), r.State, r.Browser)
	if r.Duration > 0 {
		b.WriteString(c.paint(c.styles.Muted, fmt.Sprintf(" (%s)", r.Duration.Round(time.Millisecond))))
	}
	b.WriteString("\n")

	if r.Comment != "" {
		fmt.Fprintf(&b, "    %s\n", c.paint(c.styles.Muted, r.Comment))
	}
	if r.Err != nil {
		fmt.Fprintf(&b, "    %s\n", c.paint(c.styles.Fail, r.Err.Error()))
	}
	if cmp := r.Comparison; cmp != nil && !cmp.Equal {
		if cmp.DiffPixels > 0 {
			fmt.Fprintf(&b, "    %d pixels differ in %v\n", cmp.DiffPixels, cmp.DiffBounds)
		}
		if cmp.DiffPath != "" {
			fmt.Fprintf(&b, "    diff: %s\n", cmp.DiffPath)
		}
	}
	if r.Outcome == scheduler.OutcomeNoBaseline && r.ImagePath != "" {
		fmt.Fprintf(&b, "    current: %s (run gather to accept)\n", r.ImagePath)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	io.WriteString(c.w, b.String())
}

// Summary prints the totals of a run
func (c *Console) Summary(s *scheduler.Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	outcomes := make([]string, 0, len(s.Counts))
	for o := range s.Counts {
		outcomes = append(outcomes, string(o))
	}
	sort.Strings(outcomes)

	var parts []string
	for _, o := range outcomes {
		out := scheduler.Outcome(o)
		n := s.Counts[out]
		if n == 0 {
			continue
		}
		parts = append(parts, c.paint(c.outcomeStyle(out), fmt.Sprintf("%d %s", n, o)))
	}
	if len(parts) == 0 {
		parts = append(parts, "no states")
	}

	fmt.Fprintln(c.w)
	fmt.Fprintf(c.w, "%s %s\n", c.paint(c.styles.Title, "Run "+s.RunID), c.paint(c.styles.Muted, s.Duration.Round(time.Millisecond).String()))
	fmt.Fprintf(c.w, "  %s\n", strings.Join(parts, ", "))
	if s.Failed() {
		fmt.Fprintln(c.w, c.paint(c.styles.Fail, "FAILED"))
	} else {
		fmt.Fprintln(c.w, c.paint(c.styles.Pass, "OK"))
	}
}
