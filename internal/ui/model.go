package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lance13c/stateshot/internal/scheduler"
)

// recentLimit is how many finished states stay on screen
const recentLimit = 8

// PhaseMsg reports a unit moving to a new phase
type PhaseMsg struct {
	Unit  scheduler.Unit
	Phase scheduler.Phase
}

// ResultMsg carries one recorded state
type ResultMsg struct {
	Result scheduler.Result
}

// DoneMsg ends the run
type DoneMsg struct {
	Summary *scheduler.Summary
	Err     error
}

// Model shows live progress of a run
type Model struct {
	total   int
	done    int
	failed  int
	width   int
	active  map[string]scheduler.Phase
	recent  []scheduler.Result
	cancel  context.CancelFunc
	abort   bool
	summary *scheduler.Summary
	err     error

	spinner  spinner.Model
	progress progress.Model
	styles   *Styles
}

// NewModel creates the progress model for a run of total states. cancel
// is called when the user asks to stop.
func NewModel(total int, cancel context.CancelFunc) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	return &Model{
		total:    total,
		active:   map[string]scheduler.Phase{},
		cancel:   cancel,
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		styles:   NewStyles(),
	}
}

func unitName(u scheduler.Unit) string {
	return u.Suite.FullName() + " @ " + u.Browser
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.summary != nil {
				return m, tea.Quit
			}
			// let in-flight actions finish; DoneMsg quits
			if !m.abort && m.cancel != nil {
				m.abort = true
				m.cancel()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		if w := msg.Width - 20; w > 10 {
			m.progress.Width = min(w, 60)
		}
		return m, nil

	case PhaseMsg:
		name := unitName(msg.Unit)
		switch msg.Phase {
		case scheduler.PhaseDone, scheduler.PhaseFailed:
			delete(m.active, name)
		default:
			m.active[name] = msg.Phase
		}
		return m, nil

	case ResultMsg:
		m.done++
		if msg.Result.Outcome.Bad() {
			m.failed++
		}
		m.recent = append(m.recent, msg.Result)
		if len(m.recent) > recentLimit {
			m.recent = m.recent[len(m.recent)-recentLimit:]
		}
		return m, nil

	case DoneMsg:
		m.summary = msg.Summary
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// Percent is the share of planned states already recorded
func (m *Model) Percent() float64 {
	if m.total == 0 {
		return 1
	}
	return float64(m.done) / float64(m.total)
}

// View implements tea.Model
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Header.Render("stateshot"))
	b.WriteString("\n")

	fmt.Fprintf(&b, "%s %d/%d states", m.progress.ViewAs(m.Percent()), m.done, m.total)
	if m.failed > 0 {
		b.WriteString("  " + m.styles.Fail.Render(fmt.Sprintf("%d failing", m.failed)))
	}
	b.WriteString("\n\n")

	names := make([]string, 0, len(m.active))
	for n := range m.active {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(&b, "%s %s %s\n", m.spinner.View(), m.styles.Unit.Render(n), m.styles.Phase.Render(m.active[n].String()))
	}
	if len(names) > 0 {
		b.WriteString("\n")
	}

	for _, r := range m.recent {
		b.WriteString(m.resultLine(r))
		b.WriteString("\n")
	}

	if m.summary != nil {
		box := m.styles.DoneBox
		if m.summary.Failed() || m.err != nil {
			box = m.styles.FailBox
		}
		b.WriteString("\n" + box.Render(fmt.Sprintf("Run %s: %d states in %s", m.summary.RunID, m.summary.Total(), m.summary.Duration.Round(time.Millisecond))))
		b.WriteString("\n")
		return b.String()
	}

	footer := "[q Stop]"
	if m.abort {
		footer = "Stopping after the current actions..."
	}
	b.WriteString(m.styles.Footer.Render(footer))
	return b.String()
}

func (m *Model) resultLine(r scheduler.Result) string {
	style := m.styles.Pass
	switch {
	case r.Outcome == scheduler.OutcomeSkipped:
		style = m.styles.Muted
	case r.Outcome == scheduler.OutcomeNoBaseline || r.Outcome == scheduler.OutcomeAborted:
		style = m.styles.Warn
	case r.Outcome.Bad():
		style = m.styles.Fail
	}
	line := fmt.Sprintf("%s %s / %s @ %s", style.Render(fmt.Sprintf("%-11s", r.Outcome)), r.Suite(), r.State, r.Browser)
	if r.Err != nil {
		line += " " + m.styles.Muted.Render(r.Err.Error())
	}
	return line
}
