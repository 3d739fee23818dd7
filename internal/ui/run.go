package ui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lance13c/stateshot/internal/scheduler"
)

// sender is the part of *tea.Program the bridge needs
type sender interface {
	Send(msg tea.Msg)
}

// Bridge forwards runner events into a running program. It is a
// scheduler.Sink and its OnPhase fits scheduler.Options.
type Bridge struct {
	p sender
}

// Record implements scheduler.Sink
func (b *Bridge) Record(r scheduler.Result) {
	b.p.Send(ResultMsg{Result: r})
}

// OnPhase forwards a unit phase change
func (b *Bridge) OnPhase(u scheduler.Unit, p scheduler.Phase) {
	b.p.Send(PhaseMsg{Unit: u, Phase: p})
}

// RunFunc executes a run, reporting into the bridge
type RunFunc func(ctx context.Context, bridge *Bridge) (*scheduler.Summary, error)

// Run shows progress for total states while run executes. Pressing q
// cancels ctx for the run; the view stays until the run returns.
func Run(ctx context.Context, total int, run RunFunc, opts ...tea.ProgramOption) (*scheduler.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(total, cancel), opts...)
	bridge := &Bridge{p: p}

	var summary *scheduler.Summary
	var runErr error
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		summary, runErr = run(ctx, bridge)
		p.Send(DoneMsg{Summary: summary, Err: runErr})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-finished
		return summary, fmt.Errorf("progress view failed: %w", err)
	}
	<-finished
	return summary, runErr
}
