package ui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lance13c/stateshot/internal/scheduler"
	"github.com/lance13c/stateshot/internal/suite"
)

type recordingSender struct {
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) { r.msgs = append(r.msgs, msg) }

func testUnit() scheduler.Unit {
	return scheduler.Unit{Suite: &suite.Suite{Name: "menu", Path: []string{"header", "menu"}}, Browser: "chrome"}
}

func TestModelTracksProgress(t *testing.T) {
	cancelled := false
	m := NewModel(4, func() { cancelled = true })
	u := testUnit()

	m.Update(PhaseMsg{Unit: u, Phase: scheduler.PhaseStateRunning})
	assert.Contains(t, m.View(), "header menu @ chrome")

	m.Update(ResultMsg{Result: scheduler.Result{SuitePath: u.Suite.Path, State: "open", Browser: "chrome", Outcome: scheduler.OutcomePassed}})
	m.Update(ResultMsg{Result: scheduler.Result{SuitePath: u.Suite.Path, State: "closed", Browser: "chrome", Outcome: scheduler.OutcomeFailed, Err: errors.New("boom")}})
	assert.Equal(t, 0.5, m.Percent())
	view := m.View()
	assert.Contains(t, view, "2/4 states")
	assert.Contains(t, view, "1 failing")
	assert.Contains(t, view, "boom")

	m.Update(PhaseMsg{Unit: u, Phase: scheduler.PhaseDone})
	assert.NotContains(t, m.View(), "header menu @ chrome ")
	assert.Empty(t, m.active)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.Nil(t, cmd, "q stops the run but keeps the view until it ends")
	assert.True(t, cancelled)
	assert.Contains(t, m.View(), "Stopping")

	_, cmd = m.Update(DoneMsg{Summary: &scheduler.Summary{RunID: "01R", Counts: map[scheduler.Outcome]int{scheduler.OutcomePassed: 1}, Duration: 1500 * time.Millisecond}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Contains(t, m.View(), "Run 01R: 1 states in 1.5s")
}

func TestModelKeepsRecentResults(t *testing.T) {
	m := NewModel(20, nil)
	for i := 0; i < 12; i++ {
		m.Update(ResultMsg{Result: scheduler.Result{State: string(rune('a' + i)), Outcome: scheduler.OutcomePassed}})
	}
	assert.Len(t, m.recent, recentLimit)
	assert.Equal(t, "l", m.recent[len(m.recent)-1].State)
	assert.Equal(t, 0.6, m.Percent())

	assert.Equal(t, 1.0, NewModel(0, nil).Percent())
}

func TestBridgeForwards(t *testing.T) {
	rec := &recordingSender{}
	b := &Bridge{p: rec}
	b.OnPhase(testUnit(), scheduler.PhaseNavigated)
	b.Record(scheduler.Result{State: "open"})

	require.Len(t, rec.msgs, 2)
	assert.Equal(t, scheduler.PhaseNavigated, rec.msgs[0].(PhaseMsg).Phase)
	assert.Equal(t, "open", rec.msgs[1].(ResultMsg).Result.State)
}
