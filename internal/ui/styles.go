package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles holds all the styling for the TUI
type Styles struct {
	Header  lipgloss.Style
	Unit    lipgloss.Style
	Phase   lipgloss.Style
	Footer  lipgloss.Style
	Pass    lipgloss.Style
	Fail    lipgloss.Style
	Warn    lipgloss.Style
	Muted   lipgloss.Style
	DoneBox lipgloss.Style
	FailBox lipgloss.Style
}

// NewStyles creates a new styles instance
func NewStyles() *Styles {
	return &Styles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 2).
			MarginBottom(1),

		Unit:  lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		Phase: lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true),

		Footer: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			MarginTop(1),

		Pass:  lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")),
		Fail:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true),
		Warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		Muted: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),

		DoneBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#04B575")).
			Foreground(lipgloss.Color("#04B575")).
			Padding(0, 2),

		FailBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FF5F87")).
			Foreground(lipgloss.Color("#FF5F87")).
			Padding(0, 2),
	}
}
