// Package watch implements `taskd watch`, a terminal view of a running
// taskd: service health, the tasks currently in flight, recent outcomes
// and the raw lifecycle event stream.
package watch

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// Theme keeps every colour used by the view in one place.
type Theme struct {
	Completed lipgloss.Style
	Running   lipgloss.Style
	Failed    lipgloss.Style
	Received  lipgloss.Style

	Border    lipgloss.Style
	Title     lipgloss.Style
	Dim       lipgloss.Style
	Highlight lipgloss.Style

	PulseOn  lipgloss.Style
	PulseOff lipgloss.Style
}

func NewDefaultTheme() Theme {
	accent := lipgloss.Color("#5FAFD7")

	return Theme{
		Completed: lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD75F")),
		Running:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD75F")),
		Failed:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")),
		Received:  lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8A8A")),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#EEEEEE")).
			Padding(0, 1),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("#8A8A8A")),
		Highlight: lipgloss.NewStyle().Foreground(accent),

		PulseOn:  lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD75F")),
		PulseOff: lipgloss.NewStyle().Foreground(lipgloss.Color("#444444")),
	}
}

// StateStyle picks the colour for a lifecycle state name.
func (t Theme) StateStyle(state string) lipgloss.Style {
	switch state {
	case "COMPLETED":
		return t.Completed
	case "FAILED":
		return t.Failed
	case "EXECUTING", "VALIDATED":
		return t.Running
	default:
		return t.Received
	}
}

func (t Theme) tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#1C1C1C")).
		Background(lipgloss.Color("#5FAFD7"))
	return s
}
