package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/latticed/internal/state"
)

var titleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FF6B6B")).
	MarginBottom(1)

var boxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("#444444")).
	Padding(0, 1)

var (
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
)

var statusColors = map[state.Status]lipgloss.Color{
	state.StatusRunning:  lipgloss.Color("#5FD75F"),
	state.StatusStarting: lipgloss.Color("#5FD75F"),
	state.StatusIdle:     lipgloss.Color("#5FD75F"),
	state.StatusStopped:  lipgloss.Color("#FF5F5F"),
}

// StatusStyle colors a status the same way in the dashboard and the CLI:
// green while armed or running, red when stopped.
func StatusStyle(status state.Status) lipgloss.Style {
	color, ok := statusColors[status]
	if !ok {
		color = statusColors[state.StatusStopped]
	}
	return lipgloss.NewStyle().Foreground(color)
}

// RenderStatus returns the colored status label.
func RenderStatus(status state.Status) string {
	return StatusStyle(status).Render(string(status))
}
