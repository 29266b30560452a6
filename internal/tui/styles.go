package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/fieldmarshal/brigade/pkg/models"
)

// Status icons for agent rows.
const (
	iconPending    = "[○]"
	iconSpawned    = "[◐]"
	iconInProgress = "[●]"
	iconValidated  = "[✓]"
	iconIntegrated = "[✓]"
	iconFailed     = "[✗]"
	iconBlocked    = "[!]"
)

// styles holds every lipgloss style the dashboard uses.
type styles struct {
	title    lipgloss.Style
	subtitle lipgloss.Style
	header   lipgloss.Style
	row      lipgloss.Style
	label    lipgloss.Style
	footer   lipgloss.Style

	statusPending    lipgloss.Style
	statusSpawned    lipgloss.Style
	statusInProgress lipgloss.Style
	statusValidated  lipgloss.Style
	statusIntegrated lipgloss.Style
	statusFailed     lipgloss.Style
	statusBlocked    lipgloss.Style
}

func newStyles() styles {
	return styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")),

		subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),

		header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("7")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("240")),

		row: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),

		label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		footer: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),

		statusPending: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")), // Gray

		statusSpawned: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")), // Orange

		statusInProgress: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")), // Green

		statusValidated: lipgloss.NewStyle().
			Foreground(lipgloss.Color("45")), // Cyan

		statusIntegrated: lipgloss.NewStyle().
			Foreground(lipgloss.Color("28")), // Dark green

		statusFailed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")), // Red

		statusBlocked: lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")), // Yellow
	}
}

// statusIcon returns the icon and style for one agent status.
func (s styles) statusIcon(status models.AgentStatus) (string, lipgloss.Style) {
	switch status {
	case models.StatusSpawned:
		return iconSpawned, s.statusSpawned
	case models.StatusInProgress:
		return iconInProgress, s.statusInProgress
	case models.StatusValidated:
		return iconValidated, s.statusValidated
	case models.StatusIntegrated:
		return iconIntegrated, s.statusIntegrated
	case models.StatusFailed:
		return iconFailed, s.statusFailed
	case models.StatusBlocked:
		return iconBlocked, s.statusBlocked
	default:
		return iconPending, s.statusPending
	}
}
