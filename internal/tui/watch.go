// Package tui renders the live deployment dashboard for
// `brigade status --watch`.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fieldmarshal/brigade/pkg/models"
)

// reportMsg carries the next status report from the watch stream.
type reportMsg struct {
	report *models.StatusReport
}

// streamClosedMsg signals the watch stream ended.
type streamClosedMsg struct{}

// Model is the bubbletea model for the watch dashboard. It is driven
// entirely by status reports; it never reads workspaces itself.
type Model struct {
	plan    *models.DeploymentPlan
	reports <-chan *models.StatusReport
	report  *models.StatusReport
	overall progress.Model

	width    int
	closed   bool
	quitting bool

	styles styles
}

// NewModel builds the dashboard model for a plan and its report stream.
func NewModel(plan *models.DeploymentPlan, reports <-chan *models.StatusReport) Model {
	return Model{
		plan:    plan,
		reports: reports,
		overall: progress.New(progress.WithDefaultGradient()),
		width:   80,
		styles:  newStyles(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return waitForReport(m.reports)
}

// waitForReport blocks on the next report; a closed stream becomes a
// streamClosedMsg.
func waitForReport(reports <-chan *models.StatusReport) tea.Cmd {
	return func() tea.Msg {
		report, ok := <-reports
		if !ok {
			return streamClosedMsg{}
		}
		return reportMsg{report: report}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.overall.Width = msg.Width - 20
		if m.overall.Width > 60 {
			m.overall.Width = 60
		}

	case reportMsg:
		m.report = msg.report
		return m, waitForReport(m.reports)

	case streamClosedMsg:
		m.closed = true
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.styles.title.Render("brigade"))
	if m.plan != nil {
		b.WriteString(" ")
		b.WriteString(m.styles.subtitle.Render(m.plan.SourceDescription))
	}
	b.WriteString("\n\n")

	if m.report == nil {
		b.WriteString(m.styles.label.Render("waiting for first report..."))
		b.WriteString("\n\n")
		b.WriteString(m.footer())
		return b.String()
	}

	b.WriteString(m.styles.label.Render("overall "))
	b.WriteString(m.overall.ViewAs(m.report.Overall / 100))
	b.WriteString(fmt.Sprintf(" %3.0f%%", m.report.Overall))
	b.WriteString("\n\n")

	b.WriteString(m.styles.header.Render(fmt.Sprintf("%-14s %-12s %-24s %9s %7s", "AGENT", "STATUS", "ROLE", "CRITERIA", "COMMITS")))
	b.WriteString("\n")

	for _, agent := range m.report.Agents {
		b.WriteString(m.renderRow(agent))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.footer())
	return b.String()
}

func (m Model) renderRow(agent models.AgentProgress) string {
	icon, style := m.styles.statusIcon(agent.Status)

	role := agent.Role
	if len(role) > 24 {
		role = role[:21] + "..."
	}

	criteria := fmt.Sprintf("%d/%d", agent.TickedCriteria, agent.TotalCriteria)
	row := fmt.Sprintf("%-14s %s %-8s %-24s %9s %7d",
		truncate(agent.AgentID, 14), icon, agent.Status, role, criteria, agent.Commits)
	return style.Render(row)
}

func (m Model) footer() string {
	if m.closed {
		return m.styles.footer.Render("stream ended | q to quit")
	}
	if m.report == nil {
		return m.styles.footer.Render("q to quit")
	}
	counts := fmt.Sprintf("integrated %d  blocked %d  failed %d",
		m.report.Integrated, m.report.Blocked, m.report.Failed)
	return m.styles.footer.Render(counts + " | q to quit")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

// Run shows the dashboard until the user quits or the stream ends and
// the user exits.
func Run(plan *models.DeploymentPlan, reports <-chan *models.StatusReport) error {
	p := tea.NewProgram(NewModel(plan, reports), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
