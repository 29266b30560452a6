package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fieldmarshal/brigade/pkg/models"
)

func testPlan() *models.DeploymentPlan {
	return &models.DeploymentPlan{
		ID:                "plan-1",
		SourceDescription: "auth feature rollout",
		BaseBranch:        "main",
	}
}

func testReport() *models.StatusReport {
	return &models.StatusReport{
		PlanID:  "plan-1",
		Overall: 62.5,
		Agents: []models.AgentProgress{
			{
				AgentID:        "database",
				Role:           "database schema and migrations helper",
				Status:         models.StatusIntegrated,
				Percent:        100,
				TickedCriteria: 3,
				TotalCriteria:  3,
				Commits:        4,
			},
			{
				AgentID:        "backend",
				Role:           "backend api",
				Status:         models.StatusInProgress,
				Percent:        25,
				TickedCriteria: 1,
				TotalCriteria:  4,
				Commits:        2,
			},
		},
		Integrated: 1,
		Blocked:    0,
		Failed:     0,
	}
}

func TestModelShowsReport(t *testing.T) {
	reports := make(chan *models.StatusReport, 1)
	m := NewModel(testPlan(), reports)

	updated, cmd := m.Update(reportMsg{report: testReport()})
	model := updated.(Model)
	if cmd == nil {
		t.Fatal("expected a follow-up command waiting for the next report")
	}

	view := model.View()
	for _, want := range []string{"brigade", "auth feature rollout", "database", "backend", "3/3", "1/4", "integrated 1"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "waiting for first report") {
		t.Error("view still shows the waiting placeholder")
	}
}

func TestModelBeforeFirstReport(t *testing.T) {
	reports := make(chan *models.StatusReport)
	m := NewModel(testPlan(), reports)

	view := m.View()
	if !strings.Contains(view, "waiting for first report") {
		t.Errorf("expected waiting placeholder, got:\n%s", view)
	}
}

func TestModelQuitKeys(t *testing.T) {
	for _, key := range []string{"q", "ctrl+c", "esc"} {
		t.Run(key, func(t *testing.T) {
			reports := make(chan *models.StatusReport)
			m := NewModel(testPlan(), reports)

			var msg tea.KeyMsg
			switch key {
			case "ctrl+c":
				msg = tea.KeyMsg{Type: tea.KeyCtrlC}
			case "esc":
				msg = tea.KeyMsg{Type: tea.KeyEsc}
			default:
				msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
			}

			updated, cmd := m.Update(msg)
			model := updated.(Model)
			if !model.quitting {
				t.Error("expected quitting state")
			}
			if cmd == nil {
				t.Fatal("expected tea.Quit command")
			}
			if view := model.View(); view != "" {
				t.Errorf("expected empty view while quitting, got %q", view)
			}
		})
	}
}

func TestModelStreamClosed(t *testing.T) {
	reports := make(chan *models.StatusReport)
	m := NewModel(testPlan(), reports)

	updated, _ := m.Update(streamClosedMsg{})
	model := updated.(Model)

	if !strings.Contains(model.View(), "stream ended") {
		t.Errorf("expected stream-ended footer, got:\n%s", model.View())
	}
}

func TestWaitForReportDrainsChannel(t *testing.T) {
	reports := make(chan *models.StatusReport, 1)
	reports <- testReport()

	msg := waitForReport(reports)()
	rm, ok := msg.(reportMsg)
	if !ok {
		t.Fatalf("expected reportMsg, got %T", msg)
	}
	if rm.report.PlanID != "plan-1" {
		t.Errorf("unexpected report %+v", rm.report)
	}

	close(reports)
	if _, ok := waitForReport(reports)().(streamClosedMsg); !ok {
		t.Error("expected streamClosedMsg after close")
	}
}

func TestModelWindowSizeCapsProgressWidth(t *testing.T) {
	reports := make(chan *models.StatusReport)
	m := NewModel(testPlan(), reports)

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 200, Height: 50})
	model := updated.(Model)
	if model.overall.Width != 60 {
		t.Errorf("expected progress width capped at 60, got %d", model.overall.Width)
	}

	updated, _ = model.Update(tea.WindowSizeMsg{Width: 60, Height: 50})
	model = updated.(Model)
	if model.overall.Width != 40 {
		t.Errorf("expected progress width 40, got %d", model.overall.Width)
	}
}
