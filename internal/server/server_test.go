package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fieldmarshal/brigade/internal/events"
	"github.com/fieldmarshal/brigade/internal/metrics"
	"github.com/fieldmarshal/brigade/pkg/models"
)

type fakeSnapshotter struct {
	report *models.StatusReport
	err    error
}

func (f *fakeSnapshotter) Snapshot(ctx context.Context, plan *models.DeploymentPlan) (*models.StatusReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func testPlan() *models.DeploymentPlan {
	return &models.DeploymentPlan{
		ID:                "plan-1",
		SourceDescription: "auth feature",
		BaseBranch:        "main",
		Agents: []*models.AgentSpec{
			{ID: "database", Role: "database schema"},
			{ID: "backend", Role: "backend api", DependsOn: []string{"database"}},
		},
	}
}

func testReport() *models.StatusReport {
	return &models.StatusReport{
		PlanID:  "plan-1",
		Overall: 50,
		Agents: []models.AgentProgress{
			{AgentID: "database", Status: models.StatusIntegrated, Percent: 100},
			{AgentID: "backend", Status: models.StatusInProgress, Percent: 0},
		},
		Integrated: 1,
	}
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServerHealth(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"})

	rec := get(t, s.httpServer.Handler, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestServerPlanRoute(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0", Plan: testPlan()})

	rec := get(t, s.httpServer.Handler, "/api/plan")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var plan models.DeploymentPlan
	if err := json.Unmarshal(rec.Body.Bytes(), &plan); err != nil {
		t.Fatalf("decoding plan: %v", err)
	}
	if plan.ID != "plan-1" {
		t.Errorf("expected plan-1, got %q", plan.ID)
	}
	if len(plan.Agents) != 2 {
		t.Errorf("expected 2 agents, got %d", len(plan.Agents))
	}
}

func TestServerStatusRoute(t *testing.T) {
	s := New(Config{
		Addr:    "127.0.0.1:0",
		Plan:    testPlan(),
		Monitor: &fakeSnapshotter{report: testReport()},
	})

	rec := get(t, s.httpServer.Handler, "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var report models.StatusReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decoding report: %v", err)
	}
	if report.PlanID != "plan-1" {
		t.Errorf("expected plan-1, got %q", report.PlanID)
	}
	if report.Overall != 50 {
		t.Errorf("expected overall 50, got %v", report.Overall)
	}
}

func TestServerStatusRouteSnapshotError(t *testing.T) {
	s := New(Config{
		Addr:    "127.0.0.1:0",
		Plan:    testPlan(),
		Monitor: &fakeSnapshotter{err: errors.New("workspace gone")},
	})

	rec := get(t, s.httpServer.Handler, "/api/status")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestServerNoPlan(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"})

	for _, path := range []string{"/api/plan", "/api/status", "/api/agents/backend"} {
		rec := get(t, s.httpServer.Handler, path)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

func TestServerAgentRoute(t *testing.T) {
	s := New(Config{
		Addr:    "127.0.0.1:0",
		Plan:    testPlan(),
		Monitor: &fakeSnapshotter{report: testReport()},
	})

	rec := get(t, s.httpServer.Handler, "/api/agents/backend")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var progress models.AgentProgress
	if err := json.Unmarshal(rec.Body.Bytes(), &progress); err != nil {
		t.Fatalf("decoding progress: %v", err)
	}
	if progress.AgentID != "backend" {
		t.Errorf("expected backend, got %q", progress.AgentID)
	}

	rec = get(t, s.httpServer.Handler, "/api/agents/nope")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown agent, got %d", rec.Code)
	}
}

func TestServerMetricsRoute(t *testing.T) {
	reg, m := metrics.NewRegistry()
	m.Observe(events.Event{Type: events.TypeAgentSpawned})

	s := New(Config{Addr: "127.0.0.1:0", Registry: reg})

	rec := get(t, s.httpServer.Handler, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "brigade_workspace_spawns_total 1") {
		t.Errorf("metrics exposition missing spawn counter:\n%s", rec.Body.String())
	}
}

func TestServerWebsocketStream(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0", Plan: testPlan()})

	ts := httptest.NewServer(s.httpServer.Handler)
	defer ts.Close()

	reports := make(chan *models.StatusReport)
	done := make(chan struct{})
	go func() {
		s.Broadcast(reports)
		close(done)
	}()

	// Seed a report before any client connects; it becomes the first
	// frame new clients receive.
	first := testReport()
	reports <- first
	waitFor(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.last != nil
	})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/status"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", wsURL, err)
	}
	defer conn.Close()
	if resp != nil {
		resp.Body.Close()
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var got models.StatusReport
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("reading initial frame: %v", err)
	}
	if got.PlanID != "plan-1" || got.Overall != 50 {
		t.Errorf("unexpected initial frame: %+v", got)
	}

	waitFor(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return len(s.conns) == 1
	})

	second := testReport()
	second.Overall = 75
	reports <- second

	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("reading broadcast frame: %v", err)
	}
	if got.Overall != 75 {
		t.Errorf("expected overall 75, got %v", got.Overall)
	}

	close(reports)
	<-done
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}
