package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/fieldmarshal/brigade/internal/git"
	"github.com/fieldmarshal/brigade/internal/workspace"
	"github.com/fieldmarshal/brigade/pkg/models"
)

// stubRepo overrides just the read operations the monitor uses; any
// other call panics through the nil embedded Runner.
type stubRepo struct {
	git.Runner
	commits int
	dirty   bool
}

func (s stubRepo) CommitCount(context.Context, string) (int, error) { return s.commits, nil }

func (s stubRepo) HasChanges(context.Context) (bool, error) { return s.dirty, nil }

func testPlan(agents ...*models.AgentSpec) *models.DeploymentPlan {
	return &models.DeploymentPlan{
		ID:                "plan-1",
		SourceDescription: "auth feature",
		BaseBranch:        "main",
		Agents:            agents,
	}
}

func agentWith(id string, status models.AgentStatus, criteria ...string) *models.AgentSpec {
	return &models.AgentSpec{
		ID:                 id,
		Role:               id,
		ValidationCriteria: criteria,
		Status:             status,
	}
}

// seedWorkspace writes a bundle (with the first ticked entries done)
// where the monitor expects the agent's workspace.
func seedWorkspace(t *testing.T, root string, plan *models.DeploymentPlan, agent *models.AgentSpec, ticked int) string {
	t.Helper()
	path := workspace.PathFor(root, plan, agent.ID)
	if err := workspace.WriteBundle(path, agent); err != nil {
		t.Fatalf("WriteBundle() error = %v", err)
	}
	if ticked > 0 {
		bundle, err := workspace.ReadBundle(path)
		if err != nil {
			t.Fatalf("ReadBundle() error = %v", err)
		}
		for i := 0; i < ticked && i < len(bundle.Checklist); i++ {
			bundle.Checklist[i].Done = true
		}
		if err := workspace.SaveBundle(path, bundle); err != nil {
			t.Fatalf("SaveBundle() error = %v", err)
		}
	}
	return path
}

func TestMonitor_Snapshot(t *testing.T) {
	root := t.TempDir()
	database := agentWith("database", models.StatusSpawned, "users table", "indexes")
	backend := agentWith("backend", models.StatusPending, "login endpoint")
	docs := agentWith("docs", models.StatusIntegrated, "readme updated")
	plan := testPlan(database, backend, docs)

	dbPath := seedWorkspace(t, root, plan, database, 1)
	repos := map[string]stubRepo{
		dbPath: {commits: 2, dirty: false},
	}
	factory := func(dir string) git.Runner { return repos[dir] }

	report, err := New(root, factory).Snapshot(context.Background(), plan)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	if len(report.Agents) != 3 {
		t.Fatalf("got %d agent entries, want 3", len(report.Agents))
	}
	byID := make(map[string]models.AgentProgress)
	for _, p := range report.Agents {
		byID[p.AgentID] = p
	}

	db := byID["database"]
	if db.Percent != 50 {
		t.Errorf("database percent = %v, want 50", db.Percent)
	}
	if db.TickedCriteria != 1 || db.TotalCriteria != 2 {
		t.Errorf("database ticks = %d/%d, want 1/2", db.TickedCriteria, db.TotalCriteria)
	}
	if db.Commits != 2 {
		t.Errorf("database commits = %d, want 2", db.Commits)
	}
	if !db.CleanTree {
		t.Error("database CleanTree = false, want true")
	}
	if db.Status != models.StatusInProgress {
		t.Errorf("database display status = %s, want in_progress", db.Status)
	}
	if !db.HasWorkspace {
		t.Error("database HasWorkspace = false, want true")
	}

	be := byID["backend"]
	if be.Percent != 0 || be.HasWorkspace {
		t.Errorf("backend = %+v, want 0%% and no workspace", be)
	}
	if be.Status != models.StatusPending {
		t.Errorf("backend status = %s, want pending", be.Status)
	}

	dc := byID["docs"]
	if dc.Percent != 100 {
		t.Errorf("docs percent = %v, want 100", dc.Percent)
	}

	if report.Overall != 50 {
		t.Errorf("Overall = %v, want 50", report.Overall)
	}
	if report.Integrated != 1 || report.Blocked != 0 || report.Failed != 0 {
		t.Errorf("counts = %d/%d/%d, want 1/0/0", report.Integrated, report.Blocked, report.Failed)
	}
}

func TestMonitor_SnapshotDoesNotMutatePlan(t *testing.T) {
	root := t.TempDir()
	database := agentWith("database", models.StatusSpawned, "users table")
	plan := testPlan(database)
	dbPath := seedWorkspace(t, root, plan, database, 1)

	repos := map[string]stubRepo{dbPath: {commits: 1}}
	factory := func(dir string) git.Runner { return repos[dir] }

	if _, err := New(root, factory).Snapshot(context.Background(), plan); err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if database.Status != models.StatusSpawned {
		t.Errorf("plan status mutated to %s, want spawned", database.Status)
	}
}

func TestMonitor_SnapshotNoCriteria(t *testing.T) {
	root := t.TempDir()
	agent := agentWith("chore", models.StatusSpawned)
	plan := testPlan(agent)
	path := seedWorkspace(t, root, plan, agent, 0)

	repos := map[string]stubRepo{path: {}}
	factory := func(dir string) git.Runner { return repos[dir] }

	report, err := New(root, factory).Snapshot(context.Background(), plan)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if got := report.Agents[0].Percent; got != 100 {
		t.Errorf("percent with no criteria = %v, want 100", got)
	}
}

func TestMonitor_Watch(t *testing.T) {
	root := t.TempDir()
	plan := testPlan(agentWith("backend", models.StatusPending, "x"))
	factory := func(string) git.Runner { return stubRepo{} }

	ctx, cancel := context.WithCancel(context.Background())
	reports := New(root, factory).Watch(ctx, plan, 10*time.Millisecond)

	for i := 0; i < 3; i++ {
		select {
		case report, ok := <-reports:
			if !ok {
				t.Fatal("report channel closed early")
			}
			if report.PlanID != "plan-1" {
				t.Errorf("PlanID = %q, want plan-1", report.PlanID)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("no report %d within 2s", i)
		}
	}

	cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-reports:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("report channel not closed after cancel")
		}
	}
}

func TestMonitor_Notify(t *testing.T) {
	root := t.TempDir()
	agent := agentWith("database", models.StatusSpawned, "users table")
	plan := testPlan(agent)
	path := seedWorkspace(t, root, plan, agent, 0)

	factory := func(string) git.Runner { return stubRepo{} }
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed, err := New(root, factory).Notify(ctx, plan)
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		bundle, readErr := workspace.ReadBundle(path)
		if readErr != nil {
			return
		}
		bundle.Checklist[0].Done = true
		_ = workspace.SaveBundle(path, bundle)
	}()

	select {
	case agentID := <-changed:
		if agentID != "database" {
			t.Errorf("changed agent = %q, want database", agentID)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification within 3s")
	}
}
