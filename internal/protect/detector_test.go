package protect

import (
	"strings"
	"testing"

	"github.com/fieldmarshal/brigade/pkg/models"
)

func TestDetectorCheck(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		extra     []string
		protected bool
		reason    string
	}{
		{"auth directory", "internal/auth/middleware.go", nil, true, "pattern"},
		{"migrations", "db/migrations/0001_init.up.sql", nil, true, "pattern"},
		{"workflow file", ".github/workflows/ci.yaml", nil, true, "pattern"},
		{"password keyword", "internal/store/password_reset.go", nil, true, "password"},
		{"pem extension", "deploy/server.pem", nil, true, "file type"},
		{"env file", "config/.env", nil, true, "file type"},
		{"plain source file", "internal/handlers/health.go", nil, false, ""},
		{"session file is fine", "internal/web/session.go", nil, false, ""},
		{"extra pattern", "billing/invoice.go", []string{"billing/**"}, true, "billing/**"},
		{"extra pattern misses", "internal/billing_report.go", []string{"billing/**"}, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(tt.extra...)
			ok, reason := d.Check(tt.path)
			if ok != tt.protected {
				t.Fatalf("Check(%q) = %v, want %v (reason %q)", tt.path, ok, tt.protected, reason)
			}
			if tt.protected && !strings.Contains(reason, tt.reason) {
				t.Errorf("reason %q does not mention %q", reason, tt.reason)
			}
			if !tt.protected && reason != "" {
				t.Errorf("expected empty reason, got %q", reason)
			}
		})
	}
}

func TestDetectorScan(t *testing.T) {
	plan := &models.DeploymentPlan{
		ID: "plan-1",
		Agents: []*models.AgentSpec{
			{
				ID:            "backend",
				FilesToCreate: []string{"internal/api/routes.go"},
				FilesToModify: []string{"internal/auth/session_store.go"},
			},
			{
				ID:            "database",
				FilesToCreate: []string{"db/migrations/0002_users.sql", "internal/store/users.go"},
			},
		},
	}

	warnings := New().Scan(plan)
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %d: %v", len(warnings), warnings)
	}

	if warnings[0].AgentID != "backend" || warnings[0].Path != "internal/auth/session_store.go" {
		t.Errorf("unexpected first warning: %+v", warnings[0])
	}
	if warnings[1].AgentID != "database" || warnings[1].Path != "db/migrations/0002_users.sql" {
		t.Errorf("unexpected second warning: %+v", warnings[1])
	}

	for _, w := range warnings {
		if w.Reason == "" {
			t.Errorf("warning %s has empty reason", w.Path)
		}
		if !strings.Contains(w.String(), w.AgentID) {
			t.Errorf("String() %q missing agent id", w.String())
		}
	}
}

func TestDetectorScanCleanPlan(t *testing.T) {
	plan := &models.DeploymentPlan{
		ID: "plan-2",
		Agents: []*models.AgentSpec{
			{ID: "frontend", FilesToCreate: []string{"web/src/app.tsx"}},
		},
	}

	if warnings := New().Scan(plan); len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
}
