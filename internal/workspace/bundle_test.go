package workspace

import (
	"reflect"
	"strings"
	"testing"

	"github.com/fieldmarshal/brigade/pkg/models"
)

func TestBundleRoundTrip(t *testing.T) {
	dir := t.TempDir()
	spec := &models.AgentSpec{
		ID:                 "backend",
		Role:               "backend",
		FilesToCreate:      []string{"internal/api/login.go"},
		FilesToModify:      []string{"internal/api/routes.go"},
		ValidationCriteria: []string{"login endpoint responds", "tests pass"},
		EstimatedMinutes:   40,
		Status:             models.StatusPending,
	}

	if err := WriteBundle(dir, spec); err != nil {
		t.Fatalf("WriteBundle() error = %v", err)
	}

	bundle, err := ReadBundle(dir)
	if err != nil {
		t.Fatalf("ReadBundle() error = %v", err)
	}

	if bundle.Agent.ID != "backend" {
		t.Errorf("Agent.ID = %q, want backend", bundle.Agent.ID)
	}
	if !reflect.DeepEqual(bundle.Files.Create, spec.FilesToCreate) {
		t.Errorf("Files.Create = %v, want %v", bundle.Files.Create, spec.FilesToCreate)
	}
	if len(bundle.Checklist) != 2 {
		t.Fatalf("checklist has %d entries, want 2", len(bundle.Checklist))
	}
	for _, entry := range bundle.Checklist {
		if entry.Done {
			t.Errorf("entry %q ticked at spawn, want unticked", entry.Criterion)
		}
	}
}

func TestBundleTicking(t *testing.T) {
	dir := t.TempDir()
	spec := &models.AgentSpec{
		ID:                 "backend",
		ValidationCriteria: []string{"one", "two", "three"},
	}
	if err := WriteBundle(dir, spec); err != nil {
		t.Fatalf("WriteBundle() error = %v", err)
	}

	bundle, err := ReadBundle(dir)
	if err != nil {
		t.Fatalf("ReadBundle() error = %v", err)
	}
	bundle.Checklist[0].Done = true
	bundle.Checklist[2].Done = true
	if err := SaveBundle(dir, bundle); err != nil {
		t.Fatalf("SaveBundle() error = %v", err)
	}

	reread, err := ReadBundle(dir)
	if err != nil {
		t.Fatalf("ReadBundle() error = %v", err)
	}
	if got := reread.TickedCount(); got != 2 {
		t.Errorf("TickedCount() = %d, want 2", got)
	}
	if got := reread.UnmetCriteria(); !reflect.DeepEqual(got, []string{"two"}) {
		t.Errorf("UnmetCriteria() = %v, want [two]", got)
	}
	if reread.Complete() {
		t.Error("Complete() = true with one criterion unmet")
	}

	reread.Checklist[1].Done = true
	if !reread.Complete() {
		t.Error("Complete() = false with all criteria ticked")
	}
}

func TestNewBundleClonesSpec(t *testing.T) {
	spec := &models.AgentSpec{
		ID:                 "backend",
		ValidationCriteria: []string{"original"},
	}
	bundle := NewBundle(spec)

	spec.ValidationCriteria[0] = "mutated"
	if bundle.Agent.ValidationCriteria[0] != "original" {
		t.Error("bundle shares criteria slice with the spec")
	}
	if bundle.Checklist[0].Criterion != "original" {
		t.Errorf("checklist entry = %q, want original", bundle.Checklist[0].Criterion)
	}
}

func TestReadBundle_Missing(t *testing.T) {
	if _, err := ReadBundle(t.TempDir()); err == nil {
		t.Error("ReadBundle() on empty dir succeeded, want error")
	}
}

func TestFailureMarker(t *testing.T) {
	dir := t.TempDir()

	if _, found := FailureReason(dir); found {
		t.Error("FailureReason() found a marker in a fresh dir")
	}

	if err := WriteFailureMarker(dir, "tests failed: 3 of 12"); err != nil {
		t.Fatalf("WriteFailureMarker() error = %v", err)
	}

	reason, found := FailureReason(dir)
	if !found {
		t.Fatal("FailureReason() found no marker after write")
	}
	if !strings.Contains(reason, "tests failed: 3 of 12") {
		t.Errorf("reason = %q, want it to contain the failure text", reason)
	}
}
