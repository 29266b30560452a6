package journal

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/fieldmarshal/brigade/internal/events"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_RecordAndEntries(t *testing.T) {
	j := openTestJournal(t)

	first := events.Event{
		Type:      events.TypeMergeStarted,
		PlanID:    "plan-1",
		AgentID:   "database",
		Wave:      0,
		Timestamp: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	second := events.Event{
		Type:      events.TypeConflictDetected,
		PlanID:    "plan-1",
		AgentID:   "backend",
		Message:   "merge conflicted",
		Files:     []string{"app.go", "routes.go"},
		Wave:      1,
		Err:       errors.New("manual resolution declined"),
		Timestamp: time.Date(2026, 3, 10, 9, 1, 0, 0, time.UTC),
	}
	for _, event := range []events.Event{first, second} {
		if err := j.Record("run-1", event); err != nil {
			t.Fatalf("Record(%s) error = %v", event.Type, err)
		}
	}

	entries, err := j.Entries("run-1")
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Entries() = %d entries, want 2", len(entries))
	}
	if entries[0].Type != string(events.TypeMergeStarted) || entries[0].AgentID != "database" {
		t.Errorf("entry[0] = %s/%s, want merge start for database", entries[0].Type, entries[0].AgentID)
	}
	if entries[1].Detail != "merge conflicted: manual resolution declined" {
		t.Errorf("entry[1] detail = %q, want message and error folded", entries[1].Detail)
	}
	if entries[1].Files != "app.go, routes.go" {
		t.Errorf("entry[1] files = %q, want joined list", entries[1].Files)
	}
	if entries[1].Wave != 1 {
		t.Errorf("entry[1] wave = %d, want 1", entries[1].Wave)
	}
	if !entries[0].CreatedAt.Equal(first.Timestamp) {
		t.Errorf("entry[0] created at %v, want %v", entries[0].CreatedAt, first.Timestamp)
	}
}

func TestJournal_EntriesUnknownRun(t *testing.T) {
	j := openTestJournal(t)

	entries, err := j.Entries("no-such-run")
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Entries() = %d entries, want none", len(entries))
	}
}

func TestJournal_Runs(t *testing.T) {
	j := openTestJournal(t)

	older := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	seed := []struct {
		run   string
		event events.Event
	}{
		{"run-old", events.Event{Type: events.TypePlanCreated, PlanID: "plan-1", Timestamp: older}},
		{"run-old", events.Event{Type: events.TypePlanDone, PlanID: "plan-1", Timestamp: older.Add(time.Minute)}},
		{"run-new", events.Event{Type: events.TypeMergeStarted, PlanID: "plan-1", Timestamp: newer}},
	}
	for _, s := range seed {
		if err := j.Record(s.run, s.event); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	runs, err := j.Runs()
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Runs() = %d runs, want 2", len(runs))
	}
	if runs[0].RunID != "run-new" || runs[1].RunID != "run-old" {
		t.Errorf("run order = %s, %s; want newest first", runs[0].RunID, runs[1].RunID)
	}
	if runs[1].Events != 2 {
		t.Errorf("run-old events = %d, want 2", runs[1].Events)
	}
	if !runs[1].FinishedAt.Equal(older.Add(time.Minute)) {
		t.Errorf("run-old finished at %v, want %v", runs[1].FinishedAt, older.Add(time.Minute))
	}
	if runs[0].PlanID != "plan-1" {
		t.Errorf("run-new plan = %q, want plan-1", runs[0].PlanID)
	}
}

func TestJournal_ListenDrainsStream(t *testing.T) {
	j := openTestJournal(t)
	emitter := events.NewEmitter(8)
	fan := events.NewFanout()
	sub := fan.Subscribe(8)
	go fan.Run(emitter.Events())

	done := make(chan error, 1)
	go func() { done <- j.Listen("run-1", sub) }()

	emitter.Emit(events.Event{Type: events.TypeAgentSpawned, PlanID: "plan-1", AgentID: "database"})
	emitter.Emit(events.Event{Type: events.TypeAgentSpawned, PlanID: "plan-1", AgentID: "backend"})
	emitter.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Listen() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Listen never returned after stream close")
	}

	entries, err := j.Entries("run-1")
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("journal holds %d entries, want 2", len(entries))
	}
}
