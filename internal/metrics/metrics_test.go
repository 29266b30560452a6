package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/fieldmarshal/brigade/internal/events"
)

func TestMetrics_Observe(t *testing.T) {
	_, m := NewRegistry()

	m.Observe(events.Event{Type: events.TypeAgentSpawned, AgentID: "database"})
	m.Observe(events.Event{Type: events.TypeAgentValidated, AgentID: "database"})
	m.Observe(events.Event{Type: events.TypeAgentFailed, AgentID: "backend"})
	m.Observe(events.Event{
		Type:     events.TypeAgentIntegrated,
		AgentID:  "database",
		Duration: 120 * time.Millisecond,
	})
	m.Observe(events.Event{
		Type:    events.TypeConflictDetected,
		AgentID: "backend",
		Files:   []string{"app.go", "routes.go"},
	})
	m.Observe(events.Event{Type: events.TypeAgentBlocked, AgentID: "frontend"})
	m.Observe(events.Event{Type: events.TypePlanDone})

	if got := testutil.ToFloat64(m.spawns); got != 1 {
		t.Errorf("spawns = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.validations.WithLabelValues("passed")); got != 1 {
		t.Errorf("validations{passed} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.validations.WithLabelValues("failed")); got != 1 {
		t.Errorf("validations{failed} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.merges.WithLabelValues("integrated")); got != 1 {
		t.Errorf("merges{integrated} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.merges.WithLabelValues("conflicted")); got != 1 {
		t.Errorf("merges{conflicted} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.conflictFiles); got != 2 {
		t.Errorf("conflictFiles = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.blocked); got != 1 {
		t.Errorf("blocked = %v, want 1", got)
	}
}

func TestMetrics_ListenDrainsStream(t *testing.T) {
	_, m := NewRegistry()
	emitter := events.NewEmitter(8)
	fan := events.NewFanout()
	sub := fan.Subscribe(8)
	go fan.Run(emitter.Events())

	done := make(chan struct{})
	go func() {
		m.Listen(sub)
		close(done)
	}()

	emitter.Emit(events.Event{Type: events.TypeAgentSpawned, AgentID: "database"})
	emitter.Emit(events.Event{Type: events.TypeAgentSpawned, AgentID: "backend"})
	emitter.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Listen never returned after stream close")
	}
	if got := testutil.ToFloat64(m.spawns); got != 2 {
		t.Errorf("spawns = %v, want 2", got)
	}
}

func TestMustNew_ReregistrationReusesCollectors(t *testing.T) {
	reg, first := NewRegistry()
	second := MustNew(reg)

	second.Observe(events.Event{Type: events.TypeAgentSpawned})
	if got := testutil.ToFloat64(first.spawns); got != 1 {
		t.Errorf("first.spawns = %v, want 1 observed through the reused collector", got)
	}

	if gathered, err := reg.Gather(); err != nil || len(gathered) == 0 {
		t.Errorf("Gather() = %d families, err %v; want collectors registered once", len(gathered), err)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.Observe(events.Event{Type: events.TypeAgentSpawned})
}
