package events

import (
	"testing"
	"time"
)

func TestEmitter_Delivers(t *testing.T) {
	e := NewEmitter(4)
	e.Emit(Event{Type: TypeAgentIntegrated, PlanID: "p", AgentID: "backend"})

	select {
	case got := <-e.Events():
		if got.Type != TypeAgentIntegrated || got.AgentID != "backend" {
			t.Errorf("event = %+v", got)
		}
		if got.Timestamp.IsZero() {
			t.Error("timestamp not stamped")
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestEmitter_DropsWhenFull(t *testing.T) {
	e := NewEmitter(1)
	e.Emit(Event{Type: TypeAgentSpawned})
	e.Emit(Event{Type: TypeAgentSpawned})

	if got := e.DroppedCount(); got != 1 {
		t.Errorf("DroppedCount() = %d, want 1", got)
	}
}

func TestEmitter_CloseEndsStream(t *testing.T) {
	e := NewEmitter(1)
	e.Close()
	if _, ok := <-e.Events(); ok {
		t.Error("stream still open after Close")
	}
}
