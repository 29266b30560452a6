package events

import (
	"testing"
	"time"
)

func TestFanout_DeliversToAllSubscribers(t *testing.T) {
	emitter := NewEmitter(8)
	fan := NewFanout()
	first := fan.Subscribe(8)
	second := fan.Subscribe(8)
	go fan.Run(emitter.Events())

	emitter.Emit(Event{Type: TypeAgentSpawned, AgentID: "database"})
	emitter.Close()

	for name, ch := range map[string]<-chan Event{"first": first, "second": second} {
		select {
		case event := <-ch:
			if event.AgentID != "database" {
				t.Errorf("%s subscriber got agent %q, want database", name, event.AgentID)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s subscriber got nothing", name)
		}
	}
}

func TestFanout_ClosesSubscribersWhenSourceEnds(t *testing.T) {
	emitter := NewEmitter(8)
	fan := NewFanout()
	sub := fan.Subscribe(8)
	go fan.Run(emitter.Events())

	emitter.Close()

	select {
	case _, open := <-sub:
		if open {
			t.Error("subscriber channel delivered an event, want close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel never closed")
	}

	if _, open := <-fan.Subscribe(1); open {
		t.Error("late Subscribe() returned an open channel, want closed")
	}
}

func TestFanout_SlowSubscriberDropsNotBlocks(t *testing.T) {
	emitter := NewEmitter(8)
	fan := NewFanout()
	slow := fan.Subscribe(1)
	wide := fan.Subscribe(8)
	go fan.Run(emitter.Events())

	for i := 0; i < 5; i++ {
		emitter.Emit(Event{Type: TypeAgentSpawned})
	}
	emitter.Close()

	// Draining the wide subscriber to its close proves every publish
	// finished; slow was never read, so extras were dropped against its
	// full buffer.
	wideCount := 0
	for range wide {
		wideCount++
	}
	if wideCount != 5 {
		t.Fatalf("wide subscriber received %d events, want 5", wideCount)
	}

	slowCount := 0
	for range slow {
		slowCount++
	}
	if slowCount != 1 {
		t.Errorf("slow subscriber received %d events, want its buffer of 1", slowCount)
	}
}
