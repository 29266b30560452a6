package models

import "testing"

func TestResolutionStrategy_Valid(t *testing.T) {
	for _, s := range []ResolutionStrategy{ResolveManual, ResolvePreferIncoming, ResolvePreferTarget, ResolveUnion} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if ResolutionStrategy("ours").Valid() {
		t.Error("unknown strategy should be invalid")
	}
}

func TestIntegrationReport_Tallies(t *testing.T) {
	r := &IntegrationReport{
		Results: []IntegrationResult{
			{AgentID: "a", Outcome: OutcomeConflicted, ConflictFiles: []string{"main.go"}},
			{AgentID: "b", Outcome: OutcomeIntegrated, Wave: 0},
			{AgentID: "c", Outcome: OutcomeBlocked, BlockedBy: "a"},
		},
	}

	if got := r.Integrated(); got != 1 {
		t.Errorf("Integrated() = %d, want 1", got)
	}
	if got := r.Blocked(); got != 2 {
		t.Errorf("Blocked() = %d, want 2", got)
	}
	if r.Complete() {
		t.Error("report with blocked agents should not be complete")
	}

	all := &IntegrationReport{Results: []IntegrationResult{{AgentID: "a", Outcome: OutcomeIntegrated}}}
	if !all.Complete() {
		t.Error("all-integrated report should be complete")
	}
}
