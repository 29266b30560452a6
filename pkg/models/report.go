package models

import "time"

// ValidationResult reports one validator invocation for one agent.
// Produced fresh on every run; not persisted unless the caller keeps it.
type ValidationResult struct {
	// AgentID is the spec that was validated.
	AgentID string `json:"agent_id"`
	// Passed is true when every gate passed.
	Passed bool `json:"passed"`
	// UnmetCriteria lists checklist entries that were not ticked, in
	// checklist order. Non-empty only when the checklist gate failed.
	UnmetCriteria []string `json:"unmet_criteria,omitempty"`
	// TreeClean is true when the workspace had no uncommitted changes.
	TreeClean bool `json:"tree_clean"`
	// TestsRan is false when an earlier gate short-circuited the run.
	TestsRan bool `json:"tests_ran"`
	// TestsPassed reports the external test runner outcome. True when
	// tests were skipped by short-circuit is never set; check TestsRan.
	TestsPassed bool `json:"tests_passed"`
	// TestReport carries the runner's output, truncated for storage.
	TestReport string `json:"test_report,omitempty"`
	// Duration is the wall-clock time of the validation run.
	Duration time.Duration `json:"duration"`
}

// ResolutionStrategy selects how a conflicted merge is resolved.
type ResolutionStrategy string

const (
	// ResolveManual hands each conflict to an external caller and waits.
	ResolveManual ResolutionStrategy = "manual"
	// ResolvePreferIncoming keeps the workspace branch side of every
	// conflicted file.
	ResolvePreferIncoming ResolutionStrategy = "incoming"
	// ResolvePreferTarget keeps the target branch side of every
	// conflicted file.
	ResolvePreferTarget ResolutionStrategy = "target"
	// ResolveUnion keeps both sides, target first, joined by separator
	// lines.
	ResolveUnion ResolutionStrategy = "union"
)

// Valid returns true if the strategy is a known value.
func (s ResolutionStrategy) Valid() bool {
	switch s {
	case ResolveManual, ResolvePreferIncoming, ResolvePreferTarget, ResolveUnion:
		return true
	default:
		return false
	}
}

// ConflictRecord describes one conflicted file in one merge attempt.
// Created when a merge produces overlapping hunks; discarded once
// resolution commits or the attempt aborts.
type ConflictRecord struct {
	// AgentID is the spec whose integration produced the conflict.
	AgentID string `json:"agent_id"`
	// FilePath is the conflicted path relative to the repository root.
	FilePath string `json:"file_path"`
	// ConflictMarkersPresent is true when the working copy still holds
	// <<<<<<< style markers.
	ConflictMarkersPresent bool `json:"conflict_markers_present"`
	// TargetContent is the file as it exists on the target branch.
	TargetContent string `json:"target_content,omitempty"`
	// IncomingContent is the file as it exists on the workspace branch.
	IncomingContent string `json:"incoming_content,omitempty"`
	// Preview is a unified diff between the two sides, for presentation.
	Preview string `json:"preview,omitempty"`
	// ResolutionStrategy is the strategy applied to this record.
	ResolutionStrategy ResolutionStrategy `json:"resolution_strategy"`
	// ResolvedContent holds the chosen content once resolved; nil while
	// unresolved.
	ResolvedContent *string `json:"resolved_content,omitempty"`
}

// AgentProgress is one agent's line in a status report.
type AgentProgress struct {
	// AgentID is the spec being reported.
	AgentID string `json:"agent_id"`
	// Role is carried along for display.
	Role string `json:"role"`
	// Status is the spec's persisted status. In-progress is derived when
	// a spawned workspace shows commits or ticks.
	Status AgentStatus `json:"status"`
	// Percent is ticked/total criteria, in [0,100].
	Percent float64 `json:"percent"`
	// TickedCriteria counts checklist entries marked done.
	TickedCriteria int `json:"ticked_criteria"`
	// TotalCriteria counts all checklist entries.
	TotalCriteria int `json:"total_criteria"`
	// Commits counts workspace commits not on the base branch.
	Commits int `json:"commits"`
	// CleanTree is true when the workspace has no uncommitted changes.
	CleanTree bool `json:"clean_tree"`
	// HasWorkspace is false for agents that were never spawned or whose
	// workspace is gone; such agents count as 0% toward the overall.
	HasWorkspace bool `json:"has_workspace"`
}

// StatusReport aggregates progress across a whole plan. It is a pure
// function of current statuses plus checklist state.
type StatusReport struct {
	// PlanID identifies the plan the report describes.
	PlanID string `json:"plan_id"`
	// GeneratedAt is when the snapshot was taken.
	GeneratedAt time.Time `json:"generated_at"`
	// Overall is the mean of per-agent percentages, in [0,100].
	Overall float64 `json:"overall"`
	// Agents holds one entry per spec, in discovery order.
	Agents []AgentProgress `json:"agents"`
	// Integrated counts specs that reached integrated.
	Integrated int `json:"integrated"`
	// Blocked counts specs currently blocked.
	Blocked int `json:"blocked"`
	// Failed counts specs currently failed.
	Failed int `json:"failed"`
}

// AgentOutcome classifies how one agent fared in an integration run.
type AgentOutcome string

const (
	// OutcomeIntegrated means the merge committed cleanly or after
	// resolution.
	OutcomeIntegrated AgentOutcome = "integrated"
	// OutcomeConflicted means the merge conflicted and was aborted.
	OutcomeConflicted AgentOutcome = "conflicted"
	// OutcomeBlocked means a dependency never integrated.
	OutcomeBlocked AgentOutcome = "blocked"
	// OutcomeSkipped means the agent was not eligible this run (not yet
	// validated).
	OutcomeSkipped AgentOutcome = "skipped"
)

// IntegrationResult is one agent's outcome within an integration run.
type IntegrationResult struct {
	// AgentID is the spec the result describes.
	AgentID string `json:"agent_id"`
	// Outcome classifies what happened.
	Outcome AgentOutcome `json:"outcome"`
	// Wave is the topological wave the agent integrated in, counting
	// from 0. Meaningful only for integrated agents.
	Wave int `json:"wave"`
	// BlockedBy names the dependency that kept this agent out, for
	// blocked outcomes.
	BlockedBy string `json:"blocked_by,omitempty"`
	// ConflictFiles lists paths that conflicted, for conflicted outcomes.
	ConflictFiles []string `json:"conflict_files,omitempty"`
	// MergeCommit is the commit created on the target branch, for
	// integrated outcomes.
	MergeCommit string `json:"merge_commit,omitempty"`
	// Reason is a human-readable explanation for non-integrated outcomes.
	Reason string `json:"reason,omitempty"`
}

// IntegrationReport is the plan-level summary of one integration run.
// Every skipped or blocked agent appears individually with its reason.
type IntegrationReport struct {
	// PlanID identifies the plan that was integrated.
	PlanID string `json:"plan_id"`
	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	// Results holds one entry per considered agent, in the order they
	// were decided.
	Results []IntegrationResult `json:"results"`
	// Waves is the number of topological waves executed.
	Waves int `json:"waves"`
}

// Integrated returns the count of agents that integrated in this run.
func (r *IntegrationReport) Integrated() int {
	return r.countOutcome(OutcomeIntegrated)
}

// Blocked returns the count of agents blocked or conflicted in this run.
func (r *IntegrationReport) Blocked() int {
	return r.countOutcome(OutcomeBlocked) + r.countOutcome(OutcomeConflicted)
}

// Complete reports whether every considered agent integrated.
func (r *IntegrationReport) Complete() bool {
	for _, res := range r.Results {
		if res.Outcome != OutcomeIntegrated {
			return false
		}
	}
	return true
}

func (r *IntegrationReport) countOutcome(o AgentOutcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}
