// Package events carries lifecycle notifications between brigade's
// phases and their consumers: the run journal, the watch dashboard,
// and the websocket stream.
package events

import "time"

// Type is the kind of lifecycle event.
type Type string

const (
	// TypePlanCreated fires once when a plan is built and persisted.
	TypePlanCreated Type = "plan_created"
	// TypeAgentSpawned fires when a workspace is created for an agent.
	TypeAgentSpawned Type = "agent_spawned"
	// TypeAgentValidated fires when every validation gate passes.
	TypeAgentValidated Type = "agent_validated"
	// TypeAgentFailed fires when a validation gate fails.
	TypeAgentFailed Type = "agent_failed"
	// TypeMergeStarted fires when an agent's branch begins merging into
	// the target branch.
	TypeMergeStarted Type = "merge_started"
	// TypeConflictDetected fires when a merge leaves unmerged files.
	TypeConflictDetected Type = "conflict_detected"
	// TypeAgentIntegrated fires when an agent's merge commits.
	TypeAgentIntegrated Type = "agent_integrated"
	// TypeAgentBlocked fires when an agent cannot integrate, either from
	// an aborted merge or a dependency that never landed.
	TypeAgentBlocked Type = "agent_blocked"
	// TypePlanDone fires when an integration run finishes.
	TypePlanDone Type = "plan_done"
)

// Event is one lifecycle notification.
type Event struct {
	// Type is the kind of event.
	Type Type
	// PlanID identifies the plan the event belongs to.
	PlanID string
	// AgentID identifies the related agent, when applicable.
	AgentID string
	// Message provides human-readable context.
	Message string
	// Files lists related paths, such as conflicted files.
	Files []string
	// Wave is the integration wave, for integration events.
	Wave int
	// Duration is how long the operation took, for events that close
	// one (merges, validations).
	Duration time.Duration
	// Err carries failure details for failed/blocked events.
	Err error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
