package models

import "time"

// AgentStatus represents the current state of an agent spec.
type AgentStatus string

const (
	// StatusPending indicates the spec exists but has no workspace yet.
	StatusPending AgentStatus = "pending"
	// StatusSpawned indicates the workspace has been created and the
	// context bundle written.
	StatusSpawned AgentStatus = "spawned"
	// StatusInProgress indicates a worker has started committing or
	// ticking criteria inside the workspace.
	StatusInProgress AgentStatus = "in_progress"
	// StatusValidated indicates the checklist, working tree, and test
	// gates all passed.
	StatusValidated AgentStatus = "validated"
	// StatusIntegrated indicates the workspace branch merged into the
	// target branch.
	StatusIntegrated AgentStatus = "integrated"
	// StatusFailed indicates validation failed for this agent.
	StatusFailed AgentStatus = "failed"
	// StatusBlocked indicates integration cannot proceed, either because
	// this agent's merge was aborted or a dependency never integrated.
	StatusBlocked AgentStatus = "blocked"
)

// Valid returns true if the status is a known value.
func (s AgentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSpawned, StatusInProgress,
		StatusValidated, StatusIntegrated, StatusFailed, StatusBlocked:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transition is expected. Only
// integrated is terminal; failed and blocked agents can recover after
// out-of-band fixes.
func (s AgentStatus) Terminal() bool {
	return s == StatusIntegrated
}

// CanTransition reports whether moving to the given status is a legal
// step. The happy path is pending -> spawned -> in_progress -> validated
// -> integrated. Failed specs may be re-validated, blocked specs may be
// re-integrated once their blocker clears, and a spawned spec reverts to
// pending when a batch spawn rolls back.
func (s AgentStatus) CanTransition(to AgentStatus) bool {
	if !to.Valid() || s == to {
		return false
	}
	switch s {
	case StatusPending:
		return to == StatusSpawned || to == StatusFailed
	case StatusSpawned:
		return to == StatusPending || to == StatusInProgress ||
			to == StatusValidated || to == StatusFailed
	case StatusInProgress:
		return to == StatusValidated || to == StatusFailed
	case StatusValidated:
		return to == StatusIntegrated || to == StatusBlocked || to == StatusFailed
	case StatusFailed:
		return to == StatusInProgress || to == StatusValidated
	case StatusBlocked:
		return to == StatusValidated || to == StatusIntegrated || to == StatusFailed
	case StatusIntegrated:
		return false
	default:
		return false
	}
}

// AgentSpec is one schedulable unit of decomposed work. Specs are created
// by the planner and mutated only at phase boundaries: the workspace
// manager sets spawned, the validator sets validated or failed, and the
// integrator sets integrated or blocked.
type AgentSpec struct {
	// ID uniquely identifies the spec within its plan, derived from the
	// role label.
	ID string `json:"id" yaml:"id"`
	// Role is the free-text description of this agent's responsibility.
	Role string `json:"role" yaml:"role"`
	// FilesToCreate lists paths the worker is expected to create.
	// Declarative intent only; not enforced at spawn time.
	FilesToCreate []string `json:"files_to_create,omitempty" yaml:"files_to_create,omitempty"`
	// FilesToModify lists paths the worker is expected to change.
	FilesToModify []string `json:"files_to_modify,omitempty" yaml:"files_to_modify,omitempty"`
	// DependsOn lists IDs of specs that must integrate before this one.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	// ValidationCriteria is the ordered completion checklist for this
	// spec. Every entry must be ticked in the workspace before tests run.
	ValidationCriteria []string `json:"validation_criteria" yaml:"validation_criteria"`
	// EstimatedMinutes is the decomposer's effort estimate.
	EstimatedMinutes int `json:"estimated_minutes" yaml:"estimated_minutes"`
	// SourceIndexes records which work items this spec covers, by their
	// SourceIndex. Kept sorted ascending.
	SourceIndexes []int `json:"source_indexes" yaml:"source_indexes"`
	// Status is the spec's position in the lifecycle.
	Status AgentStatus `json:"status" yaml:"status"`
	// BlockedBy names the dependency that blocked this spec, when
	// Status is blocked because of a failed dependency.
	BlockedBy string `json:"blocked_by,omitempty" yaml:"blocked_by,omitempty"`
}

// Clone returns a deep copy of the spec.
func (a *AgentSpec) Clone() *AgentSpec {
	c := *a
	c.FilesToCreate = append([]string(nil), a.FilesToCreate...)
	c.FilesToModify = append([]string(nil), a.FilesToModify...)
	c.DependsOn = append([]string(nil), a.DependsOn...)
	c.ValidationCriteria = append([]string(nil), a.ValidationCriteria...)
	c.SourceIndexes = append([]int(nil), a.SourceIndexes...)
	return &c
}

// Workspace is one isolated, branch-scoped checkout bound 1:1 to an agent
// spec. Exclusively owned by its spec; never shared.
type Workspace struct {
	// AgentID is the spec this workspace belongs to.
	AgentID string `json:"agent_id" yaml:"agent_id"`
	// Path is the absolute filesystem path of the checkout.
	Path string `json:"path" yaml:"path"`
	// BranchName is the git branch the checkout tracks.
	BranchName string `json:"branch_name" yaml:"branch_name"`
	// CreatedAt is when the workspace was spawned.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}
