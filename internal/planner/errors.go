package planner

import (
	"fmt"
	"strings"
)

// CyclicDependencyError reports a dependency cycle between agent specs.
// Cycle holds the path with the first spec repeated at the end.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return "circular dependency detected: " + strings.Join(e.Cycle, " -> ")
}

// OrphanedItemError reports work items the decomposer left unassigned.
type OrphanedItemError struct {
	Indexes []int
}

func (e *OrphanedItemError) Error() string {
	return fmt.Sprintf("work items %v not assigned to any agent", e.Indexes)
}

// DuplicateAssignmentError reports a work item claimed by more than one
// agent.
type DuplicateAssignmentError struct {
	Index int
	Roles []string
}

func (e *DuplicateAssignmentError) Error() string {
	return fmt.Sprintf("work item %d assigned to multiple agents: %s", e.Index, strings.Join(e.Roles, ", "))
}

// UnknownDependencyError reports a dependency hint that names no agent in
// the plan.
type UnknownDependencyError struct {
	Agent      string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("unknown dependency %q for agent %q", e.Dependency, e.Agent)
}
