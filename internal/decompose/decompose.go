// Package decompose turns flat work item lists into agent spec drafts.
// The planner consumes drafts through the Decomposer interface and does
// not care whether they came from keyword rules or a language model.
package decompose

import (
	"context"

	"github.com/fieldmarshal/brigade/pkg/models"
)

// Draft is one proposed agent spec, before the planner assigns IDs,
// verifies the work item partition, and checks the dependency graph.
type Draft struct {
	// Role is the free-text responsibility label. The planner derives
	// the spec ID from it.
	Role string
	// Items are the work items this draft covers.
	Items []models.WorkItem
	// FilesToCreate and FilesToModify declare intended file touches.
	FilesToCreate []string
	FilesToModify []string
	// DependsOn lists role labels of drafts that must integrate first.
	DependsOn []string
	// EstimatedMinutes is the effort estimate for the whole draft.
	EstimatedMinutes int
}

// Decomposer groups work items into agent spec drafts. maxAgents is a
// ceiling hint; implementations may exceed it and leave enforcement to
// the planner, which merges drafts deterministically.
type Decomposer interface {
	Decompose(ctx context.Context, items []models.WorkItem, maxAgents int) ([]Draft, error)
}

// Criteria returns the validation checklist for a draft: one entry per
// covered work item, in source order.
func (d Draft) Criteria() []string {
	out := make([]string, len(d.Items))
	for i, item := range d.Items {
		out[i] = item.Text
	}
	return out
}

// SourceIndexes returns the covered work item indexes, in source order.
func (d Draft) SourceIndexes() []int {
	out := make([]int, len(d.Items))
	for i, item := range d.Items {
		out[i] = item.SourceIndex
	}
	return out
}
