// Package planner turns decomposed work items into a validated deployment
// plan backed by a dependency DAG.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fieldmarshal/brigade/internal/decompose"
	"github.com/fieldmarshal/brigade/internal/graph"
	"github.com/fieldmarshal/brigade/internal/logging"
	"github.com/fieldmarshal/brigade/pkg/models"
)

// Builder assembles deployment plans from work items. The decomposition
// strategy is injected; the builder owns the structural contract: every
// item assigned to exactly one agent, dependency hints resolved to real
// agents, no cycles, and the agent count held under the configured
// ceiling.
type Builder struct {
	decomposer   decompose.Decomposer
	maxAgents    int
	inferOverlap bool
	log          zerolog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithMaxAgents caps the number of agent specs in a plan. Zero means no
// ceiling.
func WithMaxAgents(n int) Option {
	return func(b *Builder) { b.maxAgents = n }
}

// WithOverlapInference turns on producer/consumer edge inference: a spec
// that modifies files another spec creates waits for the creator.
func WithOverlapInference() Option {
	return func(b *Builder) { b.inferOverlap = true }
}

// WithLogger overrides the builder's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(b *Builder) { b.log = log }
}

// NewBuilder creates a Builder around the given decomposition strategy.
func NewBuilder(d decompose.Decomposer, opts ...Option) *Builder {
	b := &Builder{
		decomposer: d,
		log:        logging.Component("planner"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build decomposes items into agent specs and returns a deployment plan
// whose specs form a DAG. It fails without returning a plan when the
// decomposer breaks the partition contract, a dependency hint is
// unresolvable, or the dependency edges contain a cycle.
func (b *Builder) Build(ctx context.Context, sourceDescription string, items []models.WorkItem, baseBranch string) (*models.DeploymentPlan, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("no work items to plan")
	}
	if baseBranch == "" {
		return nil, fmt.Errorf("base branch is required")
	}

	drafts, err := b.decomposer.Decompose(ctx, items, b.maxAgents)
	if err != nil {
		return nil, fmt.Errorf("decompose: %w", err)
	}
	if err := checkPartition(drafts, items); err != nil {
		return nil, err
	}

	specs, err := draftsToSpecs(drafts)
	if err != nil {
		return nil, err
	}

	if b.inferOverlap {
		inferOverlapEdges(specs)
	}

	if b.maxAgents > 0 && len(specs) > b.maxAgents {
		b.log.Debug().
			Int("specs", len(specs)).
			Int("max_agents", b.maxAgents).
			Msg("coalescing specs to meet agent ceiling")
		specs, err = enforceCeiling(specs, b.maxAgents)
		if err != nil {
			return nil, err
		}
	}

	if err := verifyAcyclic(specs); err != nil {
		return nil, err
	}

	plan := &models.DeploymentPlan{
		ID:                uuid.New().String(),
		SourceDescription: sourceDescription,
		BaseBranch:        baseBranch,
		Agents:            specs,
		CreatedAt:         time.Now().UTC(),
	}
	b.log.Info().
		Str("plan_id", plan.ID).
		Int("agents", len(specs)).
		Int("items", len(items)).
		Msg("plan built")
	return plan, nil
}

// checkPartition verifies every input item is claimed by exactly one
// draft.
func checkPartition(drafts []decompose.Draft, items []models.WorkItem) error {
	owner := make(map[int]string, len(items))
	for _, d := range drafts {
		for _, item := range d.Items {
			if prev, taken := owner[item.SourceIndex]; taken {
				return &DuplicateAssignmentError{Index: item.SourceIndex, Roles: []string{prev, d.Role}}
			}
			owner[item.SourceIndex] = d.Role
		}
	}

	var orphaned []int
	for _, item := range items {
		if _, claimed := owner[item.SourceIndex]; !claimed {
			orphaned = append(orphaned, item.SourceIndex)
		}
	}
	if len(orphaned) > 0 {
		return &OrphanedItemError{Indexes: orphaned}
	}
	return nil
}

// draftsToSpecs converts drafts into agent specs. Roles slug into spec
// IDs; dependency hints name roles and are rewritten to the matching IDs.
func draftsToSpecs(drafts []decompose.Draft) ([]*models.AgentSpec, error) {
	idByRole := make(map[string]string, len(drafts))
	for _, d := range drafts {
		id := models.Slugify(d.Role)
		if id == "" {
			return nil, fmt.Errorf("agent role %q slugs to an empty id", d.Role)
		}
		for role, other := range idByRole {
			if other == id {
				return nil, fmt.Errorf("agent roles %q and %q collide on id %q", role, d.Role, id)
			}
		}
		idByRole[d.Role] = id
	}

	specs := make([]*models.AgentSpec, 0, len(drafts))
	for _, d := range drafts {
		spec := &models.AgentSpec{
			ID:                 idByRole[d.Role],
			Role:               d.Role,
			FilesToCreate:      append([]string(nil), d.FilesToCreate...),
			FilesToModify:      append([]string(nil), d.FilesToModify...),
			ValidationCriteria: d.Criteria(),
			EstimatedMinutes:   d.EstimatedMinutes,
			SourceIndexes:      d.SourceIndexes(),
			Status:             models.StatusPending,
		}
		for _, label := range d.DependsOn {
			depID, known := idByRole[label]
			if !known {
				return nil, &UnknownDependencyError{Agent: spec.ID, Dependency: label}
			}
			if depID == spec.ID {
				continue
			}
			spec.DependsOn = appendUnique(spec.DependsOn, depID)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// verifyAcyclic builds the dependency graph over specs and converts a
// detected cycle into a CyclicDependencyError naming the path.
func verifyAcyclic(specs []*models.AgentSpec) error {
	g := graph.New()
	if err := g.Build(specs); err != nil {
		if errors.Is(err, graph.ErrCycleDetected) {
			return &CyclicDependencyError{Cycle: g.FindCycle()}
		}
		return err
	}
	return nil
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		present := false
		for _, existing := range dst {
			if existing == v {
				present = true
				break
			}
		}
		if !present {
			dst = append(dst, v)
		}
	}
	return dst
}
