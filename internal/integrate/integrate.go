// Package integrate merges validated agents into the target branch in
// dependency order. Agents whose dependencies are all integrated form
// a wave; waves repeat until nothing new can land. Merges into the
// target are strictly serialized, one mutex held per merge commit, and
// a conflicted agent blocks only itself and its dependents while
// unrelated agents keep integrating.
package integrate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/fieldmarshal/brigade/internal/events"
	"github.com/fieldmarshal/brigade/internal/graph"
	"github.com/fieldmarshal/brigade/internal/logging"
	"github.com/fieldmarshal/brigade/internal/merge"
	"github.com/fieldmarshal/brigade/internal/workspace"
	"github.com/fieldmarshal/brigade/pkg/models"
)

// Merger is the slice of merge.Handler the integrator drives.
type Merger interface {
	Merge(ctx context.Context, agentID, branch string) (*merge.Result, error)
}

// Destroyer tears down integrated workspaces. *workspace.Manager
// satisfies it; leaving it unset keeps workspaces on disk.
type Destroyer interface {
	Destroy(ctx context.Context, ws *models.Workspace) error
}

// Integrator drives the per-agent integration state machine across a
// plan. Integration state is derived from current agent statuses
// alone, so re-running after a crash or an out-of-band fix picks up
// where the last run stopped.
type Integrator struct {
	handler   Merger
	root      string
	destroyer Destroyer
	emitter   *events.Emitter
	mu        sync.Mutex
	log       zerolog.Logger
}

// Option configures an Integrator.
type Option func(*Integrator)

// WithDestroyer schedules workspace teardown after each successful
// integration.
func WithDestroyer(d Destroyer) Option {
	return func(in *Integrator) { in.destroyer = d }
}

// WithEmitter publishes lifecycle events for each transition.
func WithEmitter(em *events.Emitter) Option {
	return func(in *Integrator) { in.emitter = em }
}

// WithLogger overrides the default component logger.
func WithLogger(log zerolog.Logger) Option {
	return func(in *Integrator) { in.log = log }
}

// New creates an Integrator that merges through handler and locates
// workspaces under root.
func New(handler Merger, root string, opts ...Option) *Integrator {
	in := &Integrator{
		handler: handler,
		root:    root,
		log:     logging.Component("integrate"),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Run integrates every eligible agent in the plan and reports each
// agent's outcome individually. Already-integrated agents count as
// done and are not reconsidered. The run continues past conflicted
// agents; it stops early only on context cancellation or a repository
// error, returning the partial report alongside the error.
func (in *Integrator) Run(ctx context.Context, plan *models.DeploymentPlan) (*models.IntegrationReport, error) {
	report := &models.IntegrationReport{
		PlanID:    plan.ID,
		StartedAt: time.Now().UTC(),
	}

	g := graph.New()
	if err := g.Build(plan.Agents); err != nil {
		return nil, fmt.Errorf("dependency graph: %w", err)
	}
	for _, spec := range plan.Agents {
		if spec.Status == models.StatusIntegrated {
			g.MarkDone(spec.ID)
		}
	}

	// Workspace teardown overlaps later waves; merges never wait on it.
	var cleanup errgroup.Group
	cleanup.SetLimit(4)
	decided := make(map[string]models.AgentOutcome)

	wave := 0
	for {
		ready := in.eligible(plan, g, decided)
		if len(ready) == 0 {
			break
		}
		for _, spec := range ready {
			if err := ctx.Err(); err != nil {
				return in.finish(report, &cleanup), err
			}
			result, err := in.integrateOne(ctx, plan, g, spec, wave, &cleanup)
			if err != nil {
				return in.finish(report, &cleanup), err
			}
			report.Results = append(report.Results, result)
			decided[spec.ID] = result.Outcome
		}
		wave++
	}
	report.Waves = wave

	for _, spec := range plan.Agents {
		if spec.Status == models.StatusIntegrated {
			continue
		}
		if _, done := decided[spec.ID]; done {
			continue
		}
		report.Results = append(report.Results, in.classifyLeftover(plan, spec))
	}

	in.finish(report, &cleanup)
	in.emit(events.Event{
		Type:    events.TypePlanDone,
		PlanID:  plan.ID,
		Message: fmt.Sprintf("%d integrated, %d blocked, %d waves", report.Integrated(), report.Blocked(), report.Waves),
	})
	in.log.Info().
		Int("integrated", report.Integrated()).
		Int("blocked", report.Blocked()).
		Int("waves", report.Waves).
		Msg("integration run finished")
	return report, nil
}

// eligible returns validated specs whose dependencies are all
// integrated and which have not been decided this run, in plan order.
func (in *Integrator) eligible(plan *models.DeploymentPlan, g *graph.DependencyGraph, decided map[string]models.AgentOutcome) []*models.AgentSpec {
	var out []*models.AgentSpec
	for _, id := range g.Ready() {
		if _, done := decided[id]; done {
			continue
		}
		spec := plan.Agent(id)
		if spec == nil || spec.Status != models.StatusValidated {
			continue
		}
		out = append(out, spec)
	}
	return out
}

// integrateOne merges a single agent under the target-branch mutex and
// applies the resulting transition. An error means the repository
// itself failed; conflicts come back as a result.
func (in *Integrator) integrateOne(ctx context.Context, plan *models.DeploymentPlan, g *graph.DependencyGraph, spec *models.AgentSpec, wave int, cleanup *errgroup.Group) (models.IntegrationResult, error) {
	branch := workspace.BranchName(plan, spec.ID)
	in.emit(events.Event{Type: events.TypeMergeStarted, PlanID: plan.ID, AgentID: spec.ID, Wave: wave})

	start := time.Now()
	in.mu.Lock()
	result, err := in.handler.Merge(ctx, spec.ID, branch)
	in.mu.Unlock()
	took := time.Since(start)

	if err != nil {
		return models.IntegrationResult{}, fmt.Errorf("merge %s: %w", spec.ID, err)
	}

	if !result.Merged {
		spec.Status = models.StatusBlocked
		in.emit(events.Event{
			Type:     events.TypeConflictDetected,
			PlanID:   plan.ID,
			AgentID:  spec.ID,
			Files:    result.ConflictFiles,
			Message:  result.Reason,
			Wave:     wave,
			Duration: took,
		})
		in.log.Warn().Str("agent", spec.ID).Strs("files", result.ConflictFiles).Str("reason", result.Reason).Msg("agent blocked on conflict")
		return models.IntegrationResult{
			AgentID:       spec.ID,
			Outcome:       models.OutcomeConflicted,
			Wave:          wave,
			ConflictFiles: result.ConflictFiles,
			Reason:        result.Reason,
		}, nil
	}

	spec.Status = models.StatusIntegrated
	spec.BlockedBy = ""
	g.MarkDone(spec.ID)
	in.emit(events.Event{
		Type:     events.TypeAgentIntegrated,
		PlanID:   plan.ID,
		AgentID:  spec.ID,
		Wave:     wave,
		Duration: took,
		Message:  result.MergeCommit,
	})
	in.scheduleDestroy(plan, spec.ID, branch, cleanup)

	return models.IntegrationResult{
		AgentID:       spec.ID,
		Outcome:       models.OutcomeIntegrated,
		Wave:          wave,
		ConflictFiles: result.ConflictFiles,
		MergeCommit:   result.MergeCommit,
	}, nil
}

func (in *Integrator) scheduleDestroy(plan *models.DeploymentPlan, agentID, branch string, cleanup *errgroup.Group) {
	if in.destroyer == nil {
		return
	}
	ws := &models.Workspace{
		AgentID:    agentID,
		Path:       workspace.PathFor(in.root, plan, agentID),
		BranchName: branch,
	}
	cleanup.Go(func() error {
		// Cleanup still runs when the caller's context is cancelled.
		if err := in.destroyer.Destroy(context.Background(), ws); err != nil {
			in.log.Warn().Err(err).Str("agent", ws.AgentID).Msg("workspace cleanup failed")
		}
		return nil
	})
}

// classifyLeftover reports an agent the waves never reached. Validated
// agents become blocked, named after the dependency that kept them
// out; everything else is skipped as not yet validated.
func (in *Integrator) classifyLeftover(plan *models.DeploymentPlan, spec *models.AgentSpec) models.IntegrationResult {
	blocker := blockerFor(plan, spec)

	switch spec.Status {
	case models.StatusValidated:
		spec.Status = models.StatusBlocked
		spec.BlockedBy = blocker
		in.emit(events.Event{
			Type:    events.TypeAgentBlocked,
			PlanID:  plan.ID,
			AgentID: spec.ID,
			Message: fmt.Sprintf("dependency %s never integrated", blocker),
		})
		return models.IntegrationResult{
			AgentID:   spec.ID,
			Outcome:   models.OutcomeBlocked,
			BlockedBy: blocker,
			Reason:    fmt.Sprintf("dependency %s never integrated", blocker),
		}
	case models.StatusBlocked:
		if spec.BlockedBy != "" {
			blocker = spec.BlockedBy
		}
		return models.IntegrationResult{
			AgentID:   spec.ID,
			Outcome:   models.OutcomeBlocked,
			BlockedBy: blocker,
			Reason:    "blocked from an earlier run; re-validate to retry",
		}
	default:
		reason := fmt.Sprintf("not validated (status %s)", spec.Status)
		if blocker != "" {
			reason += fmt.Sprintf("; dependency %s not integrated", blocker)
		}
		return models.IntegrationResult{
			AgentID: spec.ID,
			Outcome: models.OutcomeSkipped,
			Reason:  reason,
		}
	}
}

func (in *Integrator) finish(report *models.IntegrationReport, cleanup *errgroup.Group) *models.IntegrationReport {
	_ = cleanup.Wait()
	report.FinishedAt = time.Now().UTC()
	return report
}

// blockerFor names the first dependency that is not integrated, or ""
// when every dependency landed.
func blockerFor(plan *models.DeploymentPlan, spec *models.AgentSpec) string {
	for _, dep := range spec.DependsOn {
		depSpec := plan.Agent(dep)
		if depSpec == nil || depSpec.Status != models.StatusIntegrated {
			return dep
		}
	}
	return ""
}

func (in *Integrator) emit(event events.Event) {
	if in.emitter != nil {
		in.emitter.Emit(event)
	}
}
