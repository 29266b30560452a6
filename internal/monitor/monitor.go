// Package monitor aggregates read-only progress across agent workspaces.
package monitor

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/fieldmarshal/brigade/internal/git"
	"github.com/fieldmarshal/brigade/internal/logging"
	"github.com/fieldmarshal/brigade/internal/workspace"
	"github.com/fieldmarshal/brigade/pkg/models"
)

// DefaultReadLimit bounds concurrent per-workspace reads in Snapshot.
const DefaultReadLimit = 8

// Monitor produces status reports for a deployment plan. It never
// mutates agent state: every snapshot works on a deep copy of the plan
// and reads workspaces read-only.
type Monitor struct {
	root    string
	factory git.Factory
	limit   int
	log     zerolog.Logger
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithReadLimit bounds concurrent workspace reads.
func WithReadLimit(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.limit = n
		}
	}
}

// WithLogger overrides the monitor's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Monitor) { m.log = log }
}

// New creates a Monitor reading workspaces under root. The factory opens
// a git runner inside each workspace.
func New(root string, factory git.Factory, opts ...Option) *Monitor {
	m := &Monitor{
		root:    root,
		factory: factory,
		limit:   DefaultReadLimit,
		log:     logging.Component("monitor"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot reads every agent's workspace concurrently and aggregates the
// result. Per-agent percentage is ticked/total criteria; agents without
// a workspace count as 0% and integrated agents as 100%. The overall
// percentage is the mean across agents.
func (m *Monitor) Snapshot(ctx context.Context, plan *models.DeploymentPlan) (*models.StatusReport, error) {
	snap := plan.Snapshot()
	progress := make([]models.AgentProgress, len(snap.Agents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.limit)
	for i, agent := range snap.Agents {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			progress[i] = m.inspect(gctx, snap, agent)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &models.StatusReport{
		PlanID:      snap.ID,
		GeneratedAt: time.Now().UTC(),
		Agents:      progress,
	}
	var sum float64
	for _, p := range progress {
		sum += p.Percent
		switch p.Status {
		case models.StatusIntegrated:
			report.Integrated++
		case models.StatusBlocked:
			report.Blocked++
		case models.StatusFailed:
			report.Failed++
		}
	}
	if len(progress) > 0 {
		report.Overall = sum / float64(len(progress))
	}
	return report, nil
}

// inspect reads one agent's workspace. Read failures degrade to zero
// values rather than failing the whole snapshot.
func (m *Monitor) inspect(ctx context.Context, plan *models.DeploymentPlan, agent *models.AgentSpec) models.AgentProgress {
	p := models.AgentProgress{
		AgentID:       agent.ID,
		Role:          agent.Role,
		Status:        agent.Status,
		TotalCriteria: len(agent.ValidationCriteria),
	}

	if agent.Status == models.StatusIntegrated {
		p.Percent = 100
		p.TickedCriteria = p.TotalCriteria
		p.CleanTree = true
		return p
	}

	path := workspace.PathFor(m.root, plan, agent.ID)
	if _, err := os.Stat(path); err != nil {
		return p
	}
	p.HasWorkspace = true

	if bundle, err := workspace.ReadBundle(path); err == nil {
		p.TickedCriteria = bundle.TickedCount()
		if n := len(bundle.Checklist); n > 0 {
			p.TotalCriteria = n
		}
	} else {
		m.log.Warn().Err(err).Str("agent_id", agent.ID).Msg("bundle unreadable")
	}

	repo := m.factory(path)
	if commits, err := repo.CommitCount(ctx, plan.BaseBranch); err == nil {
		p.Commits = commits
	} else {
		m.log.Warn().Err(err).Str("agent_id", agent.ID).Msg("commit count failed")
	}
	if dirty, err := repo.HasChanges(ctx); err == nil {
		p.CleanTree = !dirty
	}

	if p.TotalCriteria > 0 {
		p.Percent = 100 * float64(p.TickedCriteria) / float64(p.TotalCriteria)
	} else {
		p.Percent = 100
	}

	// Display-only refinement: a spawned agent with visible activity is
	// in progress. The spec's stored status is untouched.
	if p.Status == models.StatusSpawned && (p.Commits > 0 || p.TickedCriteria > 0) {
		p.Status = models.StatusInProgress
	}
	return p
}

// Watch re-snapshots on a timer until ctx is cancelled, sending each
// report on the returned channel. The channel closes on cancellation;
// in-flight polls stop promptly because they share ctx.
func (m *Monitor) Watch(ctx context.Context, plan *models.DeploymentPlan, interval time.Duration) <-chan *models.StatusReport {
	reports := make(chan *models.StatusReport)

	go func() {
		defer close(reports)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		emit := func() bool {
			report, err := m.Snapshot(ctx, plan)
			if err != nil {
				if ctx.Err() != nil {
					return false
				}
				m.log.Warn().Err(err).Msg("snapshot failed")
				return true
			}
			select {
			case reports <- report:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !emit() {
					return
				}
			}
		}
	}()

	return reports
}
