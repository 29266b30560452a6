package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/fieldmarshal/brigade/internal/events"
	"github.com/fieldmarshal/brigade/internal/git"
	"github.com/fieldmarshal/brigade/internal/journal"
	"github.com/fieldmarshal/brigade/internal/metrics"
	"github.com/fieldmarshal/brigade/internal/state"
	"github.com/fieldmarshal/brigade/pkg/models"
)

// signalContext returns a context cancelled on SIGINT or SIGTERM so
// long-running phases shut down cleanly.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Println("\nReceived interrupt, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// repoRoot returns the working directory brigade operates in. Commands
// run from the repository root; git itself rejects anything that is not
// a repository soon after.
func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("determining working directory: %w", err)
	}
	return dir, nil
}

// resolveWorkspaceRoot anchors a relative workspace root at the
// repository so `.brigade/workspaces` lands inside the project rather
// than wherever the process happens to run.
func resolveWorkspaceRoot(repoPath, root string) string {
	if root == "" || filepath.IsAbs(root) {
		return root
	}
	return filepath.Join(repoPath, root)
}

// openState opens the project plan store, creating it on first use.
func openState(repoPath string) (*state.DB, error) {
	return state.OpenProject(repoPath)
}

// loadPlanArg loads the plan named by args[0], or the latest plan when
// no argument was given.
func loadPlanArg(db *state.DB, args []string) (*models.DeploymentPlan, error) {
	if len(args) > 0 {
		return loadPlanFlag(db, args[0])
	}
	return loadPlanFlag(db, "")
}

// loadPlanFlag loads the plan named by a --plan flag, or the latest
// plan when the flag is empty. A missing plan is an error here so
// commands never see a nil plan.
func loadPlanFlag(db *state.DB, planID string) (*models.DeploymentPlan, error) {
	if planID != "" {
		plan, err := db.LoadPlan(planID)
		if err != nil {
			return nil, err
		}
		if plan == nil {
			return nil, fmt.Errorf("no plan %q; run 'brigade plan' or check the ID", planID)
		}
		return plan, nil
	}
	plan, err := db.LatestPlan()
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("no plans yet; run 'brigade plan' first")
	}
	return plan, nil
}

// pipeline wires an emitter to the event consumers for one command
// run: the project journal and the Prometheus counters. Close flushes
// and waits for both.
type pipeline struct {
	Emitter *events.Emitter
	journal *journal.Journal
	fanout  *events.Fanout
	wg      sync.WaitGroup
}

// newPipeline opens the journal and starts the listener goroutines.
// Every command invocation is one run in the journal.
func newPipeline(repoPath string) (*pipeline, error) {
	j, err := journal.OpenProject(repoPath)
	if err != nil {
		return nil, err
	}
	p := &pipeline{
		Emitter: events.NewEmitter(0),
		journal: j,
		fanout:  events.NewFanout(),
	}
	runID := uuid.NewString()
	journalSub := p.fanout.Subscribe(0)
	metricsSub := p.fanout.Subscribe(0)
	go p.fanout.Run(p.Emitter.Events())

	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		if err := p.journal.Listen(runID, journalSub); err != nil {
			fmt.Fprintf(os.Stderr, "warning: journal write failed: %v\n", err)
		}
	}()
	go func() {
		defer p.wg.Done()
		metrics.MustNew(nil).Listen(metricsSub)
	}()
	return p, nil
}

// Close drains pending events and closes the journal.
func (p *pipeline) Close() error {
	p.Emitter.Close()
	p.wg.Wait()
	return p.journal.Close()
}

func gitFactory(dir string) git.Runner {
	return git.NewRunner(dir)
}

// formatDuration renders a duration the way humans read elapsed time.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
