// Package workspace manages the isolated git checkouts agents work in.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/fieldmarshal/brigade/internal/git"
	"github.com/fieldmarshal/brigade/internal/logging"
	"github.com/fieldmarshal/brigade/pkg/models"
)

// branchPrefix namespaces every branch brigade creates.
const branchPrefix = "brigade/"

// DefaultParallelism bounds concurrent spawns in SpawnAll.
const DefaultParallelism = 4

// Options configures a Manager.
type Options struct {
	// Root is the directory workspaces are created under. Defaults to
	// ~/.cache/brigade/workspaces.
	Root string
	// Force destroys a colliding prior workspace instead of failing.
	Force bool
	// MinFreeBytes is the disk-space floor checked before each spawn.
	// Defaults to DefaultMinFreeBytes.
	MinFreeBytes uint64
	// Parallelism bounds concurrent spawns in SpawnAll. Defaults to
	// DefaultParallelism.
	Parallelism int
}

// Manager spawns and destroys agent workspaces. Every workspace is an
// isolated worktree on its own branch, so concurrent operations touch
// disjoint paths; the repository's ref database tolerates concurrent
// branch creation. The integrator owns its own serialization for merges.
type Manager struct {
	root     string
	repoPath string
	force    bool
	minFree  uint64
	limit    int
	git      git.Runner
	log      zerolog.Logger
}

// NewManager creates a workspace manager for the repository at repoPath.
func NewManager(repoPath string, opts Options) (*Manager, error) {
	return NewManagerWithRunner(repoPath, opts, git.NewRunner(repoPath))
}

// NewManagerWithRunner creates a workspace manager with an injected git
// runner, for tests.
func NewManagerWithRunner(repoPath string, opts Options, runner git.Runner) (*Manager, error) {
	root := opts.Root
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		root = filepath.Join(home, ".cache", "brigade", "workspaces")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}

	minFree := opts.MinFreeBytes
	if minFree == 0 {
		minFree = DefaultMinFreeBytes
	}
	limit := opts.Parallelism
	if limit <= 0 {
		limit = DefaultParallelism
	}

	return &Manager{
		root:     root,
		repoPath: repoPath,
		force:    opts.Force,
		minFree:  minFree,
		limit:    limit,
		git:      runner,
		log:      logging.Component("workspace"),
	}, nil
}

// Root returns the directory workspaces are created under.
func (m *Manager) Root() string {
	return m.root
}

// RepoPath returns the path to the main repository checkout.
func (m *Manager) RepoPath() string {
	return m.repoPath
}

// BranchName returns the deterministic branch for an agent in a plan.
func BranchName(plan *models.DeploymentPlan, agentID string) string {
	return branchPrefix + plan.Slug() + "/" + agentID
}

// PathFor returns the deterministic checkout path for an agent under the
// given workspace root. The monitor and validator derive workspace
// locations with this instead of tracking manager state.
func PathFor(root string, plan *models.DeploymentPlan, agentID string) string {
	return filepath.Join(root, plan.Slug()+"-"+agentID)
}

func (m *Manager) workspacePath(plan *models.DeploymentPlan, agentID string) string {
	return PathFor(m.root, plan, agentID)
}

// Spawn creates the isolated workspace for one agent: a new branch off
// the plan's base branch checked out as a worktree, with the agent's
// context bundle written inside. On success the agent moves to spawned.
// A colliding path or branch fails with WorkspaceExistsError unless the
// manager was created with Force, in which case the prior workspace is
// destroyed first.
func (m *Manager) Spawn(ctx context.Context, plan *models.DeploymentPlan, agentID string) (*models.Workspace, error) {
	agent := plan.Agent(agentID)
	if agent == nil {
		return nil, fmt.Errorf("agent %q not in plan", agentID)
	}
	if agent.Status != models.StatusPending && !m.force {
		return nil, fmt.Errorf("agent %s is %s, not pending", agentID, agent.Status)
	}

	if err := checkDiskSpace(m.root, m.minFree); err != nil {
		return nil, err
	}

	baseExists, err := m.git.BranchExists(ctx, plan.BaseBranch)
	if err != nil {
		return nil, fmt.Errorf("check base branch: %w", err)
	}
	if !baseExists {
		return nil, &BaseBranchNotFoundError{Branch: plan.BaseBranch}
	}

	branch := BranchName(plan, agentID)
	path := m.workspacePath(plan, agentID)

	pathTaken := false
	if _, statErr := os.Stat(path); statErr == nil {
		pathTaken = true
	}
	branchTaken, err := m.git.BranchExists(ctx, branch)
	if err != nil {
		return nil, fmt.Errorf("check agent branch: %w", err)
	}
	if pathTaken || branchTaken {
		if !m.force {
			return nil, &WorkspaceExistsError{AgentID: agentID, Path: path, Branch: branch}
		}
		prior := &models.Workspace{AgentID: agentID, Path: path, BranchName: branch}
		if err := m.Destroy(ctx, prior); err != nil {
			return nil, fmt.Errorf("destroy prior workspace: %w", err)
		}
	}

	if err := m.git.WorktreeAdd(ctx, path, branch, plan.BaseBranch); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	if err := WriteBundle(path, agent); err != nil {
		// Unwind the half-made workspace so a failed spawn leaves nothing.
		_ = m.git.WorktreeRemove(ctx, path)
		_ = m.git.DeleteBranch(ctx, branch)
		_ = m.git.WorktreePrune(ctx)
		return nil, err
	}

	agent.Status = models.StatusSpawned
	m.log.Debug().
		Str("agent_id", agentID).
		Str("path", path).
		Str("branch", branch).
		Msg("workspace spawned")

	return &models.Workspace{
		AgentID:    agentID,
		Path:       path,
		BranchName: branch,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// SpawnAll spawns every pending agent in the plan. With parallel set,
// spawns run concurrently bounded by the manager's parallelism limit;
// each spawn touches its own path and branch. The batch is atomic: if
// any spawn fails, every workspace created by this call is destroyed and
// its agent reverted to pending, so a partial failure never leaves a
// half-initialized plan.
func (m *Manager) SpawnAll(ctx context.Context, plan *models.DeploymentPlan, parallel bool) ([]*models.Workspace, error) {
	pending := plan.ByStatus(models.StatusPending)
	if len(pending) == 0 {
		return nil, nil
	}

	var (
		mu      sync.Mutex
		created []*models.Workspace
	)

	g, gctx := errgroup.WithContext(ctx)
	if parallel {
		g.SetLimit(m.limit)
	} else {
		g.SetLimit(1)
	}

	for _, agent := range pending {
		g.Go(func() error {
			ws, err := m.Spawn(gctx, plan, agent.ID)
			if err != nil {
				return fmt.Errorf("spawn %s: %w", agent.ID, err)
			}
			mu.Lock()
			created = append(created, ws)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		m.rollback(plan, created)
		return nil, err
	}

	m.log.Info().
		Str("plan_id", plan.ID).
		Int("workspaces", len(created)).
		Msg("all pending agents spawned")
	return created, nil
}

// rollback destroys every workspace created in a failed batch and
// reverts the matching agents to pending. Runs on a fresh context so
// cleanup still happens when the batch was cancelled.
func (m *Manager) rollback(plan *models.DeploymentPlan, created []*models.Workspace) {
	ctx := context.Background()
	for _, ws := range created {
		if err := m.Destroy(ctx, ws); err != nil {
			m.log.Warn().Err(err).Str("agent_id", ws.AgentID).Msg("rollback destroy failed")
		}
		if agent := plan.Agent(ws.AgentID); agent != nil {
			agent.Status = models.StatusPending
		}
	}
}

// Destroy removes the workspace checkout and deletes its branch.
// Destroying an already-absent workspace is not an error.
func (m *Manager) Destroy(ctx context.Context, ws *models.Workspace) error {
	if err := m.git.WorktreeRemove(ctx, ws.Path); err != nil {
		// git may have lost track of the worktree; fall back to removing
		// the directory when it still exists.
		if _, statErr := os.Stat(ws.Path); statErr == nil {
			if rmErr := os.RemoveAll(ws.Path); rmErr != nil {
				return fmt.Errorf("remove workspace %s: %w", ws.Path, rmErr)
			}
		}
	}

	if ws.BranchName != "" {
		exists, err := m.git.BranchExists(ctx, ws.BranchName)
		if err == nil && exists {
			if err := m.git.DeleteBranch(ctx, ws.BranchName); err != nil {
				return fmt.Errorf("delete branch %s: %w", ws.BranchName, err)
			}
		}
	}

	_ = m.git.WorktreePrune(ctx)
	m.log.Debug().Str("agent_id", ws.AgentID).Str("path", ws.Path).Msg("workspace destroyed")
	return nil
}

// List returns every workspace git knows about under the brigade branch
// namespace.
func (m *Manager) List(ctx context.Context) ([]*models.Workspace, error) {
	output, err := m.git.WorktreeListPorcelain(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	var ours []*models.Workspace
	for _, ws := range parseWorkspaceList(output) {
		if strings.HasPrefix(ws.BranchName, branchPrefix) {
			ours = append(ours, ws)
		}
	}
	return ours, nil
}

// Orphans returns brigade workspaces whose branch is not in the active
// set. Used at startup to find leftovers from crashed runs.
func (m *Manager) Orphans(ctx context.Context, activeBranches map[string]bool) ([]*models.Workspace, error) {
	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	var orphans []*models.Workspace
	for _, ws := range all {
		if ws.Path == m.repoPath {
			continue
		}
		if activeBranches[ws.BranchName] {
			continue
		}
		orphans = append(orphans, ws)
	}
	return orphans, nil
}

// CleanupOrphans destroys every orphaned workspace and returns how many
// were removed. The verbose callback, when set, fires per removed path.
func (m *Manager) CleanupOrphans(ctx context.Context, activeBranches map[string]bool, verbose func(path string)) (int, error) {
	orphans, err := m.Orphans(ctx, activeBranches)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, ws := range orphans {
		if err := m.Destroy(ctx, ws); err != nil {
			m.log.Warn().Err(err).Str("path", ws.Path).Msg("orphan cleanup failed")
			continue
		}
		if verbose != nil {
			verbose(ws.Path)
		}
		removed++
	}
	return removed, nil
}

// parseWorkspaceList parses 'git worktree list --porcelain' output into
// workspaces. The agent ID is recovered from the branch name when it
// follows the brigade/<plan-slug>/<agent-id> layout.
func parseWorkspaceList(output string) []*models.Workspace {
	var workspaces []*models.Workspace
	var current *models.Workspace

	flush := func() {
		if current != nil {
			workspaces = append(workspaces, current)
			current = nil
		}
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			flush()
			continue
		}
		switch {
		case strings.HasPrefix(line, "worktree "):
			flush()
			current = &models.Workspace{Path: strings.TrimPrefix(line, "worktree ")}
		case strings.HasPrefix(line, "branch ") && current != nil:
			ref := strings.TrimPrefix(line, "branch ")
			current.BranchName = strings.TrimPrefix(ref, "refs/heads/")
			if rest, ok := strings.CutPrefix(current.BranchName, branchPrefix); ok {
				if _, agentID, found := strings.Cut(rest, "/"); found {
					current.AgentID = agentID
				}
			}
		}
	}
	flush()
	return workspaces
}
