package merge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldmarshal/brigade/internal/git"
	"github.com/fieldmarshal/brigade/internal/logging"
	"github.com/fieldmarshal/brigade/pkg/models"
)

// Result is the outcome of one merge attempt.
type Result struct {
	// Merged is true when the branch is now part of the target.
	Merged bool
	// MergeCommit is the commit created on the target branch.
	MergeCommit string
	// ConflictFiles lists the paths that conflicted during the attempt,
	// whether or not they were subsequently resolved.
	ConflictFiles []string
	// Records holds the conflict records of an unresolved attempt so
	// callers can report or re-present them.
	Records []models.ConflictRecord
	// Reason explains a non-merged outcome.
	Reason string
}

// Handler merges one workspace branch into the target branch and
// drives conflict resolution when the merge does not apply cleanly.
// The merge is aborted, never left half-done, whenever resolution does
// not produce a complete tree.
type Handler struct {
	targetBranch   string
	repoPath       string
	git            git.Runner
	strategy       models.ResolutionStrategy
	manual         ManualResolver
	resolveTimeout time.Duration
	log            zerolog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithStrategy selects the resolution strategy for conflicted merges.
// The default is manual.
func WithStrategy(s models.ResolutionStrategy) Option {
	return func(h *Handler) { h.strategy = s }
}

// WithManualResolver supplies the external resolver consulted under
// the manual strategy. The default NoOpResolver declines everything.
func WithManualResolver(r ManualResolver) Option {
	return func(h *Handler) { h.manual = r }
}

// WithResolveTimeout bounds how long a manual resolver may take per
// merge attempt. Zero means the caller's context alone bounds it.
func WithResolveTimeout(d time.Duration) Option {
	return func(h *Handler) { h.resolveTimeout = d }
}

// WithLogger overrides the default component logger.
func WithLogger(log zerolog.Logger) Option {
	return func(h *Handler) { h.log = log }
}

// NewHandler creates a Handler operating on the repository at repoPath.
func NewHandler(targetBranch, repoPath string, opts ...Option) *Handler {
	return NewHandlerWithRunner(targetBranch, repoPath, git.NewRunner(repoPath), opts...)
}

// NewHandlerWithRunner creates a Handler with an injected git runner
// for testing.
func NewHandlerWithRunner(targetBranch, repoPath string, runner git.Runner, opts ...Option) *Handler {
	h := &Handler{
		targetBranch: targetBranch,
		repoPath:     repoPath,
		git:          runner,
		strategy:     models.ResolveManual,
		manual:       NoOpResolver{},
		log:          logging.Component("merge"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// TargetBranch returns the branch merges land on.
func (h *Handler) TargetBranch() string {
	return h.targetBranch
}

// Merge attempts to merge the agent's branch into the target branch.
// A clean merge commits immediately. A conflicted merge collects one
// record per unmerged file and runs the configured resolution; if that
// yields a complete marker-free tree the merge is committed, otherwise
// it is aborted and the records are returned for reporting. Errors are
// reserved for the repository itself misbehaving.
func (h *Handler) Merge(ctx context.Context, agentID, branch string) (*Result, error) {
	if err := h.git.CheckoutBranch(ctx, h.targetBranch); err != nil {
		return nil, fmt.Errorf("checkout %s: %w", h.targetBranch, err)
	}

	message := fmt.Sprintf("Integrate agent %s (%s)", agentID, branch)
	mergeErr := h.git.MergeNoFF(ctx, branch, message)
	if mergeErr == nil {
		head, err := h.git.Head(ctx)
		if err != nil {
			return nil, fmt.Errorf("read merge commit: %w", err)
		}
		h.log.Debug().Str("agent", agentID).Str("commit", head).Msg("clean merge")
		return &Result{Merged: true, MergeCommit: head}, nil
	}

	records, err := NewInspector(h.repoPath, h.git).Collect(ctx, agentID, h.targetBranch, branch)
	if err != nil {
		_ = h.git.MergeAbort(ctx)
		return nil, fmt.Errorf("collect conflicts: %w", err)
	}
	if len(records) == 0 {
		_ = h.git.MergeAbort(ctx)
		return nil, fmt.Errorf("merge %s into %s: %w", branch, h.targetBranch, mergeErr)
	}

	files := conflictPaths(records)
	h.log.Warn().Str("agent", agentID).Strs("files", files).Msg("merge conflicted")

	resolved, reason, err := h.resolveRecords(ctx, records)
	if err != nil {
		_ = h.git.MergeAbort(ctx)
		return nil, err
	}
	if reason != "" {
		if err := h.git.MergeAbort(ctx); err != nil {
			return nil, fmt.Errorf("abort conflicted merge: %w", err)
		}
		return &Result{ConflictFiles: files, Records: records, Reason: reason}, nil
	}

	if err := h.applyResolved(ctx, resolved); err != nil {
		_ = h.git.MergeAbort(ctx)
		return nil, err
	}
	if err := h.git.CommitMerge(ctx, message); err != nil {
		_ = h.git.MergeAbort(ctx)
		return nil, fmt.Errorf("commit resolved merge: %w", err)
	}
	head, err := h.git.Head(ctx)
	if err != nil {
		return nil, fmt.Errorf("read merge commit: %w", err)
	}
	h.log.Info().Str("agent", agentID).Str("strategy", string(h.strategy)).Int("files", len(files)).Msg("conflicts resolved")
	return &Result{Merged: true, MergeCommit: head, ConflictFiles: files}, nil
}

// resolveRecords dispatches to the configured strategy. A returned
// reason means the attempt stays unresolved; an error means the
// configuration itself is broken.
func (h *Handler) resolveRecords(ctx context.Context, records []models.ConflictRecord) ([]models.ConflictRecord, string, error) {
	if h.strategy != models.ResolveManual {
		resolved, err := Resolve(records, h.strategy)
		if err != nil {
			return nil, "", err
		}
		return resolved, "", nil
	}

	rctx := ctx
	if h.resolveTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, h.resolveTimeout)
		defer cancel()
	}
	resolutions, err := h.manual.ResolveConflicts(rctx, records)
	if err != nil {
		return nil, fmt.Sprintf("manual resolution failed: %v", err), nil
	}
	if len(resolutions) == 0 {
		return nil, "manual resolution declined", nil
	}
	resolved, err := ApplyResolutions(records, resolutions)
	if err != nil {
		return nil, err.Error(), nil
	}
	return resolved, "", nil
}

// applyResolved writes every resolved file into the working tree and
// stages it, clearing the conflicted index entries.
func (h *Handler) applyResolved(ctx context.Context, records []models.ConflictRecord) error {
	for _, rec := range records {
		if rec.ResolvedContent == nil {
			return fmt.Errorf("no resolved content for %s", rec.FilePath)
		}
		full := filepath.Join(h.repoPath, rec.FilePath)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			return fmt.Errorf("create parent of %s: %w", rec.FilePath, err)
		}
		if err := os.WriteFile(full, []byte(*rec.ResolvedContent), 0644); err != nil {
			return fmt.Errorf("write %s: %w", rec.FilePath, err)
		}
		if err := h.git.Add(ctx, rec.FilePath); err != nil {
			return fmt.Errorf("stage %s: %w", rec.FilePath, err)
		}
	}
	return nil
}

func conflictPaths(records []models.ConflictRecord) []string {
	paths := make([]string, len(records))
	for i, rec := range records {
		paths[i] = rec.FilePath
	}
	return paths
}
