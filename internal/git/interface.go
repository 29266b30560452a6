// Package git provides an interface for the git operations brigade needs.
package git

import "context"

// BranchOperations defines the interface for git branch operations.
type BranchOperations interface {
	// CurrentBranch returns the name of the current branch.
	CurrentBranch(ctx context.Context) (string, error)
	// BranchExists returns true if the branch exists.
	BranchExists(ctx context.Context, name string) (bool, error)
	// DeleteBranch deletes the specified branch (force delete).
	DeleteBranch(ctx context.Context, name string) error
	// CheckoutBranch switches to the specified branch.
	CheckoutBranch(ctx context.Context, name string) error
}

// StatusOperations defines the interface for read-only state queries.
type StatusOperations interface {
	// Status returns the output of git status --porcelain.
	Status(ctx context.Context) (string, error)
	// HasChanges returns true if there are uncommitted changes.
	HasChanges(ctx context.Context) (bool, error)
	// ConflictedFiles returns the paths with unmerged changes.
	ConflictedFiles(ctx context.Context) ([]string, error)
	// CommitCount returns the number of commits on HEAD that are not
	// reachable from the given ref.
	CommitCount(ctx context.Context, sinceRef string) (int, error)
}

// CommitOperations defines the interface for staging and committing.
type CommitOperations interface {
	// Add stages the specified files for commit.
	Add(ctx context.Context, paths ...string) error
	// Commit creates a new commit with the given message.
	Commit(ctx context.Context, message string) error
	// Head returns the full hash of the current HEAD commit.
	Head(ctx context.Context) (string, error)
}

// MergeOperations defines the interface for merging branches.
type MergeOperations interface {
	// MergeNoFF merges the branch into the current branch with --no-ff
	// and the given commit message.
	MergeNoFF(ctx context.Context, branch, message string) error
	// MergeAbort aborts an in-progress merge.
	MergeAbort(ctx context.Context) error
	// CommitMerge concludes a conflicted merge once the index is clean.
	CommitMerge(ctx context.Context, message string) error
}

// WorktreeOperations defines the interface for git worktree operations.
type WorktreeOperations interface {
	// WorktreeAdd creates a worktree at path on a new branch forked from
	// startPoint (git worktree add -b branch path startPoint).
	WorktreeAdd(ctx context.Context, path, branch, startPoint string) error
	// WorktreeRemove removes the worktree at the given path, with force
	// so dirty trees do not wedge cleanup.
	WorktreeRemove(ctx context.Context, path string) error
	// WorktreeListPorcelain returns the raw porcelain listing.
	WorktreeListPorcelain(ctx context.Context) (string, error)
	// WorktreePrune removes stale worktree bookkeeping entries.
	WorktreePrune(ctx context.Context) error
}

// FileOperations defines the interface for reading file content from refs.
type FileOperations interface {
	// ShowFile returns the contents of a file at a specific ref.
	ShowFile(ctx context.Context, ref, path string) (string, error)
}

// Runner defines the complete interface for git operations. Consumers
// should prefer the focused interfaces above.
type Runner interface {
	BranchOperations
	StatusOperations
	CommitOperations
	MergeOperations
	WorktreeOperations
	FileOperations
	// Run executes an arbitrary git command with the given arguments and
	// returns its trimmed output.
	Run(ctx context.Context, args ...string) (string, error)
}

// Factory builds a Runner bound to the given working directory. The
// monitor and validator open runners inside each workspace; injecting the
// factory keeps them testable without a git binary.
type Factory func(dir string) Runner
