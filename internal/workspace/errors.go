package workspace

import "fmt"

// WorkspaceExistsError reports a spawn collision with an existing
// workspace path or branch.
type WorkspaceExistsError struct {
	AgentID string
	Path    string
	Branch  string
}

func (e *WorkspaceExistsError) Error() string {
	return fmt.Sprintf("workspace for agent %q already exists at %s (branch %s)", e.AgentID, e.Path, e.Branch)
}

// BaseBranchNotFoundError reports a plan whose base branch is missing
// from the repository.
type BaseBranchNotFoundError struct {
	Branch string
}

func (e *BaseBranchNotFoundError) Error() string {
	return fmt.Sprintf("base branch %q not found", e.Branch)
}

// InsufficientDiskSpaceError reports that the workspace root's filesystem
// is too full to spawn safely. Surfaced to the caller, never retried.
type InsufficientDiskSpaceError struct {
	Path      string
	Available uint64
	Required  uint64
}

func (e *InsufficientDiskSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space at %s: %d bytes available, %d required", e.Path, e.Available, e.Required)
}
