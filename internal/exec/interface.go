// Package exec runs the external commands brigade shells out to, such
// as the configured test runner. Every invocation is bounded by the
// caller's context; RunTimed adds an explicit per-call deadline and
// reports expiry separately so callers can surface "timed out" instead
// of a generic failure.
package exec

import (
	"context"
	"errors"
	"time"
)

// CommandRunner runs external commands inside a working directory.
type CommandRunner interface {
	// Run executes a command and returns combined stdout/stderr output.
	// The working directory is set to workDir if non-empty.
	Run(ctx context.Context, workDir string, name string, args ...string) (output []byte, err error)

	// RunShell executes a command line through "sh -c".
	RunShell(ctx context.Context, workDir string, command string) (output []byte, err error)
}

// RunTimed runs a shell command line under an explicit timeout and
// reports whether the deadline killed it. A zero timeout means the
// parent context alone bounds the call.
func RunTimed(ctx context.Context, r CommandRunner, workDir, command string, timeout time.Duration) (output []byte, timedOut bool, err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	output, err = r.RunShell(ctx, workDir, command)
	timedOut = errors.Is(ctx.Err(), context.DeadlineExceeded)
	return output, timedOut, err
}
