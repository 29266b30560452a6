package validate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fieldmarshal/brigade/internal/exec"
)

// DefaultTestTimeout bounds a test run when the caller does not
// configure one.
const DefaultTestTimeout = 10 * time.Minute

// CommandTestRunner runs a configured shell command as the test gate.
// A non-zero exit or a timeout is a failed suite, not an error, so a
// broken test command never aborts the batch.
type CommandTestRunner struct {
	command string
	timeout time.Duration
	runner  exec.CommandRunner
}

// NewCommandTestRunner builds a runner for the given command line. A
// zero timeout falls back to DefaultTestTimeout.
func NewCommandTestRunner(command string, timeout time.Duration) *CommandTestRunner {
	return NewCommandTestRunnerWith(command, timeout, exec.NewRunner())
}

// NewCommandTestRunnerWith injects the command runner for testing.
func NewCommandTestRunnerWith(command string, timeout time.Duration, runner exec.CommandRunner) *CommandTestRunner {
	if timeout <= 0 {
		timeout = DefaultTestTimeout
	}
	return &CommandTestRunner{command: command, timeout: timeout, runner: runner}
}

// RunTests executes the command inside the workspace and reports the
// outcome. Timeout expiry is folded into the report so the caller sees
// why the suite failed.
func (r *CommandTestRunner) RunTests(ctx context.Context, workspacePath string) (bool, string, error) {
	out, timedOut, err := exec.RunTimed(ctx, r.runner, workspacePath, r.command, r.timeout)
	report := string(out)
	switch {
	case timedOut:
		return false, appendLine(report, fmt.Sprintf("test command timed out after %s", r.timeout)), nil
	case err != nil:
		return false, appendLine(report, err.Error()), nil
	}
	return true, report, nil
}

func appendLine(report, line string) string {
	if report == "" {
		return line
	}
	return strings.TrimRight(report, "\n") + "\n" + line
}

var _ TestRunner = (*CommandTestRunner)(nil)
