// Package validate gates a workspace before integration. Three checks
// run in order: every checklist criterion ticked, working tree clean,
// external test suite green. An incomplete checklist short-circuits so
// the expensive test run never starts.
package validate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldmarshal/brigade/internal/git"
	"github.com/fieldmarshal/brigade/internal/logging"
	"github.com/fieldmarshal/brigade/internal/workspace"
	"github.com/fieldmarshal/brigade/pkg/models"
)

// TestRunner runs the project's test suite inside one workspace.
type TestRunner interface {
	// RunTests executes the suite rooted at workspacePath. A false
	// passed with a nil error means the suite ran and failed; err is
	// reserved for the runner itself breaking.
	RunTests(ctx context.Context, workspacePath string) (passed bool, report string, err error)
}

// TestRunnerFunc adapts a function to the TestRunner interface.
type TestRunnerFunc func(ctx context.Context, workspacePath string) (bool, string, error)

// RunTests calls f.
func (f TestRunnerFunc) RunTests(ctx context.Context, workspacePath string) (bool, string, error) {
	return f(ctx, workspacePath)
}

// maxReportBytes caps stored test output. Failures print at the end of
// a run, so the tail is kept.
const maxReportBytes = 64 << 10

// Validator checks workspaces against their agents' validation
// criteria and records the outcome on the spec.
type Validator struct {
	root    string
	factory git.Factory
	tests   TestRunner
	log     zerolog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithTestRunner supplies the external test runner for the final gate.
// Without one the gate is skipped and the result notes that tests did
// not run.
func WithTestRunner(r TestRunner) Option {
	return func(v *Validator) { v.tests = r }
}

// WithLogger overrides the default component logger.
func WithLogger(log zerolog.Logger) Option {
	return func(v *Validator) { v.log = log }
}

// New creates a Validator. root is the workspace root used to locate
// checkouts when validating a whole plan; factory opens a git runner
// inside each workspace.
func New(root string, factory git.Factory, opts ...Option) *Validator {
	v := &Validator{
		root:    root,
		factory: factory,
		log:     logging.Component("validate"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs the gates for one agent. On a full pass the spec moves
// to validated; on any failure it moves to failed and a marker file is
// dropped into the workspace, which is otherwise left untouched for
// inspection. Re-running on an unchanged workspace returns an
// identical result.
func (v *Validator) Validate(ctx context.Context, ws *models.Workspace, spec *models.AgentSpec) (*models.ValidationResult, error) {
	if spec.Status.Terminal() {
		return nil, fmt.Errorf("agent %q is already integrated", spec.ID)
	}

	start := time.Now()
	result := &models.ValidationResult{AgentID: spec.ID}

	bundle, err := workspace.ReadBundle(ws.Path)
	if err != nil {
		return nil, fmt.Errorf("read bundle for %s: %w", spec.ID, err)
	}

	if unmet := bundle.UnmetCriteria(); len(unmet) > 0 {
		result.UnmetCriteria = unmet
		result.Duration = time.Since(start)
		v.fail(ws, spec, fmt.Sprintf("%d unmet criteria: %s", len(unmet), strings.Join(unmet, "; ")))
		return result, nil
	}

	dirty, err := v.factory(ws.Path).HasChanges(ctx)
	if err != nil {
		return nil, fmt.Errorf("working tree status for %s: %w", spec.ID, err)
	}
	result.TreeClean = !dirty
	if dirty {
		result.Duration = time.Since(start)
		v.fail(ws, spec, "uncommitted changes in working tree")
		return result, nil
	}

	if v.tests == nil {
		result.TestsPassed = true
		result.TestReport = "no test runner configured; test gate skipped"
		result.Passed = true
		result.Duration = time.Since(start)
		spec.Status = models.StatusValidated
		v.log.Info().Str("agent", spec.ID).Msg("validated without test gate")
		return result, nil
	}

	result.TestsRan = true
	passed, report, err := v.tests.RunTests(ctx, ws.Path)
	result.TestReport = truncateReport(report)
	result.Duration = time.Since(start)
	if err != nil {
		v.fail(ws, spec, fmt.Sprintf("test runner error: %v", err))
		return result, nil
	}
	result.TestsPassed = passed
	if !passed {
		v.fail(ws, spec, "test suite failed")
		return result, nil
	}

	result.Passed = true
	spec.Status = models.StatusValidated
	v.log.Info().Str("agent", spec.ID).Dur("took", result.Duration).Msg("validated")
	return result, nil
}

// ValidateAll validates every agent in the plan that has a workspace,
// one at a time so test output stays readable. Pending and integrated
// agents are skipped. Results are ordered as the plan orders its
// agents; a per-agent validation failure is recorded in its result,
// not returned as an error.
func (v *Validator) ValidateAll(ctx context.Context, plan *models.DeploymentPlan) ([]*models.ValidationResult, error) {
	var results []*models.ValidationResult
	for _, spec := range plan.Agents {
		if spec.Status == models.StatusPending || spec.Status.Terminal() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
		ws := &models.Workspace{
			AgentID:    spec.ID,
			Path:       workspace.PathFor(v.root, plan, spec.ID),
			BranchName: workspace.BranchName(plan, spec.ID),
		}
		result, err := v.Validate(ctx, ws, spec)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (v *Validator) fail(ws *models.Workspace, spec *models.AgentSpec, reason string) {
	spec.Status = models.StatusFailed
	if err := workspace.WriteFailureMarker(ws.Path, reason); err != nil {
		v.log.Warn().Err(err).Str("agent", spec.ID).Msg("could not write failure marker")
	}
	v.log.Warn().Str("agent", spec.ID).Str("reason", reason).Msg("validation failed")
}

func truncateReport(report string) string {
	if len(report) <= maxReportBytes {
		return report
	}
	return "(report truncated)\n" + report[len(report)-maxReportBytes:]
}
