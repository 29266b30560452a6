package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fieldmarshal/brigade/internal/events"
	"github.com/fieldmarshal/brigade/internal/validate"
	"github.com/fieldmarshal/brigade/internal/workspace"
	"github.com/fieldmarshal/brigade/pkg/models"
)

var (
	validateAll     bool
	validatePlanID  string
	validateTestCmd string
	validateTimeout time.Duration
	validateJSON    bool
)

var validateCmd = &cobra.Command{
	Use:   "validate [agent-id...]",
	Short: "Gate finished agents before integration",
	Long: `Run the validation gates for one or more agents: every checklist
criterion ticked, no uncommitted changes, and the test command green
inside the workspace. An incomplete checklist short-circuits so the
test suite never runs on unfinished work.

Agents that pass move to validated and become eligible for
integration. Agents that fail move to failed and keep their workspace;
the reason lands in .brigade/FAILED inside it. Fix the workspace and
re-run validate to recover.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateAll, "all", false, "Validate every spawned agent in the plan")
	validateCmd.Flags().StringVar(&validatePlanID, "plan", "", "Plan ID (default: latest plan)")
	validateCmd.Flags().StringVar(&validateTestCmd, "test-cmd", "", "Test command run inside each workspace (default from config)")
	validateCmd.Flags().DurationVar(&validateTimeout, "timeout", 0, "Test command timeout (default from config)")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Print results as JSON")
}

func runValidate(cmd *cobra.Command, args []string) error {
	if !validateAll && len(args) == 0 {
		return fmt.Errorf("name at least one agent or pass --all")
	}
	if validateAll && len(args) > 0 {
		return fmt.Errorf("--all and explicit agent IDs are mutually exclusive")
	}

	ctx, cancel := signalContext()
	defer cancel()

	repoPath, err := repoRoot()
	if err != nil {
		return err
	}
	db, err := openState(repoPath)
	if err != nil {
		return err
	}
	defer db.Close()

	plan, err := loadPlanFlag(db, validatePlanID)
	if err != nil {
		return err
	}

	testCommand := cfg.Validation.TestCommand
	if cmd.Flags().Changed("test-cmd") {
		testCommand = validateTestCmd
	}
	timeout := cfg.Validation.TestTimeout
	if cmd.Flags().Changed("timeout") {
		timeout = validateTimeout
	}

	root := resolveWorkspaceRoot(repoPath, cfg.WorkspaceRoot)
	var opts []validate.Option
	if testCommand != "" {
		opts = append(opts, validate.WithTestRunner(validate.NewCommandTestRunner(testCommand, timeout)))
	}
	v := validate.New(root, gitFactory, opts...)

	pipe, err := newPipeline(repoPath)
	if err != nil {
		return err
	}
	defer pipe.Close()

	var results []*models.ValidationResult
	if validateAll {
		results, err = v.ValidateAll(ctx, plan)
	} else {
		results, err = validateNamed(ctx, v, plan, root, args)
	}

	for _, r := range results {
		ev := events.Event{
			PlanID:    plan.ID,
			AgentID:   r.AgentID,
			Duration:  r.Duration,
			Timestamp: time.Now(),
		}
		if r.Passed {
			ev.Type = events.TypeAgentValidated
		} else {
			ev.Type = events.TypeAgentFailed
			ev.Message = failureReason(r)
		}
		pipe.Emitter.Emit(ev)
	}
	if saveErr := db.SaveStatuses(plan); saveErr != nil && err == nil {
		err = saveErr
	}
	if err != nil {
		return err
	}

	if validateJSON {
		return printJSON(results)
	}

	failed := 0
	for _, r := range results {
		if r.Passed {
			printStatus("✓", fmt.Sprintf("%s validated in %s", r.AgentID, formatDuration(r.Duration)), color.FgGreen)
			continue
		}
		failed++
		printStatus("✗", fmt.Sprintf("%s failed: %s", r.AgentID, failureReason(r)), color.FgRed)
		marker := filepath.Join(workspace.PathFor(root, plan, r.AgentID), ".brigade", "FAILED")
		fmt.Printf("    details: %s\n", marker)
	}
	if len(results) == 0 {
		fmt.Println("Nothing to validate; no agents have workspaces.")
		return nil
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d agents failed validation", failed, len(results))
	}
	fmt.Printf("\nAll %d agents validated. Next: brigade integrate\n", len(results))
	return nil
}

// validateNamed validates the explicitly named agents in the order
// given.
func validateNamed(ctx context.Context, v *validate.Validator, plan *models.DeploymentPlan, root string, ids []string) ([]*models.ValidationResult, error) {
	var results []*models.ValidationResult
	for _, id := range ids {
		spec := plan.Agent(id)
		if spec == nil {
			return results, fmt.Errorf("unknown agent %q in plan %s", id, plan.ID)
		}
		ws := &models.Workspace{
			AgentID:    id,
			Path:       workspace.PathFor(root, plan, id),
			BranchName: workspace.BranchName(plan, id),
		}
		result, err := v.Validate(ctx, ws, spec)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// failureReason condenses a failed result into one line.
func failureReason(r *models.ValidationResult) string {
	switch {
	case len(r.UnmetCriteria) > 0:
		return fmt.Sprintf("%d unmet criteria", len(r.UnmetCriteria))
	case !r.TreeClean:
		return "uncommitted changes in working tree"
	case r.TestsRan && !r.TestsPassed:
		return "tests failed"
	default:
		return "validation failed"
	}
}
