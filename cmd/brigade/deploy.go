package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fieldmarshal/brigade/internal/events"
	"github.com/fieldmarshal/brigade/internal/workspace"
	"github.com/fieldmarshal/brigade/pkg/models"
)

var (
	deploySequential bool
	deployForce      bool
	deployJSON       bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy [plan-id]",
	Short: "Spawn an isolated workspace per pending agent",
	Long: `Spawn a git worktree on its own branch for every pending agent in
the plan, and write each agent's assignment bundle into its workspace.

Spawning is all-or-nothing: if any workspace fails to come up, the ones
already created are torn down and every agent stays pending. Without a
plan ID the most recently created plan is used.

Each workspace gets .brigade/agent.yaml describing the role, the files
to touch, and the validation checklist. Workers tick checklist entries
there as they finish.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().BoolVar(&deploySequential, "sequential", false, "Spawn one workspace at a time")
	deployCmd.Flags().BoolVar(&deployForce, "force", false, "Replace colliding workspaces from earlier runs")
	deployCmd.Flags().BoolVar(&deployJSON, "json", false, "Print spawned workspaces as JSON")
}

func runDeploy(cmd *cobra.Command, args []string) error {
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

	plan, err := loadPlanArg(db, args)
	if err != nil {
		return err
	}
	if len(plan.ByStatus(models.StatusPending)) == 0 {
		fmt.Println("No pending agents to deploy.")
		return nil
	}

	mgr, err := workspace.NewManager(repoPath, workspace.Options{
		Root:  resolveWorkspaceRoot(repoPath, cfg.WorkspaceRoot),
		Force: deployForce,
	})
	if err != nil {
		return err
	}

	pipe, err := newPipeline(repoPath)
	if err != nil {
		return err
	}
	defer pipe.Close()

	start := time.Now()
	workspaces, err := mgr.SpawnAll(ctx, plan, !deploySequential)
	if err != nil {
		return fmt.Errorf("deploying agents: %w", err)
	}

	for _, ws := range workspaces {
		pipe.Emitter.Emit(events.Event{
			Type:      events.TypeAgentSpawned,
			PlanID:    plan.ID,
			AgentID:   ws.AgentID,
			Message:   ws.BranchName,
			Timestamp: time.Now(),
		})
	}
	if err := db.SaveStatuses(plan); err != nil {
		return fmt.Errorf("saving statuses: %w", err)
	}

	if deployJSON {
		return printJSON(workspaces)
	}

	fmt.Printf("Deployed %d agents in %s\n\n", len(workspaces), formatDuration(time.Since(start)))
	for _, ws := range workspaces {
		printStatus("✓", fmt.Sprintf("%s  %s (branch %s)", ws.AgentID, ws.Path, ws.BranchName), color.FgGreen)
	}
	fmt.Println("\nNext: brigade status --watch")
	return nil
}
