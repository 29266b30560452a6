package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fieldmarshal/brigade/internal/workspace"
	"github.com/fieldmarshal/brigade/pkg/models"
)

var (
	destroyAll     bool
	destroyOrphans bool
	destroyPlanID  string
	destroyForce   bool
)

var destroyCmd = &cobra.Command{
	Use:   "destroy [agent-id...]",
	Short: "Tear down agent workspaces",
	Long: `Remove agent worktrees and delete their branches. Destroyed agents
revert to pending, so a later deploy can spawn them fresh.

Destroying an agent that has not integrated deletes unmerged work, so
it is refused unless --force is set. Integrated agents lose only the
leftover checkout; their work already landed on the base branch.

--orphans removes brigade worktrees left behind by crashed runs:
anything under the brigade branch namespace that no agent in the plan
claims.`,
	RunE: runDestroy,
}

func init() {
	destroyCmd.Flags().BoolVar(&destroyAll, "all", false, "Destroy every workspace in the plan")
	destroyCmd.Flags().BoolVar(&destroyOrphans, "orphans", false, "Remove worktrees no agent in the plan claims")
	destroyCmd.Flags().StringVar(&destroyPlanID, "plan", "", "Plan ID (default: latest plan)")
	destroyCmd.Flags().BoolVar(&destroyForce, "force", false, "Destroy even when unmerged work would be lost")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	if !destroyAll && !destroyOrphans && len(args) == 0 {
		return fmt.Errorf("name at least one agent, or pass --all or --orphans")
	}
	if destroyAll && len(args) > 0 {
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

	plan, err := loadPlanFlag(db, destroyPlanID)
	if err != nil {
		return err
	}

	root := resolveWorkspaceRoot(repoPath, cfg.WorkspaceRoot)
	mgr, err := workspace.NewManager(repoPath, workspace.Options{Root: root})
	if err != nil {
		return err
	}

	if destroyOrphans {
		active := make(map[string]bool, len(plan.Agents))
		for _, a := range plan.Agents {
			active[workspace.BranchName(plan, a.ID)] = true
		}
		removed, err := mgr.CleanupOrphans(ctx, active, func(path string) {
			printStatus("✓", "removed "+path, color.FgGreen)
		})
		if err != nil {
			return fmt.Errorf("cleaning up orphans: %w", err)
		}
		fmt.Printf("Removed %d orphaned workspaces\n", removed)
		return nil
	}

	targets := args
	if destroyAll {
		targets = plan.AgentIDs()
	}

	// Unmerged work dies with the branch; make losing it an explicit
	// choice.
	if !destroyForce {
		var unmerged []string
		for _, id := range targets {
			agent := plan.Agent(id)
			if agent == nil {
				return fmt.Errorf("unknown agent %q in plan %s", id, plan.ID)
			}
			if agent.Status != models.StatusPending && agent.Status != models.StatusIntegrated {
				unmerged = append(unmerged, id)
			}
		}
		if len(unmerged) > 0 {
			return fmt.Errorf("agents %s have unmerged work; re-run with --force to discard it",
				strings.Join(unmerged, ", "))
		}
	}

	destroyed := 0
	for _, id := range targets {
		agent := plan.Agent(id)
		if agent == nil {
			return fmt.Errorf("unknown agent %q in plan %s", id, plan.ID)
		}
		ws := &models.Workspace{
			AgentID:    id,
			Path:       workspace.PathFor(root, plan, id),
			BranchName: workspace.BranchName(plan, id),
		}
		if err := mgr.Destroy(ctx, ws); err != nil {
			return fmt.Errorf("destroying %s: %w", id, err)
		}
		if agent.Status != models.StatusIntegrated {
			agent.Status = models.StatusPending
			agent.BlockedBy = ""
		}
		printStatus("✓", fmt.Sprintf("%s destroyed", id), color.FgGreen)
		destroyed++
	}

	if err := db.SaveStatuses(plan); err != nil {
		return fmt.Errorf("saving statuses: %w", err)
	}
	fmt.Printf("\nDestroyed %d workspaces\n", destroyed)
	return nil
}
