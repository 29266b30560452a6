package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fieldmarshal/brigade/internal/integrate"
	"github.com/fieldmarshal/brigade/internal/merge"
	"github.com/fieldmarshal/brigade/internal/workspace"
	"github.com/fieldmarshal/brigade/pkg/models"
)

var (
	integrateStrategy       string
	integrateKeepWorkspaces bool
	integrateResolveTimeout time.Duration
	integrateJSON           bool
)

var integrateCmd = &cobra.Command{
	Use:   "integrate [plan-id]",
	Short: "Merge validated agents in dependency order",
	Long: `Merge every validated agent's branch into the plan's base branch,
in dependency order. Agents whose dependencies are all integrated merge
as a wave; waves repeat until nothing new can land.

A conflicted merge is aborted and blocks only that agent and its
dependents; unrelated agents keep integrating. Conflict handling is
picked by --strategy:

  manual     prompt for each conflicted file (default)
  incoming   keep the agent branch side
  target     keep the base branch side
  union      keep both sides, base first

Integrated workspaces are torn down unless --keep-workspaces is set.
Re-running integrate after fixing a blocked agent resumes where the
last run stopped.

Exit codes: 0 when every considered agent integrated, 2 when some were
left behind, 1 on errors.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIntegrate,
}

func init() {
	integrateCmd.Flags().StringVar(&integrateStrategy, "strategy", "", "Conflict strategy: manual, incoming, target, or union (default from config)")
	integrateCmd.Flags().BoolVar(&integrateKeepWorkspaces, "keep-workspaces", false, "Keep workspaces after successful integration")
	integrateCmd.Flags().DurationVar(&integrateResolveTimeout, "resolve-timeout", 0, "Cap on manual conflict resolution (default from config)")
	integrateCmd.Flags().BoolVar(&integrateJSON, "json", false, "Print the integration report as JSON")
}

func runIntegrate(cmd *cobra.Command, args []string) error {
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

	strategy := models.ResolutionStrategy(integrateStrategy)
	if integrateStrategy == "" {
		strategy = models.ResolutionStrategy(cfg.Integration.Strategy)
	}
	if !strategy.Valid() {
		return fmt.Errorf("unknown strategy %q (want manual, incoming, target, or union)", strategy)
	}
	resolveTimeout := cfg.Integration.ResolveTimeout
	if cmd.Flags().Changed("resolve-timeout") {
		resolveTimeout = integrateResolveTimeout
	}
	keep := integrateKeepWorkspaces || cfg.Integration.KeepWorkspaces

	mergeOpts := []merge.Option{merge.WithStrategy(strategy)}
	if strategy == models.ResolveManual {
		mergeOpts = append(mergeOpts, merge.WithManualResolver(newTerminalResolver(os.Stdin)))
	}
	if resolveTimeout > 0 {
		mergeOpts = append(mergeOpts, merge.WithResolveTimeout(resolveTimeout))
	}
	handler := merge.NewHandler(plan.BaseBranch, repoPath, mergeOpts...)

	pipe, err := newPipeline(repoPath)
	if err != nil {
		return err
	}
	defer pipe.Close()

	root := resolveWorkspaceRoot(repoPath, cfg.WorkspaceRoot)
	intOpts := []integrate.Option{integrate.WithEmitter(pipe.Emitter)}
	if !keep {
		mgr, err := workspace.NewManager(repoPath, workspace.Options{Root: root})
		if err != nil {
			return err
		}
		intOpts = append(intOpts, integrate.WithDestroyer(mgr))
	}

	report, err := integrate.New(handler, root, intOpts...).Run(ctx, plan)
	if saveErr := db.SaveStatuses(plan); saveErr != nil && err == nil {
		err = saveErr
	}
	if err != nil {
		return err
	}

	if integrateJSON {
		return printJSON(report)
	}
	displayIntegration(report)
	if !report.Complete() {
		exitCode = 2
	}
	return nil
}

func displayIntegration(report *models.IntegrationReport) {
	for _, res := range report.Results {
		switch res.Outcome {
		case models.OutcomeIntegrated:
			printStatus("✓", fmt.Sprintf("%s integrated (wave %d, commit %.8s)", res.AgentID, res.Wave, res.MergeCommit), color.FgGreen)
		case models.OutcomeConflicted:
			printStatus("✗", fmt.Sprintf("%s conflicted: %s", res.AgentID, strings.Join(res.ConflictFiles, ", ")), color.FgRed)
		case models.OutcomeBlocked:
			printStatus("!", fmt.Sprintf("%s blocked by %s", res.AgentID, res.BlockedBy), color.FgYellow)
		case models.OutcomeSkipped:
			fmt.Printf("  %s skipped: %s\n", res.AgentID, res.Reason)
		}
	}

	took := report.FinishedAt.Sub(report.StartedAt)
	fmt.Printf("\nIntegrated %d, left behind %d, %d waves in %s\n",
		report.Integrated(), len(report.Results)-report.Integrated(), report.Waves, formatDuration(took))
	if !report.Complete() {
		fmt.Println("Fix blocked agents and re-run: brigade integrate")
	}
}
