package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/fieldmarshal/brigade/internal/metrics"
	"github.com/fieldmarshal/brigade/internal/monitor"
	"github.com/fieldmarshal/brigade/internal/server"
	"github.com/fieldmarshal/brigade/internal/tui"
	"github.com/fieldmarshal/brigade/pkg/models"
)

var (
	statusWatch    bool
	statusServe    bool
	statusAddr     string
	statusInterval time.Duration
	statusJSON     bool
)

var statusCmd = &cobra.Command{
	Use:   "status [plan-id]",
	Short: "Show deployment progress across agent workspaces",
	Long: `Read every agent's workspace and report progress: checklist ticks,
commits ahead of the base branch, and whether the working tree is
clean. Reads are concurrent and read-only; no agent state changes.

Without flags, prints one snapshot and exits. With --watch, shows a
live dashboard that refreshes until you quit. With --serve, exposes
the same data over HTTP: JSON at /api/status, Prometheus metrics at
/metrics, and a websocket push stream at /ws/status.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusWatch, "watch", false, "Live dashboard instead of a one-shot snapshot")
	statusCmd.Flags().BoolVar(&statusServe, "serve", false, "Serve status over HTTP")
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "Listen address for --serve (default from config)")
	statusCmd.Flags().DurationVar(&statusInterval, "interval", 2*time.Second, "Refresh interval for --watch and --serve")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the snapshot as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	root := resolveWorkspaceRoot(repoPath, cfg.WorkspaceRoot)
	mon := monitor.New(root, gitFactory)

	if statusServe {
		return serveStatus(cmd, plan, mon)
	}
	if statusWatch {
		reports := mon.Watch(ctx, plan, statusInterval)
		return tui.Run(plan, reports)
	}

	report, err := mon.Snapshot(ctx, plan)
	if err != nil {
		return fmt.Errorf("reading workspaces: %w", err)
	}
	if statusJSON {
		return printJSON(report)
	}
	displayStatus(plan, report)
	return nil
}

// serveStatus runs the HTTP status server until interrupted. The watch
// stream feeds both the websocket broadcast and the Prometheus gauges.
func serveStatus(cmd *cobra.Command, plan *models.DeploymentPlan, mon *monitor.Monitor) error {
	ctx, cancel := signalContext()
	defer cancel()

	addr := statusAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	reg := prometheus.NewRegistry()
	gauges := metrics.NewStatusGauges(reg)

	srv := server.New(server.Config{
		Addr:     addr,
		Plan:     plan,
		Monitor:  mon,
		Registry: reg,
	})

	reports := mon.Watch(ctx, plan, statusInterval)
	broadcast := make(chan *models.StatusReport)
	go func() {
		defer close(broadcast)
		for report := range reports {
			gauges.Update(report)
			broadcast <- report
		}
	}()
	go srv.Broadcast(broadcast)

	fmt.Printf("Serving status for plan %s on http://%s\n", plan.ID, addr)
	return srv.Run(ctx)
}

func displayStatus(plan *models.DeploymentPlan, report *models.StatusReport) {
	fmt.Printf("Plan %s: %s\n", plan.ID, plan.SourceDescription)
	fmt.Printf("Overall: %.0f%%\n\n", report.Overall)

	fmt.Printf("  %-16s %-12s %8s %10s %8s %6s\n", "AGENT", "STATUS", "PERCENT", "CRITERIA", "COMMITS", "TREE")
	for _, a := range report.Agents {
		tree := "-"
		if a.HasWorkspace {
			if a.CleanTree {
				tree = "clean"
			} else {
				tree = "dirty"
			}
		}
		line := fmt.Sprintf("  %-16s %-12s %7.0f%% %7d/%-2d %8d %6s",
			a.AgentID, a.Status, a.Percent, a.TickedCriteria, a.TotalCriteria, a.Commits, tree)
		statusColor(a.Status).Println(line)
	}

	fmt.Printf("\n%d integrated, %d blocked, %d failed of %d agents\n",
		report.Integrated, report.Blocked, report.Failed, len(report.Agents))
}

func statusColor(status models.AgentStatus) *color.Color {
	switch status {
	case models.StatusIntegrated, models.StatusValidated:
		return color.New(color.FgGreen)
	case models.StatusFailed:
		return color.New(color.FgRed)
	case models.StatusBlocked:
		return color.New(color.FgYellow)
	case models.StatusInProgress:
		return color.New(color.FgCyan)
	default:
		return color.New()
	}
}
