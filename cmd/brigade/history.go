package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldmarshal/brigade/internal/journal"
)

var (
	historyRunID string
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past deployment runs from the journal",
	Long: `List journaled runs, newest first. Every brigade command that moves
agents records its events under one run ID; pass --run to see a single
run's events in order.

The journal is history only. Recovery never reads it: re-running a
command resumes from agent statuses in the plan store.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyRunID, "run", "", "Show one run's events instead of the run list")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum runs to list")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print as JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	repoPath, err := repoRoot()
	if err != nil {
		return err
	}
	j, err := journal.OpenProject(repoPath)
	if err != nil {
		return err
	}
	defer j.Close()

	if historyRunID != "" {
		return showRun(j, historyRunID)
	}

	runs, err := j.Runs()
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	if historyLimit > 0 && len(runs) > historyLimit {
		runs = runs[:historyLimit]
	}
	if historyJSON {
		return printJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	fmt.Printf("%-36s %-20s %8s %7s\n", "RUN", "STARTED", "TOOK", "EVENTS")
	for _, r := range runs {
		took := r.FinishedAt.Sub(r.StartedAt)
		fmt.Printf("%-36s %-20s %8s %7d\n",
			r.RunID, r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			formatDuration(took), r.Events)
	}
	fmt.Println("\nDetails: brigade history --run <id>")
	return nil
}

// showRun prints one run's events in append order.
func showRun(j *journal.Journal, runID string) error {
	entries, err := j.Entries(runID)
	if err != nil {
		return fmt.Errorf("listing entries: %w", err)
	}
	if historyJSON {
		return printJSON(entries)
	}
	if len(entries) == 0 {
		fmt.Printf("No events recorded for run %s.\n", runID)
		return nil
	}

	fmt.Printf("Run %s (%d events)\n\n", runID, len(entries))
	for _, e := range entries {
		line := fmt.Sprintf("%s  %-18s", e.CreatedAt.Local().Format(time.TimeOnly), e.Type)
		if e.AgentID != "" {
			line += " " + e.AgentID
		}
		if e.Detail != "" {
			line += "  " + e.Detail
		}
		if e.Files != "" {
			line += "  [" + e.Files + "]"
		}
		fmt.Println(line)
	}
	return nil
}
