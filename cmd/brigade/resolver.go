package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/fieldmarshal/brigade/internal/merge"
	"github.com/fieldmarshal/brigade/pkg/models"
)

// terminalResolver walks the operator through each conflicted file on
// the terminal. Skipped files stay unresolved, which aborts the whole
// merge attempt for that agent.
type terminalResolver struct {
	in  *bufio.Reader
	out io.Writer
}

func newTerminalResolver(in io.Reader) *terminalResolver {
	return &terminalResolver{in: bufio.NewReader(in), out: os.Stdout}
}

func (r *terminalResolver) ResolveConflicts(ctx context.Context, records []models.ConflictRecord) ([]merge.Resolution, error) {
	resolutions := make([]merge.Resolution, 0, len(records))
	header := color.New(color.FgCyan)
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return resolutions, err
		}
		fmt.Fprintf(r.out, "\n%s %s (agent %s, %d/%d)\n",
			header.Sprint("Conflict:"), rec.FilePath, rec.AgentID, i+1, len(records))
		if rec.Preview != "" {
			fmt.Fprintln(r.out, indent(rec.Preview, "  "))
		}

		choice, err := r.prompt()
		if err != nil {
			return resolutions, fmt.Errorf("reading resolution choice: %w", err)
		}
		if choice == "s" {
			fmt.Fprintf(r.out, "Skipped %s; the merge for this agent will abort.\n", rec.FilePath)
			continue
		}

		resolved, err := merge.Resolve([]models.ConflictRecord{rec}, strategyFor(choice))
		if err != nil {
			return resolutions, err
		}
		resolutions = append(resolutions, merge.Resolution{
			FilePath: rec.FilePath,
			Content:  *resolved[0].ResolvedContent,
		})
	}
	return resolutions, nil
}

// prompt reads one choice, re-asking until it gets a known answer.
func (r *terminalResolver) prompt() (string, error) {
	for {
		fmt.Fprint(r.out, "Keep [t]arget, [i]ncoming, [u]nion, or [s]kip? ")
		line, err := r.in.ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "t", "target":
			return "t", nil
		case "i", "incoming":
			return "i", nil
		case "u", "union":
			return "u", nil
		case "s", "skip":
			return "s", nil
		}
		fmt.Fprintln(r.out, "Unrecognized choice.")
		if err != nil {
			return "", err
		}
	}
}

func strategyFor(choice string) models.ResolutionStrategy {
	switch choice {
	case "i":
		return models.ResolvePreferIncoming
	case "u":
		return models.ResolveUnion
	default:
		return models.ResolvePreferTarget
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
