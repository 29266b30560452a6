package merge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/fieldmarshal/brigade/internal/git"
	"github.com/fieldmarshal/brigade/pkg/models"
)

// Inspector builds ConflictRecords for an in-flight conflicted merge by
// reading both branch versions of every unmerged file.
type Inspector struct {
	repoPath string
	git      git.Runner
}

// NewInspector creates an Inspector over the repository at repoPath.
func NewInspector(repoPath string, runner git.Runner) *Inspector {
	return &Inspector{repoPath: repoPath, git: runner}
}

// Collect enumerates one record per unmerged file. A side that does
// not have the file (added on the other branch) contributes empty
// content, mirroring how git shows one-sided conflicts.
func (in *Inspector) Collect(ctx context.Context, agentID, targetBranch, incomingBranch string) ([]models.ConflictRecord, error) {
	files, err := in.git.ConflictedFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list conflicted files: %w", err)
	}

	records := make([]models.ConflictRecord, 0, len(files))
	for _, path := range files {
		target, err := in.git.ShowFile(ctx, targetBranch, path)
		if err != nil {
			target = ""
		}
		incoming, err := in.git.ShowFile(ctx, incomingBranch, path)
		if err != nil {
			incoming = ""
		}

		markers := false
		if working, err := os.ReadFile(filepath.Join(in.repoPath, path)); err == nil {
			markers = HasConflictMarkers(string(working))
		}

		records = append(records, models.ConflictRecord{
			AgentID:                agentID,
			FilePath:               path,
			ConflictMarkersPresent: markers,
			TargetContent:          target,
			IncomingContent:        incoming,
			Preview:                preview(target, incoming),
		})
	}
	return records, nil
}

// preview renders a line diff between the two sides, target as the old
// text and incoming as the new.
func preview(target, incoming string) string {
	if target == incoming {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(target, incoming)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		}
		text := strings.TrimRight(d.Text, "\n")
		if text == "" {
			continue
		}
		for _, line := range strings.Split(text, "\n") {
			sb.WriteString(prefix)
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
