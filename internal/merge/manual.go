package merge

import (
	"context"
	"fmt"
	"strings"

	"github.com/fieldmarshal/brigade/pkg/models"
)

// Resolution is one externally supplied answer for one conflicted file.
type Resolution struct {
	// FilePath matches the record being answered.
	FilePath string
	// Content is the full resolved file content.
	Content string
}

// ManualResolver hands a merge attempt's conflicts to an external
// caller and waits for its answers. Implementations live outside this
// package; the CLI supplies a terminal one.
type ManualResolver interface {
	// ResolveConflicts returns one resolution per file the caller chose
	// to resolve. Returning fewer resolutions than records, or an
	// error, makes the whole attempt unresolved.
	ResolveConflicts(ctx context.Context, records []models.ConflictRecord) ([]Resolution, error)
}

// NoOpResolver declines every conflict. It is the headless default so
// unattended runs abort conflicted merges instead of hanging.
type NoOpResolver struct{}

// ResolveConflicts returns no resolutions.
func (NoOpResolver) ResolveConflicts(context.Context, []models.ConflictRecord) ([]Resolution, error) {
	return nil, nil
}

var _ ManualResolver = NoOpResolver{}

// UnresolvedError reports files the caller left unanswered when it
// signalled done.
type UnresolvedError struct {
	Files []string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("unresolved conflicts remain in: %s", strings.Join(e.Files, ", "))
}

// ApplyResolutions merges external answers into the records. Every
// record must be answered with marker-free content; otherwise the
// whole attempt fails with an UnresolvedError naming the files.
func ApplyResolutions(records []models.ConflictRecord, resolutions []Resolution) ([]models.ConflictRecord, error) {
	byPath := make(map[string]string, len(resolutions))
	for _, res := range resolutions {
		byPath[res.FilePath] = res.Content
	}

	var unresolved []string
	resolved := make([]models.ConflictRecord, len(records))
	for i, rec := range records {
		content, ok := byPath[rec.FilePath]
		if !ok || HasConflictMarkers(content) {
			unresolved = append(unresolved, rec.FilePath)
			continue
		}
		rec.ResolutionStrategy = models.ResolveManual
		rec.ResolvedContent = &content
		resolved[i] = rec
	}
	if len(unresolved) > 0 {
		return nil, &UnresolvedError{Files: unresolved}
	}
	return resolved, nil
}
