// Package merge merges workspace branches into the target branch and
// resolves the conflicts a merge leaves behind, either with a
// deterministic strategy or by handing each file to an external caller.
package merge

import (
	"fmt"
	"strings"

	"github.com/fieldmarshal/brigade/pkg/models"
)

// unionSeparator divides the two sides of a union resolution. It
// carries no conflict-marker prefix so resolved files never look
// conflicted.
const unionSeparator = "---- union merge: target branch above, workspace branch below ----"

// Resolve applies a non-manual strategy to every record and returns
// copies with ResolvedContent set. The output is a pure function of
// the two sides' content: same inputs, same bytes.
func Resolve(records []models.ConflictRecord, strategy models.ResolutionStrategy) ([]models.ConflictRecord, error) {
	if strategy == models.ResolveManual {
		return nil, fmt.Errorf("manual strategy requires a ManualResolver")
	}
	if !strategy.Valid() {
		return nil, fmt.Errorf("unknown resolution strategy %q", strategy)
	}

	resolved := make([]models.ConflictRecord, len(records))
	for i, rec := range records {
		var content string
		switch strategy {
		case models.ResolvePreferIncoming:
			content = rec.IncomingContent
		case models.ResolvePreferTarget:
			content = rec.TargetContent
		case models.ResolveUnion:
			content = unionContent(rec.TargetContent, rec.IncomingContent)
		}
		rec.ResolutionStrategy = strategy
		rec.ResolvedContent = &content
		resolved[i] = rec
	}
	return resolved, nil
}

// unionContent keeps both sides, target first. An empty side drops out
// along with the separator.
func unionContent(target, incoming string) string {
	target = strings.TrimRight(target, "\n")
	incoming = strings.TrimRight(incoming, "\n")
	switch {
	case target == "" && incoming == "":
		return ""
	case target == "":
		return incoming + "\n"
	case incoming == "":
		return target + "\n"
	}
	return target + "\n" + unionSeparator + "\n" + incoming + "\n"
}

// HasConflictMarkers reports whether content still carries git
// conflict markers. Only the side markers are checked; a bare line of
// equals signs is common in prose and does not count.
func HasConflictMarkers(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "<<<<<<<") || strings.HasPrefix(line, ">>>>>>>") {
			return true
		}
	}
	return false
}
