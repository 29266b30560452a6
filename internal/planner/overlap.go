package planner

import (
	"github.com/bmatcuk/doublestar/v4"

	"github.com/fieldmarshal/brigade/pkg/models"
)

// inferOverlapEdges adds producer/consumer dependency edges: a spec that
// modifies files another spec creates waits for the creator. Entries on
// either side may be doublestar globs.
func inferOverlapEdges(specs []*models.AgentSpec) {
	for _, producer := range specs {
		for _, consumer := range specs {
			if producer.ID == consumer.ID {
				continue
			}
			if filesOverlap(producer.FilesToCreate, consumer.FilesToModify) {
				consumer.DependsOn = appendUnique(consumer.DependsOn, producer.ID)
			}
		}
	}
}

// filesOverlap reports whether any created path matches any modified
// path, exactly or through a glob on either side. Malformed patterns
// count as non-matches.
func filesOverlap(creates, modifies []string) bool {
	for _, c := range creates {
		for _, m := range modifies {
			if c == m {
				return true
			}
			if ok, err := doublestar.Match(c, m); err == nil && ok {
				return true
			}
			if ok, err := doublestar.Match(m, c); err == nil && ok {
				return true
			}
		}
	}
	return false
}
