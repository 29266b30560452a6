package planner

import (
	"fmt"
	"math"
	"sort"

	"github.com/fieldmarshal/brigade/pkg/models"
)

// enforceCeiling merges agent specs until at most maxAgents remain. Only
// pairs with no directed path between them are merge candidates, so a
// merge can never introduce a cycle. The cheapest pair by combined
// estimated effort merges first; ties break on the smallest source index.
func enforceCeiling(specs []*models.AgentSpec, maxAgents int) ([]*models.AgentSpec, error) {
	for len(specs) > maxAgents {
		earlier, later, ok := cheapestIndependentPair(specs)
		if !ok {
			return nil, fmt.Errorf("cannot reduce %d agents to %d: every remaining pair is dependency-ordered", len(specs), maxAgents)
		}
		specs = mergePair(specs, earlier, later)
	}
	return specs, nil
}

// cheapestIndependentPair picks the two specs to merge next. A pair
// qualifies when neither spec transitively depends on the other. The
// returned earlier index is the spec covering the smaller source index;
// it survives the merge.
func cheapestIndependentPair(specs []*models.AgentSpec) (earlier, later int, ok bool) {
	reach := reachability(specs)

	type candidate struct {
		earlier, later       int
		cost                 int
		earlierIdx, laterIdx int
	}
	var candidates []candidate

	for i := 0; i < len(specs); i++ {
		for j := i + 1; j < len(specs); j++ {
			if reach[i][specs[j].ID] || reach[j][specs[i].ID] {
				continue
			}
			a, b := i, j
			if minSourceIndex(specs[b]) < minSourceIndex(specs[a]) {
				a, b = b, a
			}
			candidates = append(candidates, candidate{
				earlier:    a,
				later:      b,
				cost:       specs[a].EstimatedMinutes + specs[b].EstimatedMinutes,
				earlierIdx: minSourceIndex(specs[a]),
				laterIdx:   minSourceIndex(specs[b]),
			})
		}
	}
	if len(candidates) == 0 {
		return 0, 0, false
	}

	sort.Slice(candidates, func(x, y int) bool {
		cx, cy := candidates[x], candidates[y]
		if cx.cost != cy.cost {
			return cx.cost < cy.cost
		}
		if cx.earlierIdx != cy.earlierIdx {
			return cx.earlierIdx < cy.earlierIdx
		}
		return cx.laterIdx < cy.laterIdx
	})
	best := candidates[0]
	return best.earlier, best.later, true
}

// mergePair folds specs[later] into specs[earlier] and returns the
// shortened slice. The earlier spec keeps its ID and role; files,
// criteria, item indexes, and dependencies union; every other spec's
// edges are rewritten from the absorbed ID to the surviving one.
func mergePair(specs []*models.AgentSpec, earlier, later int) []*models.AgentSpec {
	base := specs[earlier]
	absorbed := specs[later]

	base.FilesToCreate = appendUnique(base.FilesToCreate, absorbed.FilesToCreate...)
	base.FilesToModify = appendUnique(base.FilesToModify, absorbed.FilesToModify...)
	base.ValidationCriteria = appendUnique(base.ValidationCriteria, absorbed.ValidationCriteria...)
	base.SourceIndexes = append(base.SourceIndexes, absorbed.SourceIndexes...)
	sort.Ints(base.SourceIndexes)
	base.EstimatedMinutes += absorbed.EstimatedMinutes

	for _, dep := range absorbed.DependsOn {
		if dep != base.ID {
			base.DependsOn = appendUnique(base.DependsOn, dep)
		}
	}

	mapping := map[string]string{absorbed.ID: base.ID}
	merged := make([]*models.AgentSpec, 0, len(specs)-1)
	for k, spec := range specs {
		if k == later {
			continue
		}
		spec.DependsOn = remapDependencies(spec.DependsOn, mapping, spec.ID)
		merged = append(merged, spec)
	}
	return merged
}

// remapDependencies rewrites absorbed IDs to their survivors, dropping
// duplicates and self references introduced by the rewrite.
func remapDependencies(deps []string, mapping map[string]string, self string) []string {
	seen := make(map[string]bool, len(deps))
	var updated []string
	for _, dep := range deps {
		if mapped, ok := mapping[dep]; ok {
			dep = mapped
		}
		if dep == self || seen[dep] {
			continue
		}
		seen[dep] = true
		updated = append(updated, dep)
	}
	return updated
}

// reachability computes, for each spec position, the set of spec IDs it
// transitively depends on.
func reachability(specs []*models.AgentSpec) []map[string]bool {
	index := make(map[string]int, len(specs))
	for i, s := range specs {
		index[s.ID] = i
	}

	out := make([]map[string]bool, len(specs))
	for i := range specs {
		seen := make(map[string]bool)
		queue := append([]string(nil), specs[i].DependsOn...)
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			if seen[id] {
				continue
			}
			seen[id] = true
			if k, known := index[id]; known {
				queue = append(queue, specs[k].DependsOn...)
			}
		}
		out[i] = seen
	}
	return out
}

// minSourceIndex is the smallest work item index a spec covers. Specs
// with no recorded items sort last.
func minSourceIndex(spec *models.AgentSpec) int {
	if len(spec.SourceIndexes) == 0 {
		return math.MaxInt
	}
	min := spec.SourceIndexes[0]
	for _, idx := range spec.SourceIndexes[1:] {
		if idx < min {
			min = idx
		}
	}
	return min
}
