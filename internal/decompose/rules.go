package decompose

import (
	"context"
	"regexp"
	"strings"

	"github.com/fieldmarshal/brigade/pkg/models"
)

// bucket is one keyword-defined grouping target. Buckets are evaluated in
// order; the first match wins, so the table order is part of the contract.
type bucket struct {
	role     string
	keywords []string
}

var defaultBuckets = []bucket{
	{"database", []string{"schema", "migration", "database", "db", "sql", "table", "index"}},
	{"backend", []string{"api", "endpoint", "server", "service", "handler", "backend", "auth", "login", "route", "middleware"}},
	{"frontend", []string{"ui", "frontend", "page", "component", "view", "css", "form", "button", "screen"}},
	{"tests", []string{"test", "tests", "coverage", "e2e", "regression"}},
	{"docs", []string{"doc", "docs", "readme", "documentation", "changelog"}},
	{"infra", []string{"ci", "deploy", "docker", "pipeline", "build", "release"}},
}

// fallbackRole collects items no bucket claims.
const fallbackRole = "general"

// afterHint matches explicit ordering hints like "after backend" or
// "(after the database work)".
var afterHint = regexp.MustCompile(`(?i)\bafter\s+(?:the\s+)?([a-z][a-z-]*)`)

// pathToken matches file-path-looking tokens such as internal/api/server.go.
var pathToken = regexp.MustCompile(`[A-Za-z0-9_./-]*/[A-Za-z0-9_.-]+\.[A-Za-z0-9]+`)

// createVerb marks items whose file mentions are new files rather than
// edits.
var createVerb = regexp.MustCompile(`(?i)\b(create|add|new|scaffold|introduce)\b`)

// minutesPerItem is the flat effort estimate the rule strategy assigns.
const minutesPerItem = 20

// RuleBased is a deterministic Decomposer built on keyword clustering.
// Items cluster into role buckets by first keyword hit; explicit "after
// <role>" hints become dependencies, and the tests bucket always waits
// for the code buckets it accompanies. Same items in, same drafts out.
type RuleBased struct {
	buckets []bucket
}

// NewRuleBased creates the rule-based decomposer with the default bucket
// table.
func NewRuleBased() *RuleBased {
	return &RuleBased{buckets: defaultBuckets}
}

// Decompose groups items into drafts. maxAgents is ignored here; the
// planner owns ceiling enforcement.
func (r *RuleBased) Decompose(_ context.Context, items []models.WorkItem, _ int) ([]Draft, error) {
	grouped := make(map[string][]models.WorkItem)
	var roleOrder []string

	for _, item := range items {
		role := r.classify(item.Text)
		if _, seen := grouped[role]; !seen {
			roleOrder = append(roleOrder, role)
		}
		grouped[role] = append(grouped[role], item)
	}

	known := make(map[string]bool, len(roleOrder))
	for _, role := range roleOrder {
		known[role] = true
	}

	drafts := make([]Draft, 0, len(roleOrder))
	for _, role := range roleOrder {
		bucketItems := grouped[role]
		d := Draft{
			Role:             role,
			Items:            bucketItems,
			EstimatedMinutes: minutesPerItem * len(bucketItems),
		}

		depSet := make(map[string]bool)
		for _, item := range bucketItems {
			for _, hinted := range afterHints(item.Text) {
				if hinted != role && known[hinted] {
					depSet[hinted] = true
				}
			}
			creates, modifies := pathMentions(item.Text)
			d.FilesToCreate = appendUnique(d.FilesToCreate, creates...)
			d.FilesToModify = appendUnique(d.FilesToModify, modifies...)
		}

		// Tests integrate after the code they exercise.
		if role == "tests" {
			for _, code := range []string{"database", "backend", "frontend"} {
				if known[code] {
					depSet[code] = true
				}
			}
		}

		for _, other := range roleOrder {
			if depSet[other] {
				d.DependsOn = append(d.DependsOn, other)
			}
		}

		drafts = append(drafts, d)
	}
	return drafts, nil
}

// classify returns the role bucket for one item text. Ordering hints are
// stripped first so "after backend" does not drag an item into the
// backend bucket.
func (r *RuleBased) classify(text string) string {
	words := tokenize(afterHint.ReplaceAllString(text, ""))
	for _, b := range r.buckets {
		for _, kw := range b.keywords {
			if words[kw] {
				return b.role
			}
		}
	}
	return fallbackRole
}

// afterHints extracts hinted role labels from an item text.
func afterHints(text string) []string {
	var out []string
	for _, m := range afterHint.FindAllStringSubmatch(text, -1) {
		out = append(out, strings.ToLower(m[1]))
	}
	return out
}

// pathMentions extracts file-path tokens, split by whether the item reads
// as creating new files or editing existing ones.
func pathMentions(text string) (creates, modifies []string) {
	paths := pathToken.FindAllString(text, -1)
	if len(paths) == 0 {
		return nil, nil
	}
	if createVerb.MatchString(text) {
		return paths, nil
	}
	return nil, paths
}

func tokenize(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		words[w] = true
	}
	return words
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		present := false
		for _, existing := range dst {
			if existing == v {
				present = true
				break
			}
		}
		if !present {
			dst = append(dst, v)
		}
	}
	return dst
}

// Verify RuleBased implements Decomposer at compile time.
var _ Decomposer = (*RuleBased)(nil)
