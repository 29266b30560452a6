package decompose

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/fieldmarshal/brigade/pkg/models"
)

func items(texts ...string) []models.WorkItem {
	out := make([]models.WorkItem, len(texts))
	for i, text := range texts {
		out[i] = models.WorkItem{Text: text, SourceIndex: i}
	}
	return out
}

func TestRuleBased_Clustering(t *testing.T) {
	in := items(
		"add users table migration",
		"add login endpoint",
		"add logout endpoint",
		"build signup form component",
		"write e2e tests for signup flow",
	)

	drafts, err := NewRuleBased().Decompose(context.Background(), in, 0)
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}

	byRole := make(map[string]Draft)
	for _, d := range drafts {
		byRole[d.Role] = d
	}

	if got := len(byRole["database"].Items); got != 1 {
		t.Errorf("database items = %d, want 1", got)
	}
	if got := len(byRole["backend"].Items); got != 2 {
		t.Errorf("backend items = %d, want 2", got)
	}
	if got := len(byRole["frontend"].Items); got != 1 {
		t.Errorf("frontend items = %d, want 1", got)
	}

	tests, ok := byRole["tests"]
	if !ok {
		t.Fatal("expected a tests draft")
	}
	for _, dep := range []string{"database", "backend", "frontend"} {
		found := false
		for _, d := range tests.DependsOn {
			if d == dep {
				found = true
			}
		}
		if !found {
			t.Errorf("tests draft missing dependency on %s (got %v)", dep, tests.DependsOn)
		}
	}
}

func TestRuleBased_PartitionAndDeterminism(t *testing.T) {
	in := items(
		"update README with setup notes",
		"refactor cache service",
		"add dashboard page",
		"configure ci pipeline",
		"investigate flaky timestamps",
	)

	first, err := NewRuleBased().Decompose(context.Background(), in, 0)
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}
	second, err := NewRuleBased().Decompose(context.Background(), in, 0)
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("same input produced different drafts")
	}

	seen := make(map[int]bool)
	for _, d := range first {
		for _, item := range d.Items {
			if seen[item.SourceIndex] {
				t.Errorf("item %d assigned twice", item.SourceIndex)
			}
			seen[item.SourceIndex] = true
		}
	}
	if len(seen) != len(in) {
		t.Errorf("partition covers %d items, want %d", len(seen), len(in))
	}
}

func TestRuleBased_AfterHint(t *testing.T) {
	in := items(
		"add login endpoint",
		"write user documentation after backend",
	)

	drafts, err := NewRuleBased().Decompose(context.Background(), in, 0)
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}

	for _, d := range drafts {
		if d.Role == "docs" {
			if len(d.DependsOn) != 1 || d.DependsOn[0] != "backend" {
				t.Errorf("docs DependsOn = %v, want [backend]", d.DependsOn)
			}
			return
		}
	}
	t.Fatal("expected a docs draft")
}

func TestRuleBased_PathMentions(t *testing.T) {
	in := items(
		"create internal/auth/session.go with session helpers",
		"update pkg/server/routes.go for the logout endpoint",
	)

	drafts, err := NewRuleBased().Decompose(context.Background(), in, 0)
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}

	var creates, modifies []string
	for _, d := range drafts {
		creates = append(creates, d.FilesToCreate...)
		modifies = append(modifies, d.FilesToModify...)
	}

	if !reflect.DeepEqual(creates, []string{"internal/auth/session.go"}) {
		t.Errorf("FilesToCreate = %v", creates)
	}
	if !reflect.DeepEqual(modifies, []string{"pkg/server/routes.go"}) {
		t.Errorf("FilesToModify = %v", modifies)
	}
}

func TestDraft_CriteriaAndSourceIndexes(t *testing.T) {
	d := Draft{Items: items("one", "two")}
	if got := d.Criteria(); !reflect.DeepEqual(got, []string{"one", "two"}) {
		t.Errorf("Criteria() = %v", got)
	}
	if got := d.SourceIndexes(); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("SourceIndexes() = %v", got)
	}
}

type fakeCompleter struct {
	response string
	err      error
	prompt   string
}

func (f *fakeCompleter) Complete(_ context.Context, _ string, prompt string) (string, error) {
	f.prompt = prompt
	return f.response, f.err
}

func TestClaude_ParseValid(t *testing.T) {
	response := "Here is the plan:\n```json\n" + `[
		{"role": "schema", "item_indexes": [0], "files_to_create": ["db/users.sql"], "estimated_minutes": 20},
		{"role": "api", "item_indexes": [1, 2], "depends_on": ["schema"], "estimated_minutes": 40}
	]` + "\n```"

	c := NewClaude(&fakeCompleter{response: response})
	drafts, err := c.Decompose(context.Background(), items("users table", "login endpoint", "logout endpoint"), 4)
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}

	if len(drafts) != 2 {
		t.Fatalf("got %d drafts, want 2", len(drafts))
	}
	if drafts[0].Role != "schema" || len(drafts[0].Items) != 1 {
		t.Errorf("draft 0 = %+v", drafts[0])
	}
	if !reflect.DeepEqual(drafts[1].DependsOn, []string{"schema"}) {
		t.Errorf("draft 1 DependsOn = %v, want [schema]", drafts[1].DependsOn)
	}
	if !reflect.DeepEqual(drafts[1].SourceIndexes(), []int{1, 2}) {
		t.Errorf("draft 1 SourceIndexes = %v, want [1 2]", drafts[1].SourceIndexes())
	}
}

func TestClaude_ParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantErr  string
	}{
		{"no array", "sorry, cannot help", "no JSON array found"},
		{"empty list", "[]", "empty draft list"},
		{"unknown dependency", `[{"role": "a", "item_indexes": [0], "depends_on": ["ghost"]}]`, `unknown dependency "ghost"`},
		{"index out of range", `[{"role": "a", "item_indexes": [9]}]`, "out of range"},
		{"duplicate assignment", `[{"role": "a", "item_indexes": [0]}, {"role": "b", "item_indexes": [0]}]`, "assigned to both"},
		{"duplicate role", `[{"role": "a", "item_indexes": [0]}, {"role": "a", "item_indexes": [1]}]`, `duplicate role "a"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClaude(&fakeCompleter{response: tt.response})
			_, err := c.Decompose(context.Background(), items("one", "two"), 2)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Decompose() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestClaude_PromptCarriesItemsAndCeiling(t *testing.T) {
	fake := &fakeCompleter{response: `[{"role": "a", "item_indexes": [0, 1]}]`}
	c := NewClaude(fake)

	if _, err := c.Decompose(context.Background(), items("first item", "second item"), 3); err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}
	if !strings.Contains(fake.prompt, "at most 3 agent") {
		t.Errorf("prompt missing ceiling: %q", fake.prompt)
	}
	if !strings.Contains(fake.prompt, "0. first item") || !strings.Contains(fake.prompt, "1. second item") {
		t.Errorf("prompt missing indexed items: %q", fake.prompt)
	}
}
