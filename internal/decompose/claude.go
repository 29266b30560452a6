package decompose

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fieldmarshal/brigade/pkg/models"
)

// Completer is the single LLM call the claude decomposer depends on.
// Satisfied by llm.Client.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Claude is a Decomposer backed by a language model. The model proposes
// the grouping; everything it returns is re-validated locally, and the
// planner independently enforces the partition and acyclicity contracts.
type Claude struct {
	completer Completer
}

// NewClaude creates the LLM-backed decomposer.
func NewClaude(c Completer) *Claude {
	return &Claude{completer: c}
}

const decomposeSystem = `You are a software work planner. You group work items into the smallest sensible set of independently-workable agent assignments and declare which assignments depend on others. You respond with a JSON array only, no prose.`

const decomposePromptFmt = `Group the following work items into at most %d agent assignments.

Work items (referenced by index):
%s

Respond with a JSON array. Each element:
{
  "role": "short responsibility label",
  "item_indexes": [0, 2],
  "files_to_create": ["path/one.go"],
  "files_to_modify": ["path/two.go"],
  "depends_on": ["role label of another assignment"],
  "estimated_minutes": 30
}

Rules:
- Every item index appears in exactly one assignment.
- depends_on names only roles present in your response.
- An assignment depends on another only when it consumes files the other produces.`

// draftJSON is the JSON structure returned by the model for one draft.
type draftJSON struct {
	Role             string   `json:"role"`
	ItemIndexes      []int    `json:"item_indexes"`
	FilesToCreate    []string `json:"files_to_create"`
	FilesToModify    []string `json:"files_to_modify"`
	DependsOn        []string `json:"depends_on"`
	EstimatedMinutes int      `json:"estimated_minutes"`
}

// Decompose asks the model for a grouping and parses it into drafts.
func (c *Claude) Decompose(ctx context.Context, items []models.WorkItem, maxAgents int) ([]Draft, error) {
	if maxAgents <= 0 {
		maxAgents = len(items)
	}

	var list strings.Builder
	for _, item := range items {
		fmt.Fprintf(&list, "%d. %s\n", item.SourceIndex, item.Text)
	}

	response, err := c.completer.Complete(ctx, decomposeSystem, fmt.Sprintf(decomposePromptFmt, maxAgents, list.String()))
	if err != nil {
		return nil, fmt.Errorf("decompose completion: %w", err)
	}

	return parseDrafts(response, items)
}

// parseDrafts converts a model response into drafts, validating every
// reference against the input items.
func parseDrafts(response string, items []models.WorkItem) ([]Draft, error) {
	jsonStr, err := extractJSONArray(response)
	if err != nil {
		return nil, err
	}

	var raw []draftJSON
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty draft list returned")
	}

	byIndex := make(map[int]models.WorkItem, len(items))
	for _, item := range items {
		byIndex[item.SourceIndex] = item
	}

	roles := make(map[string]bool, len(raw))
	for _, d := range raw {
		if strings.TrimSpace(d.Role) == "" {
			return nil, fmt.Errorf("draft with empty role")
		}
		if roles[d.Role] {
			return nil, fmt.Errorf("duplicate role %q in response", d.Role)
		}
		roles[d.Role] = true
	}

	claimed := make(map[int]string, len(items))
	drafts := make([]Draft, 0, len(raw))
	for _, d := range raw {
		draft := Draft{
			Role:             d.Role,
			FilesToCreate:    d.FilesToCreate,
			FilesToModify:    d.FilesToModify,
			EstimatedMinutes: d.EstimatedMinutes,
		}

		for _, idx := range d.ItemIndexes {
			item, ok := byIndex[idx]
			if !ok {
				return nil, fmt.Errorf("item index %d out of range for agent %q", idx, d.Role)
			}
			if prior, dup := claimed[idx]; dup {
				return nil, fmt.Errorf("work item %d assigned to both %q and %q", idx, prior, d.Role)
			}
			claimed[idx] = d.Role
			draft.Items = append(draft.Items, item)
		}

		for _, dep := range d.DependsOn {
			if !roles[dep] {
				return nil, fmt.Errorf("unknown dependency %q for agent %q", dep, d.Role)
			}
			if dep != d.Role {
				draft.DependsOn = append(draft.DependsOn, dep)
			}
		}

		drafts = append(drafts, draft)
	}

	return drafts, nil
}

// extractJSONArray pulls the first JSON array out of a response that may
// carry prose or code fences around it.
func extractJSONArray(response string) (string, error) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON array found in response")
	}
	return response[start : end+1], nil
}

// Verify Claude implements Decomposer at compile time.
var _ Decomposer = (*Claude)(nil)
