package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fieldmarshal/brigade/pkg/models"
)

// PlanSummary is one row in a plan listing.
type PlanSummary struct {
	ID                string    `json:"id"`
	SourceDescription string    `json:"source_description"`
	BaseBranch        string    `json:"base_branch"`
	CreatedAt         time.Time `json:"created_at"`
	AgentCount        int       `json:"agent_count"`
}

const agentColumns = `plan_id, id, position, role, files_to_create, files_to_modify,
	depends_on, validation_criteria, estimated_minutes, source_indexes, status, blocked_by`

// SavePlan persists the full plan, replacing any previously stored copy
// with the same ID. Agents keep their discovery order.
func (db *DB) SavePlan(plan *models.DeploymentPlan) error {
	return db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT OR REPLACE INTO plans (id, source_description, base_branch, created_at)
			VALUES (?, ?, ?, ?)
		`, plan.ID, plan.SourceDescription, plan.BaseBranch, formatTime(plan.CreatedAt))
		if err != nil {
			return fmt.Errorf("save plan: %w", err)
		}

		if _, err := tx.Exec("DELETE FROM agents WHERE plan_id = ?", plan.ID); err != nil {
			return fmt.Errorf("clear plan agents: %w", err)
		}

		for i, spec := range plan.Agents {
			_, err := tx.Exec(`
				INSERT INTO agents (`+agentColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, plan.ID, spec.ID, i, spec.Role,
				marshalStrings(spec.FilesToCreate), marshalStrings(spec.FilesToModify),
				marshalStrings(spec.DependsOn), marshalStrings(spec.ValidationCriteria),
				spec.EstimatedMinutes, marshalInts(spec.SourceIndexes),
				string(spec.Status), spec.BlockedBy)
			if err != nil {
				return fmt.Errorf("save agent %s: %w", spec.ID, err)
			}
		}
		return nil
	})
}

// LoadPlan retrieves a plan with its agents in discovery order, or nil
// when no plan has that ID.
func (db *DB) LoadPlan(id string) (*models.DeploymentPlan, error) {
	row := db.QueryRow(`
		SELECT id, source_description, base_branch, created_at
		FROM plans WHERE id = ?
	`, id)

	plan, err := scanPlan(row)
	if err != nil || plan == nil {
		return plan, err
	}
	plan.Agents, err = db.loadAgents(id)
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// LatestPlan retrieves the most recently created plan, or nil when the
// store is empty.
func (db *DB) LatestPlan() (*models.DeploymentPlan, error) {
	row := db.QueryRow(`
		SELECT id, source_description, base_branch, created_at
		FROM plans ORDER BY created_at DESC, id DESC LIMIT 1
	`)

	plan, err := scanPlan(row)
	if err != nil || plan == nil {
		return plan, err
	}
	plan.Agents, err = db.loadAgents(plan.ID)
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// ListPlans returns plan summaries, newest first.
func (db *DB) ListPlans() ([]PlanSummary, error) {
	rows, err := db.Query(`
		SELECT p.id, p.source_description, p.base_branch, p.created_at, COUNT(a.id)
		FROM plans p LEFT JOIN agents a ON a.plan_id = p.id
		GROUP BY p.id ORDER BY p.created_at DESC, p.id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []PlanSummary
	for rows.Next() {
		var s PlanSummary
		var createdAt string
		if err := rows.Scan(&s.ID, &s.SourceDescription, &s.BaseBranch, &createdAt, &s.AgentCount); err != nil {
			return nil, fmt.Errorf("scan plan summary: %w", err)
		}
		s.CreatedAt, _ = parseTime(createdAt)
		plans = append(plans, s)
	}
	return plans, rows.Err()
}

// UpdateAgentStatus writes one agent's status and blocker.
func (db *DB) UpdateAgentStatus(planID, agentID string, status models.AgentStatus, blockedBy string) error {
	res, err := db.Exec(`
		UPDATE agents SET status = ?, blocked_by = ? WHERE plan_id = ? AND id = ?
	`, string(status), blockedBy, planID, agentID)
	if err != nil {
		return fmt.Errorf("update agent status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("agent %s not found in plan %s", agentID, planID)
	}
	return nil
}

// SaveStatuses writes every agent's current status and blocker in a
// single transaction. Called at phase boundaries after a validation or
// integration pass mutates the in-memory plan.
func (db *DB) SaveStatuses(plan *models.DeploymentPlan) error {
	return db.Transaction(func(tx *sql.Tx) error {
		for _, spec := range plan.Agents {
			_, err := tx.Exec(`
				UPDATE agents SET status = ?, blocked_by = ? WHERE plan_id = ? AND id = ?
			`, string(spec.Status), spec.BlockedBy, plan.ID, spec.ID)
			if err != nil {
				return fmt.Errorf("save status for %s: %w", spec.ID, err)
			}
		}
		return nil
	})
}

// DeletePlan removes a plan; its agents cascade.
func (db *DB) DeletePlan(id string) error {
	if _, err := db.Exec("DELETE FROM plans WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	return nil
}

func (db *DB) loadAgents(planID string) ([]*models.AgentSpec, error) {
	rows, err := db.Query(`
		SELECT `+agentColumns+`
		FROM agents WHERE plan_id = ? ORDER BY position
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("load agents: %w", err)
	}
	defer rows.Close()

	var specs []*models.AgentSpec
	for rows.Next() {
		var spec models.AgentSpec
		var planRef string
		var position int
		var creates, modifies, deps, criteria, indexes sql.NullString
		var blockedBy sql.NullString
		err := rows.Scan(&planRef, &spec.ID, &position, &spec.Role,
			&creates, &modifies, &deps, &criteria,
			&spec.EstimatedMinutes, &indexes, &spec.Status, &blockedBy)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		spec.FilesToCreate = unmarshalStrings(creates)
		spec.FilesToModify = unmarshalStrings(modifies)
		spec.DependsOn = unmarshalStrings(deps)
		spec.ValidationCriteria = unmarshalStrings(criteria)
		spec.SourceIndexes = unmarshalInts(indexes)
		if blockedBy.Valid {
			spec.BlockedBy = blockedBy.String
		}
		specs = append(specs, &spec)
	}
	return specs, rows.Err()
}

func scanPlan(row *sql.Row) (*models.DeploymentPlan, error) {
	var plan models.DeploymentPlan
	var createdAt string
	err := row.Scan(&plan.ID, &plan.SourceDescription, &plan.BaseBranch, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan plan: %w", err)
	}
	plan.CreatedAt, _ = parseTime(createdAt)
	return &plan, nil
}

func marshalStrings(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(values)
	return string(b)
}

func unmarshalStrings(s sql.NullString) []string {
	if !s.Valid || s.String == "" || s.String == "[]" {
		return nil
	}
	var values []string
	json.Unmarshal([]byte(s.String), &values)
	return values
}

func marshalInts(values []int) string {
	if len(values) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(values)
	return string(b)
}

func unmarshalInts(s sql.NullString) []int {
	if !s.Valid || s.String == "" || s.String == "[]" {
		return nil
	}
	var values []int
	json.Unmarshal([]byte(s.String), &values)
	return values
}
