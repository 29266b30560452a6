package state

import "github.com/fieldmarshal/brigade/pkg/models"

// PlanStore handles plan persistence. Commands depend on this rather
// than the concrete SQLite implementation.
type PlanStore interface {
	SavePlan(plan *models.DeploymentPlan) error
	LoadPlan(id string) (*models.DeploymentPlan, error)
	LatestPlan() (*models.DeploymentPlan, error)
	ListPlans() ([]PlanSummary, error)
	UpdateAgentStatus(planID, agentID string, status models.AgentStatus, blockedBy string) error
	SaveStatuses(plan *models.DeploymentPlan) error
	DeletePlan(id string) error
}

// Migrator applies pending schema migrations. Separate so callers that
// only prepare a database don't need the full store surface.
type Migrator interface {
	Migrate() error
}

// Store is the full persistence surface backed by one database.
type Store interface {
	PlanStore
	Migrator
	Close() error
}

var _ Store = (*DB)(nil)
