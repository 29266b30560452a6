package models

import (
	"strings"
	"time"
)

// DeploymentPlan is the full DAG of agent specs derived from one body of
// work. Agents preserve discovery order. The dependency relation over
// Agents is acyclic; the planner rejects anything else at build time.
type DeploymentPlan struct {
	// ID uniquely identifies the plan.
	ID string `json:"id" yaml:"id"`
	// SourceDescription is a short label for the body of work the plan
	// was built from.
	SourceDescription string `json:"source_description" yaml:"source_description"`
	// BaseBranch is the branch workspaces fork from and integration
	// merges into.
	BaseBranch string `json:"base_branch" yaml:"base_branch"`
	// Agents holds the specs in discovery order.
	Agents []*AgentSpec `json:"agents" yaml:"agents"`
	// CreatedAt is when the plan was built.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Agent returns the spec with the given ID, or nil if absent.
func (p *DeploymentPlan) Agent(id string) *AgentSpec {
	for _, a := range p.Agents {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// AgentIDs returns all spec IDs in discovery order.
func (p *DeploymentPlan) AgentIDs() []string {
	ids := make([]string, len(p.Agents))
	for i, a := range p.Agents {
		ids[i] = a.ID
	}
	return ids
}

// ByStatus returns the specs currently in the given status, in discovery
// order.
func (p *DeploymentPlan) ByStatus(status AgentStatus) []*AgentSpec {
	var out []*AgentSpec
	for _, a := range p.Agents {
		if a.Status == status {
			out = append(out, a)
		}
	}
	return out
}

// StatusCounts tallies agents per status.
func (p *DeploymentPlan) StatusCounts() map[AgentStatus]int {
	counts := make(map[AgentStatus]int, len(p.Agents))
	for _, a := range p.Agents {
		counts[a.Status]++
	}
	return counts
}

// Snapshot returns a deep copy of the plan. Concurrent readers work on
// snapshots so in-flight status transitions never produce a torn read.
func (p *DeploymentPlan) Snapshot() *DeploymentPlan {
	c := *p
	c.Agents = make([]*AgentSpec, len(p.Agents))
	for i, a := range p.Agents {
		c.Agents[i] = a.Clone()
	}
	return &c
}

// Slug returns the deterministic identifier used in branch and workspace
// names, derived from the source description. Long descriptions are cut
// back to the last whole word under 40 characters.
func (p *DeploymentPlan) Slug() string {
	s := Slugify(p.SourceDescription)
	const max = 40
	if len(s) > max {
		s = s[:max]
		if i := strings.LastIndexByte(s, '-'); i > 0 {
			s = s[:i]
		}
		s = strings.TrimRight(s, "-")
	}
	if s == "" {
		return "plan"
	}
	return s
}
