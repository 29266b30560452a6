package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fieldmarshal/brigade/pkg/models"
)

// statusValues keeps the exported label set stable across updates so
// series never appear and vanish between scrapes.
var statusValues = []models.AgentStatus{
	models.StatusPending,
	models.StatusSpawned,
	models.StatusInProgress,
	models.StatusValidated,
	models.StatusIntegrated,
	models.StatusFailed,
	models.StatusBlocked,
}

// StatusGauges mirrors the latest status report for the status server's
// /metrics endpoint. Event counters are useless there because spawns,
// validations, and merges happen in other processes; these gauges are
// fed from the watch stream instead.
type StatusGauges struct {
	overall prometheus.Gauge
	agents  *prometheus.GaugeVec
}

// NewStatusGauges constructs and registers the gauges. Like MustNew it
// tolerates collectors that are already registered.
func NewStatusGauges(reg prometheus.Registerer) *StatusGauges {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	overall := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "plan_overall_percent",
		Help:      "Mean completion percentage across the plan's agents.",
	})
	agents := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "plan_agents",
		Help:      "Agents in the plan by current status.",
	}, []string{"status"})

	if err := reg.Register(overall); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			panic(err)
		}
		overall = already.ExistingCollector.(prometheus.Gauge)
	}
	if err := reg.Register(agents); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			panic(err)
		}
		agents = already.ExistingCollector.(*prometheus.GaugeVec)
	}

	return &StatusGauges{overall: overall, agents: agents}
}

// Update replaces the exported values with one report's numbers.
func (g *StatusGauges) Update(report *models.StatusReport) {
	if g == nil || report == nil {
		return
	}
	g.overall.Set(report.Overall)

	counts := make(map[models.AgentStatus]int, len(report.Agents))
	for _, a := range report.Agents {
		counts[a.Status]++
	}
	for _, status := range statusValues {
		g.agents.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
