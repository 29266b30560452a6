// Package metrics exposes Prometheus collectors for deployment
// activity. Collectors are fed from the event stream, so producers
// never import this package.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fieldmarshal/brigade/internal/events"
)

const namespace = "brigade"

// Metrics holds the deployment collectors. Methods are nil-safe so
// callers can carry an optional *Metrics without guarding every call.
type Metrics struct {
	spawns        prometheus.Counter
	validations   *prometheus.CounterVec
	merges        *prometheus.CounterVec
	conflictFiles prometheus.Counter
	blocked       prometheus.Counter
	mergeDuration prometheus.Histogram
}

// MustNew constructs the collectors and registers them with reg. A nil
// reg uses the default registry. Collectors already registered from an
// earlier call are reused so repeated construction cannot panic on
// duplicates.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	spawns := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "workspace_spawns_total",
		Help:      "Workspaces spawned for agent specs.",
	})
	validations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "validations_total",
		Help:      "Validation runs by result.",
	}, []string{"result"})
	merges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "merges_total",
		Help:      "Integration merge attempts by result.",
	}, []string{"result"})
	conflictFiles := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "conflict_files_total",
		Help:      "Files that conflicted during integration merges.",
	})
	blocked := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "agents_blocked_total",
		Help:      "Agents blocked because a dependency never integrated.",
	})
	mergeDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "merge_duration_seconds",
		Help:      "Wall-clock duration of integration merges.",
		Buckets:   prometheus.DefBuckets,
	})

	m := &Metrics{
		spawns:        spawns,
		validations:   validations,
		merges:        merges,
		conflictFiles: conflictFiles,
		blocked:       blocked,
		mergeDuration: mergeDuration,
	}

	collectors := []prometheus.Collector{spawns, validations, merges, conflictFiles, blocked, mergeDuration}
	for i, collector := range collectors {
		err := reg.Register(collector)
		if err == nil {
			continue
		}
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			panic(err)
		}
		switch i {
		case 0:
			m.spawns = already.ExistingCollector.(prometheus.Counter)
		case 1:
			m.validations = already.ExistingCollector.(*prometheus.CounterVec)
		case 2:
			m.merges = already.ExistingCollector.(*prometheus.CounterVec)
		case 3:
			m.conflictFiles = already.ExistingCollector.(prometheus.Counter)
		case 4:
			m.blocked = already.ExistingCollector.(prometheus.Counter)
		case 5:
			m.mergeDuration = already.ExistingCollector.(prometheus.Histogram)
		}
	}

	return m
}

// NewRegistry returns a fresh registry with a Metrics instance bound to
// it, for servers and tests that need isolation from the default
// registry.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	return reg, MustNew(reg)
}

// Handler serves the registry in Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Listen observes every event on ch until it closes. Run it in its own
// goroutine next to the other stream consumers.
func (m *Metrics) Listen(ch <-chan events.Event) {
	for event := range ch {
		m.Observe(event)
	}
}

// Observe records one event against the matching collectors. Events
// that carry no metric are ignored.
func (m *Metrics) Observe(event events.Event) {
	if m == nil {
		return
	}
	switch event.Type {
	case events.TypeAgentSpawned:
		m.spawns.Inc()
	case events.TypeAgentValidated:
		m.validations.WithLabelValues("passed").Inc()
	case events.TypeAgentFailed:
		m.validations.WithLabelValues("failed").Inc()
	case events.TypeAgentIntegrated:
		m.merges.WithLabelValues("integrated").Inc()
		m.observeMergeDuration(event.Duration)
	case events.TypeConflictDetected:
		m.merges.WithLabelValues("conflicted").Inc()
		m.conflictFiles.Add(float64(len(event.Files)))
		m.observeMergeDuration(event.Duration)
	case events.TypeAgentBlocked:
		m.blocked.Inc()
	}
}

func (m *Metrics) observeMergeDuration(d time.Duration) {
	if d > 0 {
		m.mergeDuration.Observe(d.Seconds())
	}
}
