package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nexuscrm/formengine/internal/domain/ports"
)

const namespace = "formengine"

// Recorder exports engine counters to Prometheus
type Recorder struct {
	registry    *prometheus.Registry
	lookups     *prometheus.CounterVec
	saves       *prometheus.CounterVec
	submissions *prometheus.CounterVec
	stale       prometheus.Counter
}

var _ ports.MetricsRecorder = (*Recorder)(nil)

// NewRecorder registers the engine counters plus Go runtime and process collectors on a fresh registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Candidate lookups by lookup type and result.",
		}, []string{"type", "result"}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_saves_total",
			Help:      "Field registry batch saves by result.",
		}, []string{"result"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Form submissions by entity type and result.",
		}, []string{"entity", "result"}),
		stale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "Lookup responses discarded because the dependency value changed meanwhile.",
		}),
	}
	r.registry.MustRegister(
		r.lookups, r.saves, r.submissions, r.stale,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) LookupCompleted(lookupType, result string) {
	r.lookups.WithLabelValues(lookupType, result).Inc()
}

func (r *Recorder) RegistrySaveCompleted(result string) {
	r.saves.WithLabelValues(result).Inc()
}

func (r *Recorder) SubmissionCompleted(entityType, result string) {
	r.submissions.WithLabelValues(entityType, result).Inc()
}

func (r *Recorder) StaleResponseDiscarded() {
	r.stale.Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
