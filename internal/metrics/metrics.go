// Package metrics counts candidates, trials and per-stage rejections of a
// cracking session.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"odfbrute/internal/odfcrypt"
)

// Registry holds the metrics of one session. It uses its own prometheus
// registry so sessions never share counters.
type Registry struct {
	CandidatesTotal prometheus.Counter
	TrialsTotal     *prometheus.CounterVec
	RejectionsTotal *prometheus.CounterVec
	FoundTotal      prometheus.Counter

	registry *prometheus.Registry

	// resolved once so the hot path avoids label lookups
	trials     map[odfcrypt.Mode]prometheus.Counter
	rejections map[odfcrypt.Stage]prometheus.Counter
}

func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		CandidatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "odfbrute",
			Name:      "candidates_total",
			Help:      "Candidates fully evaluated",
		}),
		TrialsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "odfbrute",
			Name:      "trials_total",
			Help:      "Pipeline runs by derivation mode",
		}, []string{"mode"}),
		RejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "odfbrute",
			Name:      "rejections_total",
			Help:      "Pipeline runs rejected, by stage",
		}, []string{"stage"}),
		FoundTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "odfbrute",
			Name:      "found_total",
			Help:      "Passwords found",
		}),
		trials:     make(map[odfcrypt.Mode]prometheus.Counter),
		rejections: make(map[odfcrypt.Stage]prometheus.Counter),
	}

	r.registry.MustRegister(r.CandidatesTotal, r.TrialsTotal, r.RejectionsTotal, r.FoundTotal)

	for _, m := range odfcrypt.Modes {
		r.trials[m] = r.TrialsTotal.WithLabelValues(m.String())
	}
	for _, s := range odfcrypt.Stages {
		r.rejections[s] = r.RejectionsTotal.WithLabelValues(s.String())
	}
	return r
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// ObserveTrial records one pipeline run.
func (r *Registry) ObserveTrial(mode odfcrypt.Mode, stage odfcrypt.Stage) {
	if c, ok := r.trials[mode]; ok {
		c.Inc()
	}
	if stage == odfcrypt.StageDone {
		return
	}
	if c, ok := r.rejections[stage]; ok {
		c.Inc()
	}
}

// Rejections returns the rejection counters keyed by stage name.
func (r *Registry) Rejections() (map[string]float64, error) {
	families, err := r.Gatherer().Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, mf := range families {
		if mf.GetName() != "odfbrute_rejections_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "stage" {
					out[lp.GetValue()] = m.GetCounter().GetValue()
				}
			}
		}
	}
	return out, nil
}
