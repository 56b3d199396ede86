package telemetry

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// SourceOutcomes counts how each bibliographic source answered, exposed as
// bibresolve_source_outcomes_total{source,outcome} on /-/metrics.
type SourceOutcomes struct {
	counter *prometheus.CounterVec
}

// NewSourceOutcomes registers the counter with reg. Registering twice
// returns a recorder backed by the existing collector.
func NewSourceOutcomes(reg prometheus.Registerer) (*SourceOutcomes, error) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bibresolve",
		Name:      "source_outcomes_total",
		Help:      "Answers from bibliographic sources by outcome.",
	}, []string{"source", "outcome"})

	if err := reg.Register(counter); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, fmt.Errorf("registering source outcome counter: %w", err)
		}

		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("registering source outcome counter: %w", err)
		}

		counter = existing
	}

	return &SourceOutcomes{counter: counter}, nil
}

// RecordOutcome increments the counter for one source answer.
func (s *SourceOutcomes) RecordOutcome(source, outcome string) {
	s.counter.WithLabelValues(source, outcome).Inc()
}
