// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package backing

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records the activity of the candidate backing subsystem.
type Metrics interface {
	OnStatementSigned()
	OnCandidateSeconded()
	OnCandidateBacked()
	OnCandidateRejected()
	OnSecondingDeclined()
	ObserveValidationDuration(time.Duration)
}

// NoopMetrics is used when metrics are disabled.
type NoopMetrics struct{}

func (NoopMetrics) OnStatementSigned()                      {}
func (NoopMetrics) OnCandidateSeconded()                    {}
func (NoopMetrics) OnCandidateBacked()                      {}
func (NoopMetrics) OnCandidateRejected()                    {}
func (NoopMetrics) OnSecondingDeclined()                    {}
func (NoopMetrics) ObserveValidationDuration(time.Duration) {}

// PrometheusMetrics exports the backing metrics to prometheus.
type PrometheusMetrics struct {
	signedStatements   prometheus.Counter
	secondedCandidates prometheus.Counter
	backedCandidates   prometheus.Counter
	rejectedCandidates prometheus.Counter
	declinedSeconding  prometheus.Counter
	validationDuration prometheus.Histogram
}

// NewPrometheusMetrics creates the backing metrics and registers them with the default
// prometheus registry.
func NewPrometheusMetrics() (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		signedStatements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parachain_candidate_backing",
			Name:      "signed_statements_total",
			Help:      "number of statements signed",
		}),
		secondedCandidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parachain_candidate_backing",
			Name:      "candidates_seconded_total",
			Help:      "number of candidates seconded",
		}),
		backedCandidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parachain_candidate_backing",
			Name:      "candidates_backed_total",
			Help:      "number of candidates backed",
		}),
		rejectedCandidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parachain_candidate_backing",
			Name:      "candidates_rejected_total",
			Help:      "number of candidates found invalid or rejected by prospective parachains",
		}),
		declinedSeconding: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parachain_candidate_backing",
			Name:      "seconding_declined_total",
			Help:      "number of candidates not seconded because no active leaf admits them",
		}),
		validationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "parachain_candidate_backing",
			Name:      "validation_duration_seconds",
			Help:      "time spent validating a candidate and storing its available data",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 12},
		}),
	}

	collectorsToRegister := map[string]prometheus.Collector{
		"signed statements":   m.signedStatements,
		"seconded candidates": m.secondedCandidates,
		"backed candidates":   m.backedCandidates,
		"rejected candidates": m.rejectedCandidates,
		"declined seconding":  m.declinedSeconding,
		"validation duration": m.validationDuration,
	}

	for collectorName, collectorToRegister := range collectorsToRegister {
		err := prometheus.Register(collectorToRegister)
		if err != nil && !errors.As(err, &prometheus.AlreadyRegisteredError{}) {
			return nil, fmt.Errorf("cannot register %s metric: %w", collectorName, err)
		}
	}

	return m, nil
}

func (m *PrometheusMetrics) OnStatementSigned() {
	m.signedStatements.Inc()
}

func (m *PrometheusMetrics) OnCandidateSeconded() {
	m.secondedCandidates.Inc()
}

func (m *PrometheusMetrics) OnCandidateBacked() {
	m.backedCandidates.Inc()
}

func (m *PrometheusMetrics) OnCandidateRejected() {
	m.rejectedCandidates.Inc()
}

func (m *PrometheusMetrics) OnSecondingDeclined() {
	m.declinedSeconding.Inc()
}

func (m *PrometheusMetrics) ObserveValidationDuration(d time.Duration) {
	m.validationDuration.Observe(d.Seconds())
}
