package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cycles          *prometheus.CounterVec
	cycleDuration   *prometheus.HistogramVec
	entitiesScored  *prometheus.CounterVec
	lastScore       *prometheus.GaugeVec
	scoreDist       prometheus.Histogram
	retrains        *prometheus.CounterVec
	retrainDuration *prometheus.HistogramVec
	eventsPublished *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	latency         *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		cycles: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credpulse_scoring_cycles_total",
				Help: "Scoring cycles by outcome",
			},
			[]string{"outcome"},
		),
		cycleDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credpulse_scoring_cycle_duration_seconds",
				Help:    "Duration of scoring cycles in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		entitiesScored: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credpulse_entities_scored_total",
				Help: "Scored entities by symbol",
			},
			[]string{"symbol"},
		),
		lastScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "credpulse_last_score",
				Help: "Last credit score for a symbol",
			},
			[]string{"symbol"},
		),
		scoreDist: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "credpulse_score_distribution",
				Help:    "Distribution of produced credit scores",
				Buckets: prometheus.LinearBuckets(300, 50, 12),
			},
		),
		retrains: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credpulse_retrains_total",
				Help: "Retraining runs by outcome",
			},
			[]string{"outcome"},
		),
		retrainDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credpulse_retrain_duration_seconds",
				Help:    "Duration of retraining runs in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"outcome"},
		),
		eventsPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credpulse_events_published_total",
				Help: "Score events published by topic",
			},
			[]string{"topic"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordCycle records one scoring cycle outcome and its duration.
func (r *Recorder) RecordCycle(outcome string, seconds float64) {
	r.cycles.WithLabelValues(outcome).Inc()
	r.cycleDuration.WithLabelValues(outcome).Observe(seconds)
}

// RecordEntityScored records a produced score for a symbol.
func (r *Recorder) RecordEntityScored(symbol string, score float64) {
	r.entitiesScored.WithLabelValues(symbol).Inc()
	r.lastScore.WithLabelValues(symbol).Set(score)
	r.scoreDist.Observe(score)
}

// RecordRetrain records one retraining outcome and its duration.
func (r *Recorder) RecordRetrain(outcome string, seconds float64) {
	r.retrains.WithLabelValues(outcome).Inc()
	r.retrainDuration.WithLabelValues(outcome).Observe(seconds)
}

// RecordEventPublished records score events published to a topic.
func (r *Recorder) RecordEventPublished(topic string, count int) {
	r.eventsPublished.WithLabelValues(topic).Add(float64(count))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
