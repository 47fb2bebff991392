// Package metrics provides Prometheus metrics instrumentation for the predictor.
//
// Metrics exposed:
//   - bikecast_encode_seconds: Histogram of feature encoding duration
//   - bikecast_predict_seconds: Histogram of scaler plus model duration
//   - bikecast_predictions_total: Counter of served predictions
//   - bikecast_cache_hits_total: Counter of predictions served from cache
//   - bikecast_last_prediction: Gauge of the most recent predicted bike count
//   - bikecast_errors_total: Counter of errors by component and reason
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the predictor.
type Metrics struct {
	EncodeSeconds    prometheus.Histogram
	PredictSeconds   prometheus.Histogram
	PredictionsTotal prometheus.Counter
	CacheHitsTotal   prometheus.Counter
	LastPrediction   prometheus.Gauge
	ErrorsTotal      *prometheus.CounterVec
}

// New creates the metrics and registers them with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer, model string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		EncodeSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bikecast_encode_seconds",
			Help:    "Time spent encoding an input record into a feature vector",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
		}),

		PredictSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "bikecast_predict_seconds",
			Help: "Time spent scaling and running the model",
			ConstLabels: prometheus.Labels{
				"model": model,
			},
			Buckets: prometheus.DefBuckets,
		}),

		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "bikecast_predictions_total",
			Help: "Total number of predictions served",
		}),

		CacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "bikecast_cache_hits_total",
			Help: "Total number of predictions served from the cache",
		}),

		LastPrediction: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bikecast_last_prediction",
			Help: "Most recent predicted number of rented bikes",
		}),

		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bikecast_errors_total",
			Help: "Total number of errors by component and reason",
		}, []string{"component", "reason"}),
	}
}

// RecordEncode records the time spent encoding.
func (m *Metrics) RecordEncode(seconds float64) {
	m.EncodeSeconds.Observe(seconds)
}

// RecordPredict records the time spent predicting.
func (m *Metrics) RecordPredict(seconds float64) {
	m.PredictSeconds.Observe(seconds)
}

// RecordPrediction counts a served prediction and publishes its value.
func (m *Metrics) RecordPrediction(count int, cached bool) {
	m.PredictionsTotal.Inc()
	if cached {
		m.CacheHitsTotal.Inc()
	}
	m.LastPrediction.Set(float64(count))
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}
