// Package metrics provides the Prometheus registry for the race timing service.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry
	once     sync.Once
)

var (
	TimesAcceptedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "racetime",
		Name:      "times_accepted_total",
		Help:      "Checkpoint crossings accepted and stored",
	})
	TimesRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "racetime",
		Name:      "times_rejected_total",
		Help:      "Checkpoint crossings rejected, by reason",
	}, []string{"reason"})
	ResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "racetime",
		Name:      "results_total",
		Help:      "Result writes, by operation (created, patched, shifted)",
	}, []string{"op"})
	DependencyFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "racetime",
		Name:      "dependency_failures_total",
		Help:      "Failed best-effort dependent updates",
	}, []string{"op", "task"})
	CheckpointsOfflineTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "racetime",
		Name:      "checkpoints_marked_offline_total",
		Help:      "Checkpoints marked offline by the liveness sweep",
	})
	LiveClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "racetime",
		Name:      "live_clients",
		Help:      "Connected live dashboard clients",
	})
	RankingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "racetime",
		Name:      "ranking_duration_seconds",
		Help:      "Time spent inserting a result into the finish ranking",
		Buckets:   prometheus.DefBuckets,
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			TimesAcceptedTotal,
			TimesRejectedTotal,
			ResultsTotal,
			DependencyFailuresTotal,
			CheckpointsOfflineTotal,
			LiveClients,
			RankingDuration,
		)
	})
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(InitRegistry(), promhttp.HandlerOpts{})
}

func RecordTimeAccepted() {
	TimesAcceptedTotal.Inc()
}

func RecordTimeRejected(reason string) {
	TimesRejectedTotal.WithLabelValues(reason).Inc()
}

func RecordResult(op string) {
	ResultsTotal.WithLabelValues(op).Inc()
}

func RecordDependencyFailure(op, task string) {
	DependencyFailuresTotal.WithLabelValues(op, task).Inc()
}

func RecordCheckpointsOffline(n int) {
	CheckpointsOfflineTotal.Add(float64(n))
}

func SetLiveClients(n int) {
	LiveClients.Set(float64(n))
}

func ObserveRanking(seconds float64) {
	RankingDuration.Observe(seconds)
}
