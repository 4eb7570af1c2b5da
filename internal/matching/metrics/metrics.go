// Package metrics exposes Prometheus instrumentation for matching runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the matching collectors, registered on the default registry.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	GroupsCreated prometheus.Counter
	UsersMatched  prometheus.Counter
	UsersSkipped  prometheus.Counter
	BucketErrors  prometheus.Counter
	PoolSize      prometheus.Gauge
}

// New creates and registers the matching metrics.
func New() *Metrics {
	return &Metrics{
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dadcircles_matching_runs_total",
			Help: "Matching runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dadcircles_matching_run_duration_seconds",
			Help:    "Wall time of one matching run.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),
		GroupsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dadcircles_matching_groups_created_total",
			Help: "Groups created by matching runs.",
		}),
		UsersMatched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dadcircles_matching_users_matched_total",
			Help: "Users placed into groups.",
		}),
		UsersSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dadcircles_matching_users_skipped_total",
			Help: "Pool members excluded before bucketing.",
		}),
		BucketErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dadcircles_matching_bucket_errors_total",
			Help: "Buckets that reported a failure during a run.",
		}),
		PoolSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dadcircles_matching_pool_size",
			Help: "Eligible unmatched members at the last observation.",
		}),
	}
}

// IncrementRuns counts a run by outcome.
func (m *Metrics) IncrementRuns(outcome string) {
	m.RunsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRunDuration records the elapsed run time. Call with time.Now() from
// the start of the run.
func (m *Metrics) ObserveRunDuration(start time.Time) {
	m.RunDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) AddGroupsCreated(n int) {
	m.GroupsCreated.Add(float64(n))
}

func (m *Metrics) AddUsersMatched(n int) {
	m.UsersMatched.Add(float64(n))
}

func (m *Metrics) AddUsersSkipped(n int) {
	m.UsersSkipped.Add(float64(n))
}

func (m *Metrics) AddBucketErrors(n int) {
	m.BucketErrors.Add(float64(n))
}

func (m *Metrics) SetPoolSize(n int) {
	m.PoolSize.Set(float64(n))
}
