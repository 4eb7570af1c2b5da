package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the group lifecycle.
// Tracks approvals, deletions and introduction fan-out outcomes.
type Metrics struct {
	GroupsApproved      prometheus.Counter
	GroupsDeleted       prometheus.Counter
	TransitionsRejected prometheus.Counter
	IntroductionsSent   prometheus.Counter
	IntroductionsFailed prometheus.Counter
	ApproveDuration     prometheus.Histogram
}

// New creates a new Metrics instance with all group module metrics registered.
func New() *Metrics {
	return &Metrics{
		GroupsApproved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dadcircles_groups_approved_total",
			Help: "Total number of groups approved",
		}),
		GroupsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dadcircles_groups_deleted_total",
			Help: "Total number of groups deleted",
		}),
		TransitionsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dadcircles_group_transitions_rejected_total",
			Help: "Lifecycle changes refused because the group was in a terminal state",
		}),
		IntroductionsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dadcircles_group_introductions_sent_total",
			Help: "Members that received their group introduction",
		}),
		IntroductionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dadcircles_group_introductions_failed_total",
			Help: "Members whose group introduction could not be dispatched",
		}),
		ApproveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dadcircles_group_approve_duration_seconds",
			Help:    "Duration of Approve operations including introduction fan-out",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

// IncrementGroupsApproved records a successful approval.
func (m *Metrics) IncrementGroupsApproved() {
	m.GroupsApproved.Inc()
}

// IncrementGroupsDeleted records a successful deletion.
func (m *Metrics) IncrementGroupsDeleted() {
	m.GroupsDeleted.Inc()
}

// IncrementTransitionsRejected records a refused lifecycle change.
func (m *Metrics) IncrementTransitionsRejected() {
	m.TransitionsRejected.Inc()
}

// AddIntroductionOutcomes records the fan-out result of one approval.
func (m *Metrics) AddIntroductionOutcomes(sent, failed int) {
	m.IntroductionsSent.Add(float64(sent))
	m.IntroductionsFailed.Add(float64(failed))
}

// ObserveApprove records the duration of an Approve operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveApprove(start time.Time) {
	m.ApproveDuration.Observe(time.Since(start).Seconds())
}
