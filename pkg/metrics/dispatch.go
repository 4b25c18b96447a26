package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics records dispatch engine activity.
type DispatchMetrics struct {
	notificationsSent *prometheus.CounterVec
	messageEdits      *prometheus.CounterVec
	gatewayFailures   *prometheus.CounterVec
	assignments       prometheus.Counter
	conflicts         prometheus.Counter
	refusals          prometheus.Counter
	roundTimeouts     prometheus.Counter
}

// NewDispatchMetrics registers the dispatch metrics on the provided registerer.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	notificationsSent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_notifications_sent_total",
		Help: "Order offers sent to drivers, by result.",
	}, []string{"result"})
	messageEdits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_message_edits_total",
		Help: "In-place chat message edits, by result.",
	}, []string{"result"})
	gatewayFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_gateway_failures_total",
		Help: "Messaging gateway call failures, by operation.",
	}, []string{"op"})
	assignments := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_assignments_total",
		Help: "Orders successfully assigned to a driver.",
	})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_assignment_conflicts_total",
		Help: "Accept attempts that lost the assignment race.",
	})
	refusals := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_refusals_total",
		Help: "Explicit driver refusals.",
	})
	roundTimeouts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_round_timeouts_total",
		Help: "Orders whose dispatch round expired without an acceptance.",
	})
	reg.MustRegister(notificationsSent, messageEdits, gatewayFailures, assignments, conflicts, refusals, roundTimeouts)
	return &DispatchMetrics{
		notificationsSent: notificationsSent,
		messageEdits:      messageEdits,
		gatewayFailures:   gatewayFailures,
		assignments:       assignments,
		conflicts:         conflicts,
		refusals:          refusals,
		roundTimeouts:     roundTimeouts,
	}
}

// IncNotificationSent counts one offer send with the given result label.
func (d *DispatchMetrics) IncNotificationSent(result string) {
	if d == nil || d.notificationsSent == nil {
		return
	}
	d.notificationsSent.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncMessageEdit counts one in-place edit with the given result label.
func (d *DispatchMetrics) IncMessageEdit(result string) {
	if d == nil || d.messageEdits == nil {
		return
	}
	d.messageEdits.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncGatewayFailure counts a failed gateway call for the given operation.
func (d *DispatchMetrics) IncGatewayFailure(op string) {
	if d == nil || d.gatewayFailures == nil {
		return
	}
	d.gatewayFailures.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncAssignment counts a successful assignment.
func (d *DispatchMetrics) IncAssignment() {
	if d == nil || d.assignments == nil {
		return
	}
	d.assignments.Inc()
}

// IncConflict counts a lost assignment race.
func (d *DispatchMetrics) IncConflict() {
	if d == nil || d.conflicts == nil {
		return
	}
	d.conflicts.Inc()
}

// IncRefusal counts an explicit refusal.
func (d *DispatchMetrics) IncRefusal() {
	if d == nil || d.refusals == nil {
		return
	}
	d.refusals.Inc()
}

// IncRoundTimeout counts a dispatch round that expired unaccepted.
func (d *DispatchMetrics) IncRoundTimeout() {
	if d == nil || d.roundTimeouts == nil {
		return
	}
	d.roundTimeouts.Inc()
}
