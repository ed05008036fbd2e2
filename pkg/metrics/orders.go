package metrics

import "github.com/prometheus/client_golang/prometheus"

// OrderMetrics tracks placement and payment reconciliation.
type OrderMetrics struct {
	placed             prometheus.Counter
	placementFailures  *prometheus.CounterVec
	paymentsReconciled *prometheus.CounterVec
	webhookEvents      *prometheus.CounterVec
}

// NewOrderMetrics registers the order metrics on reg. A nil registerer yields
// a no-op recorder so services can be built without metrics in tests.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	m := &OrderMetrics{
		placed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders committed by the placement workflow.",
		}),
		placementFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_placement_failures_total",
			Help:      "Order placements rolled back, by error code.",
		}, []string{"reason"}),
		paymentsReconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_reconciled_total",
			Help:      "Paid-latch attempts by settlement source and outcome.",
		}, []string{"source", "outcome"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhook_events_total",
			Help:      "Verified gateway webhook events by type and result.",
		}, []string{"type", "result"}),
	}
	reg.MustRegister(m.placed, m.placementFailures, m.paymentsReconciled, m.webhookEvents)
	return m
}

func (m *OrderMetrics) IncPlaced() {
	if m == nil || m.placed == nil {
		return
	}
	m.placed.Inc()
}

func (m *OrderMetrics) IncPlacementFailure(reason string) {
	if m == nil || m.placementFailures == nil {
		return
	}
	m.placementFailures.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncPaymentReconciled records one markOrderPaid call; outcome is "paid" or "noop".
func (m *OrderMetrics) IncPaymentReconciled(source, outcome string) {
	if m == nil || m.paymentsReconciled == nil {
		return
	}
	m.paymentsReconciled.WithLabelValues(normalizeLabel(source), normalizeLabel(outcome)).Inc()
}

func (m *OrderMetrics) IncWebhookEvent(eventType, result string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}
