package metrics

import "github.com/prometheus/client_golang/prometheus"

// CallMetrics exposes counters/histograms for the voice webhook flows.
type CallMetrics struct {
	webhookTotal   *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
	lookupTotal    *prometheus.CounterVec
	escalations    *prometheus.CounterVec
	emailTotal     *prometheus.CounterVec
}

func NewCallMetrics(reg prometheus.Registerer) *CallMetrics {
	m := &CallMetrics{
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderstatus",
			Subsystem: "voice",
			Name:      "webhook_total",
			Help:      "Total inbound voice webhooks",
		}, []string{"endpoint", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "orderstatus",
			Subsystem: "voice",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of voice webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		lookupTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderstatus",
			Subsystem: "voice",
			Name:      "order_lookup_total",
			Help:      "Order lookups by outcome",
		}, []string{"outcome"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderstatus",
			Subsystem: "voice",
			Name:      "escalation_total",
			Help:      "Transfers to the human operator by trigger",
		}, []string{"reason"}),
		emailTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderstatus",
			Subsystem: "voice",
			Name:      "voicemail_email_total",
			Help:      "Voicemail notification emails by status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.webhookTotal, m.webhookLatency, m.lookupTotal, m.escalations, m.emailTotal)
	return m
}

func (m *CallMetrics) ObserveWebhook(endpoint, status string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(endpoint, status).Inc()
}

func (m *CallMetrics) ObserveWebhookLatency(endpoint string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(endpoint).Observe(seconds)
}

// ObserveLookup records an order lookup outcome: found, not_found, overdue
// or upstream_error.
func (m *CallMetrics) ObserveLookup(outcome string) {
	if m == nil {
		return
	}
	m.lookupTotal.WithLabelValues(outcome).Inc()
}

func (m *CallMetrics) ObserveEscalation(reason string) {
	if m == nil {
		return
	}
	m.escalations.WithLabelValues(reason).Inc()
}

func (m *CallMetrics) ObserveEmail(status string) {
	if m == nil {
		return
	}
	m.emailTotal.WithLabelValues(status).Inc()
}
