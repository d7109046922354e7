package billing

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts webhook outcomes and ledger transitions.
type Metrics struct {
	webhookEvents   *prometheus.CounterVec
	invoicesEmitted prometheus.Counter
	loginTokens     *prometheus.CounterVec
	sweepResyncs    *prometheus.CounterVec
}

// NewMetrics registers the billing collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agencydesk",
			Subsystem: "billing",
			Name:      "webhook_events_total",
			Help:      "Processor webhook deliveries by event type and outcome.",
		}, []string{"type", "outcome"}),
		invoicesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agencydesk",
			Subsystem: "billing",
			Name:      "invoices_emitted_total",
			Help:      "Invoices created after a payment request settled.",
		}),
		loginTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agencydesk",
			Subsystem: "billing",
			Name:      "login_tokens_total",
			Help:      "One-time login tokens by lifecycle step.",
		}, []string{"result"}),
		sweepResyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agencydesk",
			Subsystem: "billing",
			Name:      "sweep_resyncs_total",
			Help:      "Stale subscriptions re-read from the processor by the sweeper.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.webhookEvents, m.invoicesEmitted, m.loginTokens, m.sweepResyncs)
	return m
}

func (m *Metrics) webhook(eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) invoice() {
	if m == nil {
		return
	}
	m.invoicesEmitted.Inc()
}

func (m *Metrics) loginToken(result string) {
	if m == nil {
		return
	}
	m.loginTokens.WithLabelValues(result).Inc()
}

func (m *Metrics) resync(result string) {
	if m == nil {
		return
	}
	m.sweepResyncs.WithLabelValues(result).Inc()
}
