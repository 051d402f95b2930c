package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the ledger's Prometheus collectors. All methods are safe on a nil *Metrics,
// so tests and tools can run the ledger without a registry.
type Metrics struct {
	// Registry owns these collectors; /metrics serves it.
	Registry *prometheus.Registry

	submissions       *prometheus.CounterVec
	decisions         *prometheus.CounterVec
	payments          *prometheus.CounterVec
	paymentAmount     prometheus.Counter
	overpaymentAmount prometheus.Counter
	opDuration        *prometheus.HistogramVec
}

// New registers everything in a private registry, so calling it twice (tests) never panics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_submissions_total",
				Help: "Loan submissions by result (created, ineligible, error).",
			},
			[]string{"result"},
		),
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_decisions_total",
				Help: "Administrative decisions applied, by decision.",
			},
			[]string{"decision"},
		),
		payments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_payments_total",
				Help: "Payments recorded, by payment type.",
			},
			[]string{"type"},
		),
		paymentAmount: factory.NewCounter(prometheus.CounterOpts{
			Name: "loan_payment_amount_total",
			Help: "Sum of recorded payment amounts in currency units.",
		}),
		overpaymentAmount: factory.NewCounter(prometheus.CounterOpts{
			Name: "loan_overpayment_amount_total",
			Help: "Sum of accepted payment amounts above the outstanding balance.",
		}),
		opDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loan_operation_duration_seconds",
				Help:    "Duration of ledger operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (m *Metrics) IncSubmission(result string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(result).Inc()
}

func (m *Metrics) IncDecision(decision string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) ObservePayment(paymentType string, amount, excess int64) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(paymentType).Inc()
	m.paymentAmount.Add(float64(amount))
	if excess > 0 {
		m.overpaymentAmount.Add(float64(excess))
	}
}

// Track returns a func that records the elapsed time for operation when called.
func (m *Metrics) Track(operation string) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.opDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
