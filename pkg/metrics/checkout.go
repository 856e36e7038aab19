package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutResultSuccess labels checkouts that committed an order.
const CheckoutResultSuccess = "success"

// Checkout records checkout outcomes and latency.
type Checkout struct {
	duration *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
	invoice  prometheus.Counter
}

// NewCheckout registers the checkout metrics on the provided registerer. A
// nil registerer yields a no-op recorder.
func NewCheckout(reg prometheus.Registerer) *Checkout {
	if reg == nil {
		return &Checkout{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "checkout_duration_seconds",
		Help:      "Duration of checkout attempts in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"result"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_total",
		Help:      "Checkout attempts by result code.",
	}, []string{"result"})
	invoice := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_invoice_collisions_total",
		Help:      "Invoice numbers regenerated after a uniqueness collision.",
	})
	reg.MustRegister(duration, outcomes, invoice)
	return &Checkout{duration: duration, outcomes: outcomes, invoice: invoice}
}

// Observe records one checkout attempt under result, typically an error code
// or CheckoutResultSuccess.
func (c *Checkout) Observe(result string, elapsed time.Duration) {
	if c == nil || c.outcomes == nil {
		return
	}
	label := normalizeLabel(result)
	c.outcomes.WithLabelValues(label).Inc()
	c.duration.WithLabelValues(label).Observe(elapsed.Seconds())
}

// IncInvoiceCollision counts a regenerated invoice number.
func (c *Checkout) IncInvoiceCollision() {
	if c == nil || c.invoice == nil {
		return
	}
	c.invoice.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
