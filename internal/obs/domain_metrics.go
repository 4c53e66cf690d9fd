package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// GuestMigrationItems counts guest list entries migrated into accounts by outcome.
	GuestMigrationItems *prometheus.CounterVec
	// PaymentVerificationTotal counts payment signature verification outcomes.
	PaymentVerificationTotal *prometheus.CounterVec
	// CheckoutTotal counts checkout (gateway order creation) outcomes.
	CheckoutTotal *prometheus.CounterVec
	// InvoiceRenderTotal counts rendered invoices.
	InvoiceRenderTotal prometheus.Counter
	// ListStreamSubscribers tracks connected list change stream clients.
	ListStreamSubscribers prometheus.Gauge
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		GuestMigrationItems = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guest_migration_items_total",
			Help:      "Guest list entries processed during account migration.",
		}, []string{"list", "result"})
		PaymentVerificationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_verification_total",
			Help:      "Payment signature verification outcomes.",
		}, []string{"result"})
		CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"result"})
		InvoiceRenderTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_render_total",
			Help:      "Number of invoices rendered.",
		})
		ListStreamSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "list_stream_subscribers",
			Help:      "Connected cart and wishlist change stream clients.",
		})

		GuestMigrationItems = register(reg, GuestMigrationItems)
		PaymentVerificationTotal = register(reg, PaymentVerificationTotal)
		CheckoutTotal = register(reg, CheckoutTotal)
		InvoiceRenderTotal = register(reg, InvoiceRenderTotal)
		ListStreamSubscribers = register(reg, ListStreamSubscribers)
	})
}

// IncGuestMigration records one migrated guest entry. Safe before registration.
func IncGuestMigration(list, result string) {
	if GuestMigrationItems != nil {
		GuestMigrationItems.WithLabelValues(list, result).Inc()
	}
}

// IncPaymentVerification records a verification outcome.
func IncPaymentVerification(result string) {
	if PaymentVerificationTotal != nil {
		PaymentVerificationTotal.WithLabelValues(result).Inc()
	}
}

// IncCheckout records a checkout outcome.
func IncCheckout(result string) {
	if CheckoutTotal != nil {
		CheckoutTotal.WithLabelValues(result).Inc()
	}
}

// IncInvoiceRender records a rendered invoice.
func IncInvoiceRender() {
	if InvoiceRenderTotal != nil {
		InvoiceRenderTotal.Inc()
	}
}

// AddStreamSubscribers adjusts the connected stream gauge by delta.
func AddStreamSubscribers(delta float64) {
	if ListStreamSubscribers != nil {
		ListStreamSubscribers.Add(delta)
	}
}
