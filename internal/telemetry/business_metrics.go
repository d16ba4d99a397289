// Package telemetry holds the Prometheus collectors for order, payment and
// webhook activity.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const subsystem = "business"

// BusinessMetrics groups the collectors recorded by services, the webhook
// handler and the sweeper.
type BusinessMetrics struct {
	OrdersCreated   *prometheus.CounterVec   // payment_method
	OrderValue      *prometheus.HistogramVec // payment_method
	OrderItemCount  *prometheus.HistogramVec // payment_method
	OrdersCancelled *prometheus.CounterVec   // reason
	OrderStatusSet  *prometheus.CounterVec   // status

	StockReservations *prometheus.CounterVec // result: reserved, insufficient
	StockRestored     prometheus.Counter

	PaymentIntentsCreated *prometheus.CounterVec // result: created, failed
	PaymentSucceeded      *prometheus.CounterVec // currency
	PaymentFailed         *prometheus.CounterVec // event_type
	RevenueCollected      *prometheus.CounterVec // currency

	RefundsIssued *prometheus.CounterVec // reason
	RefundAmount  *prometheus.CounterVec // currency

	WebhookReceived  *prometheus.CounterVec   // event_type
	WebhookProcessed *prometheus.CounterVec   // event_type, result
	WebhookFailed    *prometheus.CounterVec   // reason: signature, payload, internal
	WebhookLatency   *prometheus.HistogramVec // event_type

	JobsProcessed *prometheus.CounterVec   // job, result
	JobDuration   *prometheus.HistogramVec // job

	EventsPublished *prometheus.CounterVec // type, result

	StripeAPILatency *prometheus.HistogramVec // operation
}

// factory stamps namespace and subsystem onto every collector.
type factory struct {
	auto      promauto.Factory
	namespace string
}

func (f factory) counter(name, help string, labels ...string) *prometheus.CounterVec {
	return f.auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: f.namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (f factory) histogram(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return f.auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: f.namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
}

// NewBusinessMetrics creates the collectors and registers them with reg.
// A nil reg means the default registry.
func NewBusinessMetrics(reg prometheus.Registerer, namespace string) *BusinessMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "storefront"
	}
	f := factory{auto: promauto.With(reg), namespace: namespace}

	centBuckets := []float64{1000, 2500, 5000, 10000, 25000, 50000, 100000, 250000}

	return &BusinessMetrics{
		OrdersCreated:   f.counter("orders_created_total", "Orders placed", "payment_method"),
		OrderValue:      f.histogram("order_value_cents", "Order grand total in cents", centBuckets, "payment_method"),
		OrderItemCount:  f.histogram("order_item_count", "Units per order", []float64{1, 2, 3, 5, 10, 20, 50}, "payment_method"),
		OrdersCancelled: f.counter("orders_cancelled_total", "Orders cancelled", "reason"),
		OrderStatusSet:  f.counter("order_status_changes_total", "Order status transitions", "status"),

		StockReservations: f.counter("stock_reservations_total", "Stock reservation attempts", "result"),
		StockRestored: f.auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stock_restorations_total",
			Help:      "Orders whose stock went back to inventory",
		}),

		PaymentIntentsCreated: f.counter("payment_intents_created_total", "Payment intent creation attempts", "result"),
		PaymentSucceeded:      f.counter("payment_succeeded_total", "Successful card payments", "currency"),
		PaymentFailed:         f.counter("payment_failed_total", "Failed or canceled card payments", "event_type"),
		RevenueCollected:      f.counter("revenue_collected_cents", "Card revenue collected in cents, before refunds", "currency"),

		RefundsIssued: f.counter("refunds_issued_total", "Refunds issued", "reason"),
		RefundAmount:  f.counter("refund_amount_cents", "Refunded amount in cents", "currency"),

		WebhookReceived:  f.counter("webhooks_received_total", "Verified webhooks received", "event_type"),
		WebhookProcessed: f.counter("webhooks_processed_total", "Webhooks processed by outcome", "event_type", "result"),
		WebhookFailed:    f.counter("webhooks_failed_total", "Webhooks rejected or failed", "reason"),
		WebhookLatency: f.histogram("webhook_processing_duration_seconds", "Webhook processing time",
			[]float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5}, "event_type"),

		JobsProcessed: f.counter("jobs_processed_total", "Background job runs by outcome", "job", "result"),
		JobDuration:   f.histogram("job_duration_seconds", "Background job run time", prometheus.DefBuckets, "job"),

		EventsPublished: f.counter("order_events_published_total", "Order events handed to the message bus", "type", "result"),

		StripeAPILatency: f.histogram("stripe_api_duration_seconds", "Payment processor call time",
			[]float64{.1, .25, .5, 1, 2.5, 5, 10, 30}, "operation"),
	}
}

// Business is nil until InitBusinessMetrics runs; callers check before
// recording so packages work without metrics in tests and tools.
var Business *BusinessMetrics

// InitBusinessMetrics sets Business using the default registry.
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(nil, namespace)
	return Business
}
