package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records HTTP traffic.
type Metrics struct {
	gatherer prometheus.Gatherer
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	size     *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewMetrics registers the HTTP collectors with reg. Handler serves
// whatever gatherer collects.
func NewMetrics(reg prometheus.Registerer, gatherer prometheus.Gatherer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "storefront"
	}
	auto := promauto.With(reg)
	labels := []string{"method", "path", "status"}

	return &Metrics{
		gatherer: gatherer,
		requests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served",
		}, labels),
		duration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, labels),
		size: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response body size",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 5),
		}, labels),
		inFlight: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests being served",
		}),
	}
}

// Middleware records one observation per request, labelled by route
// template rather than raw path.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		lv := []string{r.Method, routeLabel(r.URL.Path), strconv.Itoa(rec.status)}
		m.requests.WithLabelValues(lv...).Inc()
		m.duration.WithLabelValues(lv...).Observe(time.Since(start).Seconds())
		m.size.WithLabelValues(lv...).Observe(float64(rec.bytes))
	})
}

// Handler serves the gathered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// routeLabel collapses ids, emails and intent ids so label cardinality
// stays bounded. Unknown top-level paths share one label.
func routeLabel(path string) string {
	seg := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })

	switch {
	case len(seg) == 0:
		return "/"
	case seg[0] == "orders" && len(seg) == 2:
		return "/orders/:id"
	case seg[0] == "orders" && len(seg) == 3 && seg[1] == "customer":
		return "/orders/customer/:email"
	case seg[0] == "orders" && len(seg) == 3:
		return "/orders/:id/" + seg[2]
	case seg[0] == "payment" && len(seg) == 3 && seg[1] == "payment-status":
		return "/payment/payment-status/:intent_id"
	case seg[0] == "products" && len(seg) == 2:
		return "/products/:id"
	case seg[0] == "admin" && len(seg) == 4 && seg[1] == "products":
		return "/admin/products/:id/" + seg[3]
	}

	switch seg[0] {
	case "health", "metrics", "orders", "payment", "products", "admin":
		return path
	}
	return "/other"
}
