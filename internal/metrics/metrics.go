package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// Metrics groups the storefront collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	cartAnomalies  prometheus.Counter
	notifications  *prometheus.CounterVec
	checkouts      *prometheus.CounterVec
	orderStatus    *prometheus.CounterVec
	catalogCache   *prometheus.CounterVec
	wishlistClears *prometheus.CounterVec
}

// New registers the collectors on the provided registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		cartAnomalies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_load_anomalies_total",
			Help:      "Persisted carts that could not be decoded and were treated as empty.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_notifications_total",
			Help:      "Change notifications published per adapter and result.",
		}, []string{"adapter", "topic", "result"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_submissions_total",
			Help:      "Checkout submissions by outcome.",
		}, []string{"result"}),
		orderStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_changes_total",
			Help:      "Order status changes by target status.",
		}, []string{"status"}),
		catalogCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_lookups_total",
			Help:      "Catalog cache lookups by result.",
		}, []string{"result"}),
		wishlistClears: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wishlist_clear_entries_total",
			Help:      "Wishlist entries processed by clear, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.cartAnomalies,
		m.notifications,
		m.checkouts,
		m.orderStatus,
		m.catalogCache,
		m.wishlistClears,
	)
	return m
}

// ObserveHTTP records one handled request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil || m.httpRequests == nil {
		return
	}
	route = normalizeLabel(route)
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) IncCartAnomaly() {
	if m == nil || m.cartAnomalies == nil {
		return
	}
	m.cartAnomalies.Inc()
}

func (m *Metrics) IncNotification(adapter, topic string, err error) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(normalizeLabel(adapter), normalizeLabel(topic), result(err)).Inc()
}

func (m *Metrics) IncCheckout(outcome string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *Metrics) IncOrderStatus(status string) {
	if m == nil || m.orderStatus == nil {
		return
	}
	m.orderStatus.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *Metrics) IncCatalogCache(hit bool) {
	if m == nil || m.catalogCache == nil {
		return
	}
	label := "miss"
	if hit {
		label = "hit"
	}
	m.catalogCache.WithLabelValues(label).Inc()
}

func (m *Metrics) AddWishlistClear(removed, failed int) {
	if m == nil || m.wishlistClears == nil {
		return
	}
	m.wishlistClears.WithLabelValues("removed").Add(float64(removed))
	m.wishlistClears.WithLabelValues("failed").Add(float64(failed))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
