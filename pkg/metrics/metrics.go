package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parleyhq/parley/internal/common/config"
)

// Metrics bundles the Prometheus instruments for the HTTP surface and the
// relay. A nil *Metrics is valid and records nothing, so the relay can run
// uninstrumented in tests.
type Metrics struct {
	registry  *prometheus.Registry
	namespace string

	httpReqCnt *prometheus.CounterVec
	httpDur    *prometheus.HistogramVec
	httpInfl   *prometheus.GaugeVec

	wsConns      prometheus.Gauge
	relayRooms   prometheus.Gauge
	eventsRouted *prometheus.CounterVec
	deliveryDrop prometheus.Counter
}

// New builds a registry with process/Go collectors plus the service's own
// instruments.
func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	if ns == "" {
		ns = "parley"
	}
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: buckets}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}, []string{"route"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	wsConns := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "ws_connections"})
	relayRooms := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "relay_rooms"})
	eventsRouted := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "relay_events_routed_total"}, []string{"kind"})
	deliveryDrop := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "relay_deliveries_dropped_total"})
	r.MustRegister(wsConns, relayRooms, eventsRouted, deliveryDrop)

	return &Metrics{
		registry:     r,
		namespace:    ns,
		httpReqCnt:   httpReqCnt,
		httpDur:      httpDur,
		httpInfl:     httpInfl,
		wsConns:      wsConns,
		relayRooms:   relayRooms,
		eventsRouted: eventsRouted,
		deliveryDrop: deliveryDrop,
	}
}

// RelayConnections records the current number of attached websocket connections.
func (m *Metrics) RelayConnections(n int) {
	if m == nil {
		return
	}
	m.wsConns.Set(float64(n))
}

// RelayRooms records the current number of live session rooms.
func (m *Metrics) RelayRooms(n int) {
	if m == nil {
		return
	}
	m.relayRooms.Set(float64(n))
}

// RelayEventRouted counts one routed inbound event.
func (m *Metrics) RelayEventRouted(kind string) {
	if m == nil {
		return
	}
	m.eventsRouted.WithLabelValues(kind).Inc()
}

// RelayDeliveryDropped counts one envelope dropped on a dead or saturated connection.
func (m *Metrics) RelayDeliveryDropped() {
	if m == nil {
		return
	}
	m.deliveryDrop.Inc()
}

// Middleware instruments gin request handling.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		// Deferred so a panicking handler cannot leak the inflight gauge;
		// the recovery middleware sits outside this one.
		defer func() {
			status := strconv.Itoa(c.Writer.Status())
			m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
			m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
			m.httpInfl.WithLabelValues(route).Dec()
		}()
		c.Next()
	}
}

// Handler serves the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
