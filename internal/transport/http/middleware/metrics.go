package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetricsOptions configures the HTTP metrics middleware.
type HTTPMetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
	Subsystem  string
	Buckets    []float64
}

// HTTPMetrics holds the request collectors. Rejections counts the statuses a
// dashboard watches for credential stuffing and OTP abuse.
type HTTPMetrics struct {
	Requests   *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	InFlight   prometheus.Gauge
	Rejections *prometheus.CounterVec
}

// rejectionStatuses map to the reason label on Rejections.
var rejectionStatuses = map[int]string{
	http.StatusUnauthorized:    "unauthorized",
	http.StatusConflict:        "conflict",
	http.StatusGone:            "expired",
	http.StatusLocked:          "locked",
	http.StatusTooManyRequests: "throttled",
}

func NewHTTPMetrics(opts HTTPMetricsOptions) (*HTTPMetrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "goshopper"
	}
	subsystem := opts.Subsystem
	if subsystem == "" {
		subsystem = "http"
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	m := &HTTPMetrics{}
	var err error
	if m.Requests, err = register(reg, "requests", prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})); err != nil {
		return nil, err
	}
	if m.Duration, err = register(reg, "duration", prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method, route and status code.",
		Buckets:   buckets,
	}, []string{"method", "route", "status"})); err != nil {
		return nil, err
	}
	if m.InFlight, err = register(reg, "in-flight", prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "in_flight_requests",
		Help:      "HTTP requests currently being served, open status streams included.",
	})); err != nil {
		return nil, err
	}
	if m.Rejections, err = register(reg, "rejections", prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "rejections_total",
		Help:      "Requests refused for credentials, conflicts, expiry or throttling, by route and reason.",
	}, []string{"route", "reason"})); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, name string, collector C) (C, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}
	var already prometheus.AlreadyRegisteredError
	if !errors.As(err, &already) {
		return collector, fmt.Errorf("register http %s collector: %w", name, err)
	}
	existing, ok := already.ExistingCollector.(C)
	if !ok {
		return collector, fmt.Errorf("existing http %s collector has unexpected type %T", name, already.ExistingCollector)
	}
	return existing, nil
}

// Handler records the metrics. Unmatched paths share one route label.
func (m *HTTPMetrics) Handler() gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		start := time.Now()
		m.InFlight.Inc()
		defer m.InFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		code := c.Writer.Status()
		status := strconv.Itoa(code)

		m.Requests.WithLabelValues(c.Request.Method, route, status).Inc()
		m.Duration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		if reason, ok := rejectionStatuses[code]; ok {
			m.Rejections.WithLabelValues(route, reason).Inc()
		}
	}
}
