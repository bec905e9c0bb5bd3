package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// XPAwarded 按来源统计发放的经验值 (completion / challenge / sweep)
	XPAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbit_xp_awarded_total",
			Help: "XP awarded, by source",
		},
		[]string{"source"},
	)

	InstancesGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbit_instances_generated_total",
			Help: "Instances created by recurring patterns, by item type",
		},
		[]string{"item_type"},
	)

	ChallengesClaimed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbit_challenges_claimed_total",
			Help: "Daily challenge rewards claimed",
		},
	)

	RegenerationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbit_regeneration_failures_total",
			Help: "Pattern edits whose instance regeneration failed",
		},
	)

	RemindersSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbit_reminders_sent_total",
			Help: "Deadline reminders delivered, by channel",
		},
		[]string{"channel"},
	)
)

var registerOnce sync.Once

// Init 注册所有指标，可重复调用。未调用时计数器仍可安全使用，只是不会被导出
func Init() {
	registerOnce.Do(register)
}

func register() {
	prometheus.MustRegister(
		RequestCounter,
		RequestDuration,
		XPAwarded,
		InstancesGenerated,
		ChallengesClaimed,
		RegenerationFailures,
		RemindersSent,
	)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
