package smworker

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsSubsystem = "smworker"

type metrics struct {
	crawlerRequests   *prometheus.CounterVec
	newsFetches       *prometheus.CounterVec
	newsFetchDuration prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		crawlerRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricsSubsystem + "_crawler_requests_total",
				Help: "Requests from link-preview crawlers, labeled by matched bot.",
			},
			[]string{"bot"},
		),
		newsFetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricsSubsystem + "_news_fetch_total",
				Help: "Upstream news lookups, labeled by result.",
			},
			[]string{"result"},
		),
		newsFetchDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricsSubsystem + "_news_fetch_duration_seconds",
				Help:    "Latency of upstream news lookups.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		),
	}
}

func (m *metrics) observeCrawler(bot string) {
	m.crawlerRequests.WithLabelValues(bot).Inc()
}

func (m *metrics) observeFetch(err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.newsFetches.WithLabelValues(result).Inc()
	m.newsFetchDuration.Observe(d.Seconds())
}

func (a *App) metricsMiddleware() echo.MiddlewareFunc {
	return echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  metricsSubsystem,
		Registerer: a.registry,
	})
}

// newMetricsServer builds the Echo instance serving /metrics on MetricsAddr.
func (a *App) newMetricsServer() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: a.registry,
	}))
	return e
}
