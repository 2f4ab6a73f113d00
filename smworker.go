// Package smworker sits in front of a single-page application and answers
// social-media link-preview crawlers with an empty HTML document carrying
// OpenGraph, Twitter Card and Schema.org meta tags. Every other client gets
// the compiled SPA bundle untouched.
package smworker

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/betogram/smworker/newsapi"
)

// NewsFetcher looks up a single news record on the backend API.
type NewsFetcher interface {
	GetIndividualNews(ctx context.Context, newsID string) (*newsapi.Response, error)
}

// App is the crawler shim. It wires together the classifier, the news
// fetcher, the meta page template and the SPA static handler.
type App struct {
	Config Config
	Echo   *echo.Echo

	classifier  *Classifier
	news        NewsFetcher
	logger      *zap.Logger
	registry    *prometheus.Registry
	metrics     *metrics
	metricsEcho *echo.Echo
	initOnce    sync.Once
}

// New creates an App with the given configuration. Zero config values fall
// back to the defaults documented on Config.
func New(cfg Config, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if a.registry == nil {
		a.registry = prometheus.NewRegistry()
	}
	if a.news == nil {
		a.news = newsapi.New(a.Config.APIURL, newsapi.WithTimeout(a.Config.FetchTimeout))
	}
	a.classifier = NewClassifier(a.Config.Crawler.UserAgents)
	a.metrics = newMetrics(a.registry)

	a.Echo.HideBanner = true
	a.Echo.HidePort = true
	return a
}

// Handler returns the fully wired HTTP handler.
func (a *App) Handler() http.Handler {
	a.init()
	return a.Echo
}

func (a *App) init() {
	a.initOnce.Do(func() {
		a.setupMiddleware()
		a.setupRoutes()
	})
}

func (a *App) setupRoutes() {
	e := a.Echo
	methods := []string{http.MethodGet, http.MethodHead}

	e.Match(methods, "/health", a.handleHealth)
	e.Match(methods, "/news/:newsID", a.handleNews)
	e.Match(methods, "/*", a.handleDefault)
}

// Start serves until ctx is cancelled or a listener fails, then shuts down
// gracefully within Config.ShutdownTimeout.
func (a *App) Start(ctx context.Context) error {
	a.init()

	index := filepath.Join(a.Config.StaticDir, a.Config.IndexFile)
	if _, err := os.Stat(index); err != nil {
		a.logger.Warn("spa entry document not found", zap.String("path", index), zap.Error(err))
	}

	errCh := make(chan error, 2)
	go func() {
		if err := a.Echo.Start(a.Config.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	a.logger.Info("crawler listening", zap.Int("port", a.Config.Port), zap.String("static_dir", a.Config.StaticDir))

	if a.Config.MetricsAddr != "" {
		a.metricsEcho = a.newMetricsServer()
		go func() {
			if err := a.metricsEcho.Start(a.Config.MetricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
		a.logger.Info("metrics listening", zap.String("addr", a.Config.MetricsAddr))
	}

	select {
	case <-ctx.Done():
		return a.shutdown()
	case err := <-errCh:
		return errors.Join(err, a.shutdown())
	}
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownTimeout)
	defer cancel()

	a.logger.Info("shutting down")
	err := a.Echo.Shutdown(ctx)
	if a.metricsEcho != nil {
		err = errors.Join(err, a.metricsEcho.Shutdown(ctx))
	}
	return err
}
