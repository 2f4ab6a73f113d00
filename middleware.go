package smworker

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/betogram/smworker/logging"
)

func (a *App) setupMiddleware() {
	e := a.Echo

	e.HTTPErrorHandler = a.httpErrorHandler

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	e.Use(a.requestScope)

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogUserAgent: true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			a.logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("user_agent", v.UserAgent),
				zap.String("request_id", v.RequestID),
			)
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logging.FromContext(c.Request().Context()).Error("panic recovered",
				zap.Error(err),
				zap.ByteString("stack", stack),
			)
			return err
		},
	}))

	e.Use(a.metricsMiddleware())

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/health"
		},
	}))

	e.Use(cacheControlMiddleware)

	e.Use(a.crawlerGate)
}

// requestScope attaches a logger carrying the request id and user agent to
// the request context, so nothing about a request lives outside of it.
func (a *App) requestScope(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		l := a.logger.With(
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			zap.String("user_agent", req.UserAgent()),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
		)
		c.SetRequest(req.WithContext(logging.WithContext(req.Context(), l)))
		return next(c)
	}
}

// crawlerGate hands every non-crawler request to the SPA bundle. Crawler
// requests continue to the meta page routes.
func (a *App) crawlerGate(next echo.HandlerFunc) echo.HandlerFunc {
	spa := a.spaHandler()
	return func(c echo.Context) error {
		bot, ok := a.classifier.Match(c.Request().UserAgent())
		if !ok {
			return spa(c)
		}
		a.metrics.observeCrawler(bot)

		req := c.Request()
		l := logging.FromContext(req.Context()).With(zap.String("bot", bot))
		c.SetRequest(req.WithContext(logging.WithContext(req.Context(), l)))
		return next(c)
	}
}

func cacheControlMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Response().Header()
		// Crawlers and browsers get different bodies for the same URL.
		h.Add(echo.HeaderVary, "User-Agent")
		if c.Request().URL.Path == "/health" {
			h.Set("Cache-Control", "no-store")
		} else {
			h.Set("Cache-Control", "no-cache")
		}
		return next(c)
	}
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
	}
	if code >= 500 {
		logging.FromContext(c.Request().Context()).Error("server error", zap.Error(err))
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
