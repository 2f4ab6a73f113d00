package smworker

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/betogram/smworker/logging"
)

// spaHandler serves a matching file from the SPA bundle, falling back to the
// entry document for any path that is not a real file (client-side routing).
func (a *App) spaHandler() echo.HandlerFunc {
	serve := middleware.StaticWithConfig(middleware.StaticConfig{
		Root:  a.Config.StaticDir,
		Index: a.Config.IndexFile,
		HTML5: true,
	})(func(c echo.Context) error {
		return echo.ErrNotFound
	})

	return func(c echo.Context) error {
		logging.FromContext(c.Request().Context()).Info("serving spa bundle")
		return serve(c)
	}
}
