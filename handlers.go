package smworker

import (
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/betogram/smworker/logging"
	"github.com/betogram/smworker/newsapi"
	"github.com/betogram/smworker/views"
)

func (a *App) handleHealth(c echo.Context) error {
	logging.FromContext(c.Request().Context()).Info("checking health")
	return c.NoContent(http.StatusOK)
}

// handleNews renders the meta page for one news item. Upstream failures are
// logged and degrade to the default meta values; the crawler always gets a 200.
func (a *App) handleNews(c echo.Context) error {
	ctx := c.Request().Context()
	// Echo hands back the raw segment when the URL carries escapes; the
	// client escapes it again on the way out.
	newsID, err := url.PathUnescape(c.Param("newsID"))
	if err != nil {
		newsID = ""
	}

	var news *newsapi.NewsData
	if newsID != "" {
		start := time.Now()
		resp, err := a.news.GetIndividualNews(ctx, newsID)
		a.metrics.observeFetch(err, time.Since(start))
		switch {
		case err != nil:
			logging.FromContext(ctx).Warn("news lookup failed, serving default meta",
				zap.String("news_id", newsID),
				zap.Error(err),
			)
		case resp != nil:
			news = resp.NewsData
		}
	}
	return a.renderMeta(c, news)
}

func (a *App) handleDefault(c echo.Context) error {
	return a.renderMeta(c, nil)
}

func (a *App) renderMeta(c echo.Context, news *newsapi.NewsData) error {
	pageURL := CanonicalURL(a.Config.Meta.SiteURL, c.Request().URL)
	return Render(c, views.MetaPage(MetaFor(news, a.Config, pageURL)))
}
