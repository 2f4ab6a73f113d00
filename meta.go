package smworker

import (
	"net/url"
	"strings"

	"github.com/betogram/smworker/newsapi"
	"github.com/betogram/smworker/views"
)

// MetaFor resolves the values rendered into the crawler page. A record with an
// id supplies title, description and image together; otherwise all three come
// from the configured defaults. Missing fields of a valid record stay empty.
func MetaFor(news *newsapi.NewsData, cfg Config, pageURL string) views.PageMeta {
	m := views.PageMeta{
		SiteName:      cfg.Meta.SiteName,
		URL:           pageURL,
		FacebookAppID: cfg.Meta.FacebookAppID,
	}
	if !news.Valid() {
		m.Title = cfg.Meta.Title
		m.Description = cfg.Meta.Description
		m.Image = cfg.Meta.Image
		return m
	}
	m.Title = news.Title
	m.Description = news.SmallDecp
	if news.CoverImage != "" {
		m.Image = cfg.ImageBucketURL + news.CoverImage
	}
	return m
}

// CanonicalURL joins the configured site origin with a request path and query.
// It returns "" when no origin is configured.
func CanonicalURL(siteURL string, u *url.URL) string {
	if siteURL == "" || u == nil {
		return ""
	}
	base, err := url.Parse(strings.TrimSuffix(siteURL, "/"))
	if err != nil {
		return ""
	}
	base.Path += u.Path
	base.RawQuery = u.RawQuery
	return base.String()
}
