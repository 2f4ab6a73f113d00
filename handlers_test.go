package smworker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/betogram/smworker/newsapi"
)

const (
	crawlerUA = "facebookexternalhit/1.1 (+http://www.facebook.com/externalhit_uatext.php)"
	browserUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 Chrome/126.0 Safari/537.36"
	indexBody = "<!doctype html><html><body><div id=\"app\"></div></body></html>"
	assetBody = "console.log('app');"
)

type fakeNews struct {
	mu    sync.Mutex
	calls []string
	resp  *newsapi.Response
	err   error
}

func (f *fakeNews) GetIndividualNews(_ context.Context, newsID string) (*newsapi.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, newsID)
	f.mu.Unlock()
	return f.resp, f.err
}

func (f *fakeNews) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func writeBundle(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte(indexBody), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte(assetBody), 0o644))
	return dir
}

func newTestApp(t *testing.T, news NewsFetcher, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{
		WithStaticDir(writeBundle(t)),
		WithNewsFetcher(news),
		WithLogger(zap.NewNop()),
	}, opts...)
	return New(Config{}, opts...)
}

func do(a *App, method, path, ua string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthForCrawler(t *testing.T) {
	t.Parallel()

	news := &fakeNews{err: errors.New("upstream down")}
	a := newTestApp(t, news)

	rec := do(a, http.MethodGet, "/health", crawlerUA)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Body.String())
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Empty(t, news.Calls())
}

func TestNewsRendersFetchedMeta(t *testing.T) {
	t.Parallel()

	news := &fakeNews{resp: &newsapi.Response{NewsData: &newsapi.NewsData{
		ID: "42", Title: "T", SmallDecp: "D", CoverImage: "img.png",
	}}}
	a := newTestApp(t, news)

	rec := do(a, http.MethodGet, "/news/42", crawlerUA)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/html; charset=UTF-8", rec.Header().Get("Content-Type"))
	require.Equal(t, []string{"42"}, news.Calls())

	body := rec.Body.String()
	require.Equal(t, 3, strings.Count(body, `content="T"`))
	require.Equal(t, 4, strings.Count(body, `content="D"`))
	require.Equal(t, 3, strings.Count(body, `content="`+defaultImageBucketURL+`img.png"`))
	require.NotContains(t, body, indexBody)
}

func TestNewsWithoutIDFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	news := &fakeNews{resp: &newsapi.Response{NewsData: &newsapi.NewsData{Title: "orphan"}}}
	a := newTestApp(t, news)

	rec := do(a, http.MethodGet, "/news/5", crawlerUA)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "orphan")
	require.Contains(t, rec.Body.String(), defaultDescription)
}

func TestNewsUpstreamFailureServesDefaults(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	news := &fakeNews{err: errors.New("connection refused")}
	a := newTestApp(t, news, WithLogger(zap.New(core)))

	rec := do(a, http.MethodGet, "/news/123", crawlerUA)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.Equal(t, 3, strings.Count(body, `content="Betogram"`))
	require.Equal(t, 4, strings.Count(body, `content="`+defaultDescription+`"`))
	require.Equal(t, 3, strings.Count(body, `content="`+defaultImage+`"`))

	failures := logs.FilterMessage("news lookup failed, serving default meta").All()
	require.Len(t, failures, 1)
	fields := failures[0].ContextMap()
	require.Equal(t, crawlerUA, fields["user_agent"])
	require.Equal(t, "123", fields["news_id"])
	require.Equal(t, "facebookexternalhit", fields["bot"])
	require.NotEmpty(t, fields["request_id"])
	require.Equal(t, 1.0, testutil.ToFloat64(a.metrics.newsFetches.WithLabelValues("error")))
}

func TestNewsRealClientAgainstDeadUpstream(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	deadURL := srv.URL
	srv.Close()

	a := New(Config{APIURL: deadURL}, WithStaticDir(writeBundle(t)))
	rec := do(a, http.MethodGet, "/news/123", crawlerUA)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), defaultDescription)
}

func TestNewsRealClientAgainstUpstream(t *testing.T) {
	t.Parallel()

	var gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"news_data":{"id":77,"title":"Derby <night>","small_decp":"Odds & ends","cover_image":"derby.jpg"}}`))
	}))
	t.Cleanup(upstream.Close)

	a := New(Config{APIURL: upstream.URL + "/api", ImageBucketURL: "https://cdn.example/news/"},
		WithStaticDir(writeBundle(t)))
	rec := do(a, http.MethodGet, "/news/77", "Twitterbot/1.0")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "/api/get-individual-news/77", gotPath)

	body := rec.Body.String()
	require.Contains(t, body, `content="Derby &lt;night&gt;"`)
	require.Contains(t, body, `content="Odds &amp; ends"`)
	require.Contains(t, body, `content="https://cdn.example/news/derby.jpg"`)
	require.Equal(t, 1.0, testutil.ToFloat64(a.metrics.newsFetches.WithLabelValues("ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(a.metrics.crawlerRequests.WithLabelValues("twitterbot")))
}

func TestCatchAllServesDefaultsWithoutFetching(t *testing.T) {
	t.Parallel()

	news := &fakeNews{}
	a := newTestApp(t, news)

	for _, path := range []string{"/", "/profile/alice", "/news", "/assets/app.js"} {
		rec := do(a, http.MethodGet, path, "Slackbot-LinkExpanding 1.0")
		require.Equal(t, http.StatusOK, rec.Code, path)
		require.Contains(t, rec.Body.String(), `content="`+defaultImage+`"`, path)
	}
	require.Empty(t, news.Calls())
}

func TestNonCrawlerGetsSPA(t *testing.T) {
	t.Parallel()

	news := &fakeNews{resp: &newsapi.Response{NewsData: &newsapi.NewsData{ID: "1", Title: "T"}}}
	a := newTestApp(t, news)

	for _, ua := range []string{browserUA, ""} {
		for _, path := range []string{"/", "/news/123", "/health", "/some/client/route"} {
			rec := do(a, http.MethodGet, path, ua)
			require.Equal(t, http.StatusOK, rec.Code, path)
			require.Equal(t, indexBody, rec.Body.String(), path)
		}
	}

	rec := do(a, http.MethodGet, "/assets/app.js", browserUA)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, assetBody, rec.Body.String())

	require.Empty(t, news.Calls())
}

func TestResponsesVaryOnUserAgent(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, &fakeNews{})
	for _, ua := range []string{crawlerUA, browserUA} {
		rec := do(a, http.MethodGet, "/", ua)
		require.Contains(t, rec.Header().Values("Vary"), "User-Agent")
	}
}

func TestHeadRequestFromCrawler(t *testing.T) {
	t.Parallel()

	news := &fakeNews{resp: &newsapi.Response{NewsData: &newsapi.NewsData{ID: "1", Title: "T"}}}
	a := newTestApp(t, news)

	rec := do(a, http.MethodHead, "/news/1", crawlerUA)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Body.String())
	require.Equal(t, "text/html; charset=UTF-8", rec.Header().Get("Content-Type"))
}

func TestConcurrentFailuresLogTheirOwnUserAgent(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	a := newTestApp(t, &fakeNews{err: errors.New("timeout")}, WithLogger(zap.New(core)))
	h := a.Handler()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/news/%d", i), nil)
			req.Header.Set("User-Agent", fmt.Sprintf("Twitterbot/1.0 client-%d", i))
			h.ServeHTTP(httptest.NewRecorder(), req)
		}(i)
	}
	wg.Wait()

	entries := logs.FilterMessage("news lookup failed, serving default meta").All()
	require.Len(t, entries, n)
	for _, e := range entries {
		fields := e.ContextMap()
		require.Equal(t, fmt.Sprintf("Twitterbot/1.0 client-%s", fields["news_id"]), fields["user_agent"])
	}
}

func TestNewsIDIsUnescapedBeforeFetching(t *testing.T) {
	t.Parallel()

	news := &fakeNews{err: errors.New("not found")}
	a := newTestApp(t, news)

	rec := do(a, http.MethodGet, "/news/a%2Fb", crawlerUA)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"a/b"}, news.Calls())
}

func TestNewsEscapedIDReachesUpstreamOnce(t *testing.T) {
	t.Parallel()

	var gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{"news_data":null}`))
	}))
	t.Cleanup(upstream.Close)

	a := New(Config{APIURL: upstream.URL}, WithStaticDir(writeBundle(t)))
	rec := do(a, http.MethodGet, "/news/a%2Fb", crawlerUA)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "/get-individual-news/a%2Fb", gotPath)
}

func TestHealthAndSPAAreLoggedAtInfo(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	a := newTestApp(t, &fakeNews{}, WithLogger(zap.New(core)))

	do(a, http.MethodGet, "/health", crawlerUA)
	do(a, http.MethodGet, "/", browserUA)

	health := logs.FilterMessage("checking health").All()
	require.Len(t, health, 1)
	require.Equal(t, crawlerUA, health[0].ContextMap()["user_agent"])

	spa := logs.FilterMessage("serving spa bundle").All()
	require.Len(t, spa, 1)
	require.Equal(t, browserUA, spa[0].ContextMap()["user_agent"])
}
