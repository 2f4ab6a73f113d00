package smworker

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds all configuration for the crawler shim.
type Config struct {
	Port            int           `mapstructure:"port"`             // SM_WORKER_PORT (default 5000)
	StaticDir       string        `mapstructure:"static_dir"`       // compiled SPA bundle (default "dist")
	IndexFile       string        `mapstructure:"index_file"`       // SPA entry document (default "index.html")
	APIURL          string        `mapstructure:"api_url"`          // backend news API base URL
	ImageBucketURL  string        `mapstructure:"image_bucket_url"` // prefix for news cover images
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`    // upstream request timeout (default 10s)
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"` // graceful shutdown budget (default 10s)
	MetricsAddr     string        `mapstructure:"metrics_addr"`     // separate /metrics listener, empty disables

	Meta    MetaConfig    `mapstructure:"meta"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Log     LogConfig     `mapstructure:"log"`
}

// MetaConfig holds the site-wide fallback values used when no news data is available.
type MetaConfig struct {
	SiteName      string `mapstructure:"site_name"`       // <title> text
	Title         string `mapstructure:"title"`           // default og/twitter title
	Description   string `mapstructure:"description"`     // default description
	Image         string `mapstructure:"image"`           // default image URL
	FacebookAppID string `mapstructure:"facebook_app_id"` // fb:app_id
	SiteURL       string `mapstructure:"site_url"`        // canonical origin for og:url, empty leaves it blank
}

// CrawlerConfig lists the user agent substrings treated as link-preview bots.
type CrawlerConfig struct {
	UserAgents []string `mapstructure:"user_agents"`
}

// LogConfig toggles zap development features.
type LogConfig struct {
	Development bool `mapstructure:"development"`
}

const (
	defaultPort            = 5000
	defaultStaticDir       = "dist"
	defaultIndexFile       = "index.html"
	defaultAPIURL          = "https://backend.betogram.com/api"
	defaultImageBucketURL  = "https://betogramimages.s3.eu-central-1.amazonaws.com/news_images/"
	defaultFetchTimeout    = 10 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	defaultSiteName      = "Betogram"
	defaultTitle         = "Betogram"
	defaultDescription   = "The Social betting platform, designed to revolutionize sportsbetting and it´s whole experience."
	defaultImage         = "https://betogramimages.s3.eu-central-1.amazonaws.com/thumbnails_new_1-1.png"
	defaultFacebookAppID = "415117352570924"
)

// DefaultCrawlerUserAgents are the link-preview bots recognized out of the box.
var DefaultCrawlerUserAgents = []string{"slackbot", "facebot", "twitterbot", "facebookexternalhit"}

// Addr returns the listen address derived from Port.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) setDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.StaticDir == "" {
		c.StaticDir = defaultStaticDir
	}
	if c.IndexFile == "" {
		c.IndexFile = defaultIndexFile
	}
	if c.APIURL == "" {
		c.APIURL = defaultAPIURL
	}
	if c.ImageBucketURL == "" {
		c.ImageBucketURL = defaultImageBucketURL
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = defaultFetchTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.Meta.SiteName == "" {
		c.Meta.SiteName = defaultSiteName
	}
	if c.Meta.Title == "" {
		c.Meta.Title = defaultTitle
	}
	if c.Meta.Description == "" {
		c.Meta.Description = defaultDescription
	}
	if c.Meta.Image == "" {
		c.Meta.Image = defaultImage
	}
	if c.Meta.FacebookAppID == "" {
		c.Meta.FacebookAppID = defaultFacebookAppID
	}
	if len(c.Crawler.UserAgents) == 0 {
		c.Crawler.UserAgents = append([]string(nil), DefaultCrawlerUserAgents...)
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("fetch_timeout must not be negative")
	}
	if strings.TrimSpace(c.APIURL) == "" {
		return fmt.Errorf("api_url is required")
	}
	if len(c.Crawler.UserAgents) == 0 {
		return fmt.Errorf("crawler.user_agents must not be empty")
	}
	return nil
}

// LoadConfig builds a Config from an optional file plus SM_WORKER_* environment variables.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SM_WORKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setViperDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setViperDefaults(v *viper.Viper) {
	v.SetDefault("port", defaultPort)
	v.SetDefault("static_dir", defaultStaticDir)
	v.SetDefault("index_file", defaultIndexFile)
	v.SetDefault("api_url", defaultAPIURL)
	v.SetDefault("image_bucket_url", defaultImageBucketURL)
	v.SetDefault("fetch_timeout", defaultFetchTimeout)
	v.SetDefault("shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("meta.site_name", defaultSiteName)
	v.SetDefault("meta.title", defaultTitle)
	v.SetDefault("meta.description", defaultDescription)
	v.SetDefault("meta.image", defaultImage)
	v.SetDefault("meta.facebook_app_id", defaultFacebookAppID)
	v.SetDefault("meta.site_url", "")
	v.SetDefault("crawler.user_agents", DefaultCrawlerUserAgents)
	v.SetDefault("log.development", false)
}

// Option configures additional App behavior.
type Option func(*App)

// WithLogger sets the base logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

// WithNewsFetcher replaces the HTTP news client, mostly for tests.
func WithNewsFetcher(f NewsFetcher) Option {
	return func(a *App) {
		a.news = f
	}
}

// WithStaticDir overrides Config.StaticDir.
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.Config.StaticDir = dir
	}
}

// WithRegistry sets the Prometheus registry metrics are registered on.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(a *App) {
		a.registry = reg
	}
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
