package pubfeed

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// ErrSiteURLRequired is returned when the site URL is missing or not an
// absolute http(s) URL. No feed can be produced without it.
var ErrSiteURLRequired = errors.New("pubfeed: site URL is required")

// SiteConfig holds all configuration for a pubfeed site.
type SiteConfig struct {
	Name        string // Feed title (default "Blog")
	URL         string // Required: canonical site URL every link and image is anchored to
	Description string // Feed description (default "No description")
	Lang        string // Channel language (default "en")
	CustomData  string // Raw XML appended to the RSS channel

	ContentDir  string // Content tree on disk (default "src/content")
	ContentRoot string // Logical root asset keys are registered under (default "/src/content")
	Collection  string // Collection listed in the feed (default "posts")

	PublicDir    string // Static files served at / (default "public")
	OutputDir    string // Optimized images (default "dist/_astro")
	OutputPrefix string // URL path of OutputDir (default "/_astro")
	DatabasePath string // Image manifest SQLite path (default "data/images.db")

	MaxImageWidth  int // default 800
	ImageQuality   int // JPEG quality (default 80)
	MaxImagePixels int // Largest source image decoded (default 40 megapixels)

	Addr          string        // Listen address (default ":3000")
	FeedCacheTTL  time.Duration // default 5min
	Concurrency   int           // Documents rendered at once (default 4)
	FeedRateLimit int           // Feed requests per IP per minute, negative disables (default 60)
	Watch         bool          // Rebuild the asset index when the content tree changes
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Blog"
	}
	if c.Description == "" {
		c.Description = "No description"
	}
	if c.Lang == "" {
		c.Lang = "en"
	}
	if c.ContentDir == "" {
		c.ContentDir = "src/content"
	}
	if c.ContentRoot == "" {
		c.ContentRoot = "/src/content"
	}
	if c.Collection == "" {
		c.Collection = "posts"
	}
	if c.PublicDir == "" {
		c.PublicDir = "public"
	}
	if c.OutputDir == "" {
		c.OutputDir = "dist/_astro"
	}
	if c.OutputPrefix == "" {
		c.OutputPrefix = "/_astro"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/images.db"
	}
	if c.MaxImageWidth == 0 {
		c.MaxImageWidth = 800
	}
	if c.ImageQuality == 0 {
		c.ImageQuality = 80
	}
	if c.MaxImagePixels == 0 {
		c.MaxImagePixels = 40_000_000
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.FeedCacheTTL == 0 {
		c.FeedCacheTTL = 5 * time.Minute
	}
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
	if c.FeedRateLimit == 0 {
		c.FeedRateLimit = 60
	}
}

// SiteURL parses and validates URL.
func (c *SiteConfig) SiteURL() (*url.URL, error) {
	if c.URL == "" {
		return nil, ErrSiteURLRequired
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSiteURLRequired, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute http(s) URL", ErrSiteURLRequired, c.URL)
	}
	return u, nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithSource replaces the filesystem content source.
func WithSource(src Source) Option {
	return func(a *App) {
		a.source = src
	}
}

// WithOptimizer replaces the image transcoder.
func WithOptimizer(opt Optimizer) Option {
	return func(a *App) {
		a.optimizer = opt
	}
}

// WithLogger sets the logger used by the app and the pipeline.
func WithLogger(l Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}
