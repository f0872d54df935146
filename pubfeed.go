// Package pubfeed generates an RSS feed from a markdown content collection.
// Image references in each document are resolved against the site's asset
// tree, optimized, and rewritten to absolute URLs so feed readers can load
// them.
//
// The App serves the feed with Echo, keeps the encoded document in a TTL
// cache and can watch the content tree for changes.
package pubfeed

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pubfeed/assets"
	"github.com/eringen/pubfeed/markdown"
	"github.com/eringen/pubfeed/optimize"
	"github.com/eringen/pubfeed/sanitize"
)

// App is the central pubfeed application. It wires together the asset index,
// optimizer, feed cache, handlers and middleware.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Store  *optimize.Store
	Cache  *FeedCache

	index        atomic.Pointer[assets.Index]
	source       Source
	optimizer    Optimizer
	renderer     Renderer
	sanitizer    Sanitizer
	logger       Logger
	limiter      *FeedLimiter
	customRoutes []func(*App)

	initMu    sync.Mutex
	ready     bool
	setupOnce sync.Once
}

// New creates a new pubfeed App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
	}
	a.Echo.HideBanner = true

	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = a.Echo.Logger
	}
	return a
}

// Init validates the configuration, opens the image manifest and indexes the
// asset tree. It is called by Build and Start and is safe to call again.
func (a *App) Init() error {
	a.initMu.Lock()
	defer a.initMu.Unlock()
	if a.ready {
		return nil
	}

	if _, err := a.Config.SiteURL(); err != nil {
		return err
	}

	if a.source == nil {
		a.source = &FileSource{FS: os.DirFS(a.Config.ContentDir), Logger: a.logger}
	}
	if a.optimizer == nil {
		store, err := optimize.NewStore(a.Config.DatabasePath)
		if err != nil {
			return fmt.Errorf("pubfeed: init store: %w", err)
		}
		a.Store = store
		t := optimize.NewTranscoder(a.Config.OutputDir, store)
		t.PublicPrefix = a.Config.OutputPrefix
		t.MaxWidth = a.Config.MaxImageWidth
		t.Quality = a.Config.ImageQuality
		t.MaxPixels = a.Config.MaxImagePixels
		a.optimizer = t
	}
	a.renderer = markdown.New(markdown.Options{})
	a.sanitizer = sanitize.New("img")

	if err := a.Reindex(); err != nil {
		return err
	}
	a.Cache = NewFeedCache(a.Build, a.Config.FeedCacheTTL)
	a.ready = true
	return nil
}

// Index returns the current asset index.
func (a *App) Index() *assets.Index {
	return a.index.Load()
}

// Reindex scans the content tree into a fresh asset index and swaps it in.
// A missing content directory yields an empty index.
func (a *App) Reindex() error {
	idx, err := assets.Scan(os.DirFS(a.Config.ContentDir), a.Config.ContentRoot)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("pubfeed: index assets: %w", err)
		}
		a.logger.Warnf("content directory %s not found, no images indexed", a.Config.ContentDir)
		idx = assets.NewIndex(nil)
	}
	a.index.Store(idx)
	a.logger.Infof("indexed %d images under %s", idx.Len(), a.Config.ContentDir)
	return nil
}

// Build generates the feed from the current content and asset index.
func (a *App) Build(ctx context.Context) (*Feed, error) {
	if err := a.Init(); err != nil {
		return nil, err
	}
	g := &Generator{
		Config:    a.Config,
		Source:    a.source,
		Index:     a.index.Load(),
		Optimizer: a.optimizer,
		Renderer:  a.renderer,
		Sanitizer: a.sanitizer,
		Logger:    a.logger,
	}
	return g.Generate(ctx)
}

// Setup initializes the app and registers middleware and routes without
// starting the listener. a.Echo can serve requests once it returns.
func (a *App) Setup() error {
	if err := a.Init(); err != nil {
		return err
	}
	a.setupOnce.Do(func() {
		if a.Config.FeedRateLimit > 0 {
			a.limiter = NewFeedLimiter(a.Config.FeedRateLimit, time.Minute)
		}
		a.setupMiddleware()
		a.setupRoutes()
		for _, fn := range a.customRoutes {
			fn(a)
		}
	})
	return nil
}

// Start initializes the app, optionally watches the content tree, and starts
// the server.
func (a *App) Start() error {
	if err := a.Setup(); err != nil {
		return err
	}

	if a.Config.Watch {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			if err := a.Watch(ctx); err != nil {
				a.logger.Errorf("watcher stopped: %v", err)
			}
		}()
	}

	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.GET("/rss.xml", a.handleRSS, a.feedLimit)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/robots.txt", a.handleRobots)

	// Optimized images, then the user's static files.
	e.Static(a.Config.OutputPrefix, a.Config.OutputDir)
	e.Static("/", a.Config.PublicDir)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.limiter != nil {
		a.limiter.Close()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
