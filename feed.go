package pubfeed

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eringen/pubfeed/assets"
	"github.com/eringen/pubfeed/rewrite"
)

// Logger is the leveled logger used across the pipeline. echo.Logger and
// gommon's *log.Logger both satisfy it.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Optimizer produces a servable copy of an image.
type Optimizer = rewrite.Optimizer

// Renderer converts a markdown body to HTML.
type Renderer interface {
	Render(body []byte) (string, error)
}

// Sanitizer filters rendered HTML down to an allowed tag set.
type Sanitizer interface {
	HTML(s string) string
}

// Generator builds the feed for one collection.
type Generator struct {
	Config    SiteConfig
	Source    Source
	Index     *assets.Index
	Optimizer Optimizer
	Renderer  Renderer
	Sanitizer Sanitizer
	Logger    Logger
	Now       func() time.Time
}

// Generate lists the collection, rewrites and sanitizes every item and
// returns the feed. Only configuration and listing errors are returned;
// per-item and per-image failures are logged and degrade the item.
func (g *Generator) Generate(ctx context.Context) (*Feed, error) {
	cfg := g.Config
	cfg.setDefaults()
	site, err := cfg.SiteURL()
	if err != nil {
		return nil, err
	}
	if g.Source == nil {
		return nil, errMissing("content source")
	}
	if g.Renderer == nil {
		return nil, errMissing("markdown renderer")
	}

	items, err := g.Source.ListItems(ctx, cfg.Collection)
	if err != nil {
		return nil, err
	}

	rw := &rewrite.Rewriter{
		Resolver:  rewrite.Resolver{ContentRoot: cfg.ContentRoot, Collection: cfg.Collection},
		Locator:   &assets.Locator{Index: g.Index, Logger: g.Logger},
		Publisher: &rewrite.Publisher{Optimizer: g.Optimizer, Base: site},
		Logger:    g.Logger,
	}

	out := make([]FeedItem, len(items))
	var eg errgroup.Group
	eg.SetLimit(cfg.Concurrency)
	for i, item := range items {
		eg.Go(func() error {
			out[i] = g.buildItem(ctx, rw, site, cfg.Collection, item)
			return nil
		})
	}
	eg.Wait()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Published.Equal(out[j].Published) {
			return out[i].Link < out[j].Link
		}
		return out[i].Published.After(out[j].Published)
	})

	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	return &Feed{
		Title:       cfg.Name,
		Description: cfg.Description,
		Site:        site.String(),
		Language:    cfg.Lang,
		CustomData:  cfg.CustomData,
		BuiltAt:     now().UTC(),
		Items:       out,
	}, nil
}

func (g *Generator) buildItem(ctx context.Context, rw *rewrite.Rewriter, site *url.URL, collection string, item ContentItem) FeedItem {
	fi := FeedItem{
		Title:       item.Title,
		Description: item.Description,
		Link:        BuildURL(site.String(), collection, item.Slug),
		Published:   item.Published,
	}

	html, err := g.Renderer.Render([]byte(item.Body))
	if err != nil {
		g.warnf("render %s: %v", item.ID, err)
		return fi
	}
	html, report, err := rw.Rewrite(ctx, item.ID, html)
	if err != nil {
		g.warnf("rewrite %s: %v", item.ID, err)
	}
	if n := len(report.Results); n > 0 {
		g.debugf("%s: %d images, %d rewritten, %d public, %d unresolved", item.ID, n,
			report.Count(rewrite.OutcomeRewritten), report.Count(rewrite.OutcomePublic),
			n-report.Count(rewrite.OutcomeRewritten)-report.Count(rewrite.OutcomePublic)-report.Count(rewrite.OutcomeSkipped))
	}
	if g.Sanitizer != nil {
		html = g.Sanitizer.HTML(html)
	}
	fi.Content = html
	return fi
}

func (g *Generator) warnf(format string, args ...interface{}) {
	if g.Logger != nil {
		g.Logger.Warnf(format, args...)
	}
}

func (g *Generator) debugf(format string, args ...interface{}) {
	if g.Logger != nil {
		g.Logger.Debugf(format, args...)
	}
}

// errMissing formats a wiring error for a nil collaborator.
func errMissing(name string) error {
	return fmt.Errorf("pubfeed: generator has no %s", name)
}
