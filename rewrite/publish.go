package rewrite

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/eringen/pubfeed/assets"
)

// ErrOptimization wraps every failure to turn a located image into a public URL.
var ErrOptimization = errors.New("rewrite: image optimization failed")

// Optimizer produces a servable copy of img and returns its path or URL.
type Optimizer interface {
	Optimize(ctx context.Context, img assets.Image) (string, error)
}

// OptimizerFunc adapts a function to Optimizer.
type OptimizerFunc func(ctx context.Context, img assets.Image) (string, error)

// Optimize calls f.
func (f OptimizerFunc) Optimize(ctx context.Context, img assets.Image) (string, error) {
	return f(ctx, img)
}

// Publisher turns located images into absolute URLs under Base.
type Publisher struct {
	Optimizer Optimizer
	Base      *url.URL
}

// Publish optimizes img and resolves the optimizer's output against Base.
func (p *Publisher) Publish(ctx context.Context, img assets.Image) (string, error) {
	if p.Optimizer == nil {
		return "", fmt.Errorf("%w: no optimizer configured", ErrOptimization)
	}
	src, err := p.Optimizer.Optimize(ctx, img)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrOptimization, img.Path, err)
	}
	abs, err := absolute(p.Base, src)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrOptimization, img.Path, err)
	}
	return abs, nil
}

// absolute resolves ref against base and rejects anything that is not an
// absolute URL with a host.
func absolute(base *url.URL, ref string) (string, error) {
	if base == nil {
		return "", errors.New("no base URL")
	}
	if ref == "" {
		return "", errors.New("empty URL")
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	out := base.ResolveReference(u)
	if !out.IsAbs() || out.Host == "" {
		return "", fmt.Errorf("%q is not absolute", out.String())
	}
	return out.String(), nil
}
