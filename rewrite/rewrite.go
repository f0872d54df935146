package rewrite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/pubfeed/assets"
)

// DefaultConcurrency bounds the references resolved at once per document.
const DefaultConcurrency = 4

// Logger is the leveled logger the rewriter reports failures to.
type Logger = assets.Logger

// Locator finds the image a candidate path or raw reference points at.
type Locator interface {
	Locate(ctx context.Context, candidate, raw string) (assets.Image, error)
}

// Rewriter rewrites the src of every img in an HTML fragment.
type Rewriter struct {
	Resolver    Resolver
	Locator     Locator
	Publisher   *Publisher
	Logger      Logger
	Concurrency int
}

type reference struct {
	node *html.Node
	raw  string
}

// Rewrite resolves every image reference in fragment and returns the
// re-serialized fragment. A reference that cannot be resolved keeps its
// authored value; the only error is a failure to render the result.
func (r *Rewriter) Rewrite(ctx context.Context, documentID, fragment string) (string, Report, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return fragment, Report{}, fmt.Errorf("parse fragment %s: %w", documentID, err)
	}

	var refs []reference
	for _, n := range nodes {
		collectImages(n, &refs)
	}
	if len(refs) == 0 {
		return fragment, Report{}, nil
	}

	results := make([]Result, len(refs))
	limit := r.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, ref := range refs {
		g.Go(func() error {
			results[i] = r.resolve(ctx, documentID, ref.raw)
			return nil
		})
	}
	g.Wait()

	changed := false
	for i, res := range results {
		if res.Outcome.Changed() {
			setAttr(refs[i].node, "src", res.URL)
			changed = true
		}
	}
	report := Report{Results: results}
	if !changed {
		return fragment, report, nil
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return fragment, report, fmt.Errorf("render fragment %s: %w", documentID, err)
		}
	}
	return buf.String(), report, nil
}

func (r *Rewriter) resolve(ctx context.Context, documentID, raw string) Result {
	res := Result{Raw: raw}
	if raw == "" {
		res.Outcome = OutcomeSkipped
		return res
	}

	cand := r.Resolver.Resolve(documentID, raw)
	switch cand.Kind {
	case KindPublic:
		u, err := absolute(r.base(), raw)
		if err != nil {
			r.warnf("cannot publish %q in %s: %v", raw, documentID, err)
			res.Outcome = OutcomeResolutionMiss
			return res
		}
		res.URL, res.Outcome = u, OutcomePublic
		return res
	case KindNone:
		res.Outcome = OutcomeResolutionMiss
		return res
	}

	if r.Locator == nil {
		res.Outcome = OutcomeLookupMiss
		return res
	}
	img, err := r.Locator.Locate(ctx, cand.Path, raw)
	if err != nil {
		if !errors.Is(err, assets.ErrLookupMiss) {
			r.warnf("locate %q in %s: %v", raw, documentID, err)
		}
		res.Outcome = OutcomeLookupMiss
		return res
	}
	if r.Publisher == nil {
		res.Outcome = OutcomeOptimizationFailure
		return res
	}
	u, err := r.Publisher.Publish(ctx, img)
	if err != nil {
		r.warnf("failed to optimize image %q in %s: %v", raw, documentID, err)
		res.Outcome = OutcomeOptimizationFailure
		return res
	}
	res.URL, res.Outcome = u, OutcomeRewritten
	return res
}

func (r *Rewriter) base() *url.URL {
	if r.Publisher == nil {
		return nil
	}
	return r.Publisher.Base
}

func (r *Rewriter) warnf(format string, args ...interface{}) {
	if r.Logger != nil {
		r.Logger.Warnf(format, args...)
	}
}

func collectImages(n *html.Node, refs *[]reference) {
	if n.Type == html.ElementNode && n.DataAtom == atom.Img {
		*refs = append(*refs, reference{node: n, raw: attr(n, "src")})
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectImages(c, refs)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
