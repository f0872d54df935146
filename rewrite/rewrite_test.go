package rewrite

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/eringen/pubfeed/assets"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func okLoader(p string) assets.Loader {
	return func(context.Context) (assets.Image, error) {
		return assets.Image{Path: p, Format: "png"}, nil
	}
}

// hashOptimizer mimics a transcoder that emits /_astro/<name>.<hash>.webp.
var hashOptimizer = OptimizerFunc(func(_ context.Context, img assets.Image) (string, error) {
	name := strings.TrimSuffix(assets.Filename(img.Path), ".png")
	return "/_astro/" + name + ".abc123.webp", nil
})

func newRewriter(t *testing.T, entries map[string]assets.Loader, opt Optimizer) *Rewriter {
	t.Helper()
	return &Rewriter{
		Resolver:  Resolver{ContentRoot: "/content"},
		Locator:   &assets.Locator{Index: assets.NewIndex(entries)},
		Publisher: &Publisher{Optimizer: opt, Base: mustParse(t, "https://site/")},
	}
}

func TestRewriteDocumentDirectoryImage(t *testing.T) {
	rw := newRewriter(t, map[string]assets.Loader{
		"/content/posts/foo/bar.png": okLoader("/content/posts/foo/bar.png"),
	}, hashOptimizer)

	out, report, err := rw.Rewrite(context.Background(), "foo/index", `<p><img src="./bar.png" alt="bar"></p>`)
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if !strings.Contains(out, `src="https://site/_astro/bar.abc123.webp"`) {
		t.Errorf("output = %q, want rewritten absolute src", out)
	}
	if !strings.Contains(out, `alt="bar"`) {
		t.Errorf("output = %q, other attributes should survive", out)
	}
	if len(report.Results) != 1 || report.Results[0].Outcome != OutcomeRewritten {
		t.Errorf("report = %+v, want one rewritten result", report.Results)
	}
}

func TestRewriteCollectionRelativeExactAndFallback(t *testing.T) {
	var loaded []string
	record := func(p string) assets.Loader {
		return func(context.Context) (assets.Image, error) {
			loaded = append(loaded, p)
			return assets.Image{Path: p}, nil
		}
	}

	rw := newRewriter(t, map[string]assets.Loader{
		"/content/assets/images/x.png": record("/content/assets/images/x.png"),
	}, hashOptimizer)
	rw.Concurrency = 1
	out, _, err := rw.Rewrite(context.Background(), "post", `<img src="../assets/images/x.png">`)
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if !strings.Contains(out, `src="https://site/_astro/x.abc123.webp"`) {
		t.Errorf("exact match output = %q", out)
	}
	if len(loaded) != 1 || loaded[0] != "/content/assets/images/x.png" {
		t.Errorf("loaded = %v, want exact key only", loaded)
	}

	loaded = nil
	rw = newRewriter(t, map[string]assets.Loader{
		"/content/media/renamed/x.png": record("/content/media/renamed/x.png"),
	}, hashOptimizer)
	out, report, err := rw.Rewrite(context.Background(), "post", `<img src="../assets/images/x.png">`)
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if !strings.Contains(out, `src="https://site/_astro/x.abc123.webp"`) {
		t.Errorf("fallback output = %q", out)
	}
	if report.Count(OutcomeRewritten) != 1 {
		t.Errorf("report = %+v", report.Results)
	}
}

func TestRewriteRootRelativeIgnoresIndex(t *testing.T) {
	var calls int32
	opt := OptimizerFunc(func(context.Context, assets.Image) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "/_astro/never.png", nil
	})
	rw := newRewriter(t, map[string]assets.Loader{
		"/content/images/logo.png": okLoader("/content/images/logo.png"),
	}, opt)
	rw.Publisher.Base = mustParse(t, "https://site/blog/")

	out, report, err := rw.Rewrite(context.Background(), "post", `<img src="/images/logo.png">`)
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if !strings.Contains(out, `src="https://site/images/logo.png"`) {
		t.Errorf("output = %q", out)
	}
	if report.Results[0].Outcome != OutcomePublic {
		t.Errorf("outcome = %v, want public", report.Results[0].Outcome)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("root-relative references must not be optimized")
	}
}

func TestRewriteLeavesUnresolvedUntouched(t *testing.T) {
	rw := newRewriter(t, map[string]assets.Loader{}, hashOptimizer)
	in := `<p><img src="http://external.example/img.png"><img src="./missing.png"><img alt="no src"><img src=""></p>`

	out, report, err := rw.Rewrite(context.Background(), "post", in)
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if out != in {
		t.Errorf("output = %q, want input unchanged", out)
	}
	want := []Outcome{OutcomeResolutionMiss, OutcomeLookupMiss, OutcomeSkipped, OutcomeSkipped}
	if len(report.Results) != len(want) {
		t.Fatalf("results = %+v", report.Results)
	}
	for i, o := range want {
		if report.Results[i].Outcome != o {
			t.Errorf("result %d = %v, want %v", i, report.Results[i].Outcome, o)
		}
	}
}

func TestRewriteIsIdempotent(t *testing.T) {
	rw := newRewriter(t, map[string]assets.Loader{
		"/content/posts/foo/bar.png": okLoader("/content/posts/foo/bar.png"),
	}, hashOptimizer)

	first, _, err := rw.Rewrite(context.Background(), "foo/index", `<p>hi <img src="./bar.png"> <img src="/a.png"></p>`)
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	second, report, err := rw.Rewrite(context.Background(), "foo/index", first)
	if err != nil {
		t.Fatalf("second Rewrite failed: %v", err)
	}
	if second != first {
		t.Errorf("second pass = %q, want %q", second, first)
	}
	if n := report.Count(OutcomeResolutionMiss); n != 2 {
		t.Errorf("second pass resolution misses = %d, want 2", n)
	}
}

func TestRewriteIsolatesFailures(t *testing.T) {
	entries := map[string]assets.Loader{
		"/content/posts/good.png": okLoader("/content/posts/good.png"),
		"/content/posts/bad.png": func(context.Context) (assets.Image, error) {
			return assets.Image{}, errors.New("loader exploded")
		},
		"/content/posts/slow.png": okLoader("/content/posts/slow.png"),
	}
	opt := OptimizerFunc(func(_ context.Context, img assets.Image) (string, error) {
		if img.Path == "/content/posts/slow.png" {
			return "", errors.New("encoder exploded")
		}
		return "/_astro/" + assets.Filename(img.Path), nil
	})
	rw := newRewriter(t, entries, opt)

	in := `<img src="./bad.png"><img src="./good.png"><img src="./slow.png">`
	out, report, err := rw.Rewrite(context.Background(), "post", in)
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if !strings.Contains(out, `src="./bad.png"`) {
		t.Errorf("failed loader reference should be untouched: %q", out)
	}
	if !strings.Contains(out, `src="./slow.png"`) {
		t.Errorf("failed optimizer reference should be untouched: %q", out)
	}
	if !strings.Contains(out, `src="https://site/_astro/good.png"`) {
		t.Errorf("good reference should be rewritten: %q", out)
	}
	want := []Outcome{OutcomeLookupMiss, OutcomeRewritten, OutcomeOptimizationFailure}
	for i, o := range want {
		if report.Results[i].Outcome != o {
			t.Errorf("result %d = %v, want %v", i, report.Results[i].Outcome, o)
		}
	}
}

func TestRewriteWithoutImagesReturnsInput(t *testing.T) {
	rw := newRewriter(t, nil, hashOptimizer)
	in := "<p>A &amp; B</p>\n<pre><code>x</code></pre>"
	out, report, err := rw.Rewrite(context.Background(), "post", in)
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if out != in {
		t.Errorf("output = %q, want %q", out, in)
	}
	if len(report.Results) != 0 {
		t.Errorf("results = %v, want none", report.Results)
	}
}

func TestRewriteConcurrentReferences(t *testing.T) {
	entries := make(map[string]assets.Loader)
	var b strings.Builder
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		p := "/content/posts/" + name + ".png"
		entries[p] = okLoader(p)
		b.WriteString(`<img src="./` + name + `.png">`)
	}
	rw := newRewriter(t, entries, hashOptimizer)
	rw.Concurrency = 3

	out, report, err := rw.Rewrite(context.Background(), "post", b.String())
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if report.Count(OutcomeRewritten) != 8 {
		t.Fatalf("rewritten = %d, want 8", report.Count(OutcomeRewritten))
	}
	for i, res := range report.Results {
		name := string(rune('a' + i))
		if res.URL != "https://site/_astro/"+name+".abc123.webp" {
			t.Errorf("result %d URL = %q", i, res.URL)
		}
		if !strings.Contains(out, res.URL) {
			t.Errorf("output missing %q", res.URL)
		}
	}
}

func TestPublishRejectsNonAbsolute(t *testing.T) {
	img := assets.Image{Path: "/content/posts/a.png"}
	p := &Publisher{
		Optimizer: OptimizerFunc(func(context.Context, assets.Image) (string, error) { return "", nil }),
		Base:      mustParse(t, "https://site/"),
	}
	if _, err := p.Publish(context.Background(), img); !errors.Is(err, ErrOptimization) {
		t.Errorf("empty src: err = %v, want ErrOptimization", err)
	}

	p.Base = mustParse(t, "/relative/")
	p.Optimizer = hashOptimizer
	if _, err := p.Publish(context.Background(), img); !errors.Is(err, ErrOptimization) {
		t.Errorf("relative base: err = %v, want ErrOptimization", err)
	}

	p.Base = mustParse(t, "https://site/")
	p.Optimizer = OptimizerFunc(func(context.Context, assets.Image) (string, error) {
		return "https://cdn.example/a.png", nil
	})
	got, err := p.Publish(context.Background(), img)
	if err != nil || got != "https://cdn.example/a.png" {
		t.Errorf("absolute optimizer output = %q, %v", got, err)
	}

	p.Optimizer = nil
	if _, err := p.Publish(context.Background(), img); !errors.Is(err, ErrOptimization) {
		t.Errorf("nil optimizer: err = %v, want ErrOptimization", err)
	}
}
