package optimize

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/eringen/pubfeed/assets"
)

func testImage(t *testing.T, format string, w, h int) assets.Image {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: uint8(x), G: 100, B: 200, A: 255})
	}
	var buf bytes.Buffer
	var err error
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, img, nil)
	default:
		err = png.Encode(&buf, img)
	}
	if err != nil {
		t.Fatalf("encode %s: %v", format, err)
	}
	return assets.Image{
		Path:   "/src/content/posts/foo/My Photo." + format,
		Format: format,
		Width:  w,
		Height: h,
		Data:   buf.Bytes(),
	}
}

var outputPattern = regexp.MustCompile(`^/_astro/my-photo\.[0-9a-f]{8}\.(png|jpg)$`)

func decodeOutput(t *testing.T, dir, src string) image.Config {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, strings.TrimPrefix(src, "/_astro/")))
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	return cfg
}

func TestOptimizeResizesWideImages(t *testing.T) {
	dir := t.TempDir()
	tr := NewTranscoder(dir, nil)
	tr.MaxWidth = 100

	src, err := tr.Optimize(context.Background(), testImage(t, "jpeg", 400, 200))
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if !outputPattern.MatchString(src) || !strings.HasSuffix(src, ".jpg") {
		t.Fatalf("src = %q, want /_astro/my-photo.<hash>.jpg", src)
	}
	cfg := decodeOutput(t, dir, src)
	if cfg.Width != 100 || cfg.Height != 50 {
		t.Errorf("output = %dx%d, want 100x50", cfg.Width, cfg.Height)
	}
}

func TestOptimizeKeepsPNGAndSmallImages(t *testing.T) {
	dir := t.TempDir()
	tr := NewTranscoder(dir, nil)

	src, err := tr.Optimize(context.Background(), testImage(t, "png", 40, 30))
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if !strings.HasSuffix(src, ".png") {
		t.Errorf("src = %q, want png output", src)
	}
	cfg := decodeOutput(t, dir, src)
	if cfg.Width != 40 || cfg.Height != 30 {
		t.Errorf("output = %dx%d, want 40x30", cfg.Width, cfg.Height)
	}
}

func TestOptimizeIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	tr := NewTranscoder(dir, nil)
	img := testImage(t, "png", 10, 10)

	first, err := tr.Optimize(context.Background(), img)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	second, err := tr.Optimize(context.Background(), img)
	if err != nil {
		t.Fatalf("second Optimize failed: %v", err)
	}
	if first != second {
		t.Errorf("outputs differ: %q vs %q", first, second)
	}

	other := NewTranscoder(dir, nil)
	other.MaxWidth = 5
	third, err := other.Optimize(context.Background(), img)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if third == first {
		t.Error("different settings should produce a different output name")
	}
}

func TestOptimizeRecordsManifest(t *testing.T) {
	dir := t.TempDir()
	store, cleanup := setupTestStore(t)
	defer cleanup()
	tr := NewTranscoder(filepath.Join(dir, "_astro"), store)
	img := testImage(t, "png", 12, 8)

	src, err := tr.Optimize(context.Background(), img)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	entries, err := store.ListBySource(img.Path)
	if err != nil {
		t.Fatalf("ListBySource failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("manifest entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if "/_astro/"+e.Output != src || e.Width != 12 || e.Height != 8 || e.Size == 0 {
		t.Errorf("entry = %+v, src = %q", e, src)
	}

	again, err := tr.Optimize(context.Background(), img)
	if err != nil || again != src {
		t.Errorf("manifest hit = %q, %v; want %q", again, err, src)
	}

	// Removing the output forces a re-encode even with a manifest entry.
	if err := os.Remove(filepath.Join(dir, "_astro", e.Output)); err != nil {
		t.Fatalf("remove output: %v", err)
	}
	again, err = tr.Optimize(context.Background(), img)
	if err != nil || again != src {
		t.Errorf("re-encode = %q, %v; want %q", again, err, src)
	}
	if _, err := os.Stat(filepath.Join(dir, "_astro", e.Output)); err != nil {
		t.Errorf("output should be recreated: %v", err)
	}
}

func TestOptimizePrunesStaleManifestEntry(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	tr := NewTranscoder(t.TempDir(), store)

	img := testImage(t, "png", 4, 4)
	img.Data = append([]byte("not a png"), img.Data...)
	key, _ := tr.outputName(img)
	if err := store.Save(Entry{Key: key, Source: img.Path, Output: "gone.png"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := tr.Optimize(context.Background(), img); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := store.Get(key); !IsNotFound(err) {
		t.Errorf("stale entry should be pruned, Get err = %v", err)
	}
}

func TestOptimizeRejectsOversizedSources(t *testing.T) {
	dir := t.TempDir()
	tr := NewTranscoder(dir, nil)
	tr.MaxPixels = 100

	img := testImage(t, "png", 20, 10)
	if _, err := tr.Optimize(context.Background(), img); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}

	// Dimensions missing from the asset are read from the header.
	img.Width, img.Height = 0, 0
	if _, err := tr.Optimize(context.Background(), img); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge without dimensions", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("no output expected, found %d files", len(entries))
	}

	if _, err := tr.Optimize(context.Background(), testImage(t, "png", 10, 10)); err != nil {
		t.Errorf("image at the limit should pass: %v", err)
	}
}

func TestOptimizeFailures(t *testing.T) {
	tr := NewTranscoder(t.TempDir(), nil)

	if _, err := tr.Optimize(context.Background(), assets.Image{Path: "/empty.png"}); err == nil {
		t.Error("expected error for empty data")
	}
	if _, err := tr.Optimize(context.Background(), assets.Image{Path: "/bad.png", Format: "png", Data: []byte("not an image")}); err == nil {
		t.Error("expected error for undecodable data")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tr.Optimize(ctx, testImage(t, "png", 2, 2)); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestOptimizeConcurrentSameImage(t *testing.T) {
	dir := t.TempDir()
	tr := NewTranscoder(dir, nil)
	img := testImage(t, "png", 20, 20)

	var wg sync.WaitGroup
	results := make([]string, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = tr.Optimize(context.Background(), img)
		}(i)
	}
	wg.Wait()

	for i := range results {
		if errs[i] != nil {
			t.Fatalf("Optimize %d failed: %v", i, errs[i])
		}
		if results[i] != results[0] {
			t.Errorf("result %d = %q, want %q", i, results[i], results[0])
		}
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("output files = %d, want 1", len(files))
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"My Photo", "my-photo"},
		{"bar", "bar"},
		{"  Hello__World!! ", "hello-world"},
		{"...", ""},
	}
	for _, tt := range tests {
		if got := slugify(tt.input); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
