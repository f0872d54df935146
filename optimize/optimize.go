// Package optimize transcodes indexed images into hashed, width-limited
// copies under a public output directory.
package optimize

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"

	"github.com/eringen/pubfeed/assets"
)

const (
	DefaultMaxWidth     = 800
	DefaultQuality      = 80
	DefaultPublicPrefix = "/_astro"
	DefaultMaxPixels    = 40_000_000
	hashLen             = 8
)

// ErrTooLarge is returned for sources whose pixel count exceeds MaxPixels.
var ErrTooLarge = errors.New("optimize: image exceeds pixel limit")

// Transcoder writes optimized copies of images to OutDir and returns the
// public path each copy is served under.
type Transcoder struct {
	OutDir       string
	PublicPrefix string // default /_astro
	MaxWidth     int    // default 800
	Quality      int    // JPEG quality, default 80
	MaxPixels    int    // largest source decoded, default 40 megapixels
	Store        *Store // optional manifest

	group singleflight.Group
}

// NewTranscoder returns a Transcoder with defaults applied.
func NewTranscoder(outDir string, store *Store) *Transcoder {
	return &Transcoder{
		OutDir:       outDir,
		PublicPrefix: DefaultPublicPrefix,
		MaxWidth:     DefaultMaxWidth,
		Quality:      DefaultQuality,
		MaxPixels:    DefaultMaxPixels,
		Store:        store,
	}
}

// Optimize returns the public path of the optimized copy of img, producing
// the copy if it does not exist yet.
func (t *Transcoder) Optimize(ctx context.Context, img assets.Image) (string, error) {
	if len(img.Data) == 0 {
		return "", fmt.Errorf("optimize %s: no image data", img.Path)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, name := t.outputName(img)
	v, err, _ := t.group.Do(key, func() (interface{}, error) {
		return t.produce(key, name, img)
	})
	if err != nil {
		return "", err
	}
	return t.publicPath(v.(string)), nil
}

func (t *Transcoder) produce(key, name string, img assets.Image) (string, error) {
	if t.Store != nil {
		e, err := t.Store.Get(key)
		switch {
		case err == nil && t.exists(e.Output):
			return e.Output, nil
		case err == nil:
			// The output was removed from OutDir.
			if err := t.Store.Delete(key); err != nil {
				return "", fmt.Errorf("optimize %s: prune manifest: %w", img.Path, err)
			}
		case !IsNotFound(err):
			return "", fmt.Errorf("optimize %s: manifest: %w", img.Path, err)
		}
	} else if t.exists(name) {
		return name, nil
	}

	data, w, h, err := t.encode(img)
	if err != nil {
		return "", fmt.Errorf("optimize %s: %w", img.Path, err)
	}
	if err := os.MkdirAll(t.OutDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(t.OutDir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("optimize %s: %w", img.Path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(t.OutDir, name)); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", name, err)
	}

	if t.Store != nil {
		if err := t.Store.Save(Entry{
			Key:    key,
			Source: img.Path,
			Output: name,
			Width:  w,
			Height: h,
			Size:   len(data),
		}); err != nil {
			return "", fmt.Errorf("optimize %s: manifest: %w", img.Path, err)
		}
	}
	return name, nil
}

// encode decodes img, scales it down to MaxWidth and re-encodes it. PNG and
// GIF sources stay PNG to keep transparency; everything else becomes JPEG.
func (t *Transcoder) encode(img assets.Image) ([]byte, int, int, error) {
	sw, sh := img.Width, img.Height
	if sw <= 0 || sh <= 0 {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
		if err != nil {
			return nil, 0, 0, fmt.Errorf("decode image: %w", err)
		}
		sw, sh = cfg.Width, cfg.Height
	}
	if int64(sw)*int64(sh) > int64(t.maxPixels()) {
		return nil, 0, 0, fmt.Errorf("%dx%d: %w", sw, sh, ErrTooLarge)
	}

	src, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if limit := t.maxWidth(); w > limit {
		newH := h * limit / w
		if newH < 1 {
			newH = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, limit, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		src = dst
		w, h = limit, newH
	}

	var buf bytes.Buffer
	switch outputExt(img.Format) {
	case ".png":
		if err := png.Encode(&buf, src); err != nil {
			return nil, 0, 0, fmt.Errorf("encode png: %w", err)
		}
	default:
		if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: t.quality()}); err != nil {
			return nil, 0, 0, fmt.Errorf("encode jpeg: %w", err)
		}
	}
	return buf.Bytes(), w, h, nil
}

// outputName derives the manifest key and the hashed output file name. The
// hash covers the source bytes and the settings that change the output.
func (t *Transcoder) outputName(img assets.Image) (string, string) {
	h := blake3.New()
	h.Write(img.Data)
	h.Write([]byte("|" + strconv.Itoa(t.maxWidth()) + "|" + strconv.Itoa(t.quality())))
	sum := hex.EncodeToString(h.Sum(nil))[:hashLen]

	base := path.Base(img.Path)
	stem := slugify(strings.TrimSuffix(base, path.Ext(base)))
	if stem == "" {
		stem = "image"
	}
	name := stem + "." + sum + outputExt(img.Format)
	return img.Path + "@" + sum, name
}

func (t *Transcoder) publicPath(name string) string {
	prefix := t.PublicPrefix
	if prefix == "" {
		prefix = DefaultPublicPrefix
	}
	return strings.TrimRight(prefix, "/") + "/" + name
}

func (t *Transcoder) exists(name string) bool {
	if name == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(t.OutDir, name))
	return err == nil
}

func (t *Transcoder) maxWidth() int {
	if t.MaxWidth <= 0 {
		return DefaultMaxWidth
	}
	return t.MaxWidth
}

func (t *Transcoder) maxPixels() int {
	if t.MaxPixels <= 0 {
		return DefaultMaxPixels
	}
	return t.MaxPixels
}

func (t *Transcoder) quality() int {
	if t.Quality <= 0 || t.Quality > 100 {
		return DefaultQuality
	}
	return t.Quality
}

func outputExt(format string) string {
	switch format {
	case "png", "gif":
		return ".png"
	default:
		return ".jpg"
	}
}

// slugify keeps lowercase letters, digits and single dashes.
func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
