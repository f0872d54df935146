// Package assets indexes content-adjacent images by logical path and locates
// the image an authored reference points at.
package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"path"
	"sort"
	"strings"

	_ "golang.org/x/image/webp"
)

// Image is the metadata and source bytes of one indexed image.
type Image struct {
	Path   string // logical path, e.g. /src/content/posts/foo/bar.png
	Format string // jpeg, png, gif or webp
	Width  int
	Height int
	Data   []byte
}

// Loader produces the Image registered under one logical path.
type Loader func(ctx context.Context) (Image, error)

// Extensions lists the file extensions the scanner indexes.
var Extensions = []string{".jpeg", ".jpg", ".png", ".gif", ".webp"}

// Index is an immutable mapping from logical path to loader. It is safe for
// concurrent use without locking.
type Index struct {
	loaders map[string]Loader
	keys    []string            // sorted
	byName  map[string][]string // final segment -> sorted keys
}

// NewIndex builds an index from entries. The map is copied.
func NewIndex(entries map[string]Loader) *Index {
	idx := &Index{
		loaders: make(map[string]Loader, len(entries)),
		byName:  make(map[string][]string),
	}
	for k, l := range entries {
		idx.loaders[k] = l
		idx.keys = append(idx.keys, k)
	}
	sort.Strings(idx.keys)
	for _, k := range idx.keys {
		name := path.Base(k)
		idx.byName[name] = append(idx.byName[name], k)
	}
	return idx
}

// Scan walks fsys from its root and registers every image file under
// logicalRoot joined with its slash-separated relative path.
func Scan(fsys fs.FS, logicalRoot string) (*Index, error) {
	entries := make(map[string]Loader)
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isImage(p) {
			return nil
		}
		key := path.Join("/", logicalRoot, p)
		entries[key] = fileLoader(fsys, p, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan assets: %w", err)
	}
	return NewIndex(entries), nil
}

func isImage(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func fileLoader(fsys fs.FS, name, key string) Loader {
	return func(ctx context.Context) (Image, error) {
		if err := ctx.Err(); err != nil {
			return Image{}, err
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return Image{}, fmt.Errorf("read %s: %w", key, err)
		}
		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return Image{}, fmt.Errorf("decode %s: %w", key, err)
		}
		return Image{
			Path:   key,
			Format: format,
			Width:  cfg.Width,
			Height: cfg.Height,
			Data:   data,
		}, nil
	}
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	return len(idx.keys)
}

// Keys returns all logical paths in lexicographic order.
func (idx *Index) Keys() []string {
	return append([]string(nil), idx.keys...)
}

// Lookup returns the loader registered under key.
func (idx *Index) Lookup(key string) (Loader, bool) {
	l, ok := idx.loaders[key]
	return l, ok
}

// Matches returns the keys that contain filename, keys whose final segment
// equals filename first. Both groups are in lexicographic order.
func (idx *Index) Matches(filename string) []string {
	if filename == "" {
		return nil
	}
	exact := idx.byName[filename]
	out := append([]string(nil), exact...)
	for _, k := range idx.keys {
		if path.Base(k) == filename {
			continue
		}
		if strings.Contains(k, filename) {
			out = append(out, k)
		}
	}
	return out
}
