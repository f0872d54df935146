package pubfeed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
)

// Source lists the documents of a collection.
type Source interface {
	ListItems(ctx context.Context, collection string) ([]ContentItem, error)
}

// FileSource reads markdown documents with YAML frontmatter from FS, one
// directory per collection.
type FileSource struct {
	FS     fs.FS
	Logger Logger
}

type frontMatter struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Published   string `yaml:"published"`
	PubDate     string `yaml:"pubDate"`
	Date        string `yaml:"date"`
	Draft       bool   `yaml:"draft"`
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ListItems returns the non-draft documents of collection sorted by ID.
// Documents with unreadable frontmatter are logged and skipped. A missing
// collection directory yields no items.
func (s *FileSource) ListItems(ctx context.Context, collection string) ([]ContentItem, error) {
	if _, err := fs.Stat(s.FS, collection); errors.Is(err, fs.ErrNotExist) {
		s.warnf("collection %s not found, feed will be empty", collection)
		return nil, nil
	}
	var items []ContentItem
	err := fs.WalkDir(s.FS, collection, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !isMarkdown(p) {
			return nil
		}
		raw, err := fs.ReadFile(s.FS, p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		item, err := parseItem(strings.TrimPrefix(p, collection+"/"), raw)
		if err != nil {
			s.warnf("skipping %s: %v", p, err)
			return nil
		}
		if item.Draft {
			return nil
		}
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func parseItem(rel string, raw []byte) (ContentItem, error) {
	var fm frontMatter
	body, err := frontmatter.Parse(bytes.NewReader(raw), &fm)
	if err != nil {
		return ContentItem{}, fmt.Errorf("frontmatter: %w", err)
	}
	id := strings.TrimSuffix(rel, path.Ext(rel))
	item := ContentItem{
		ID:          id,
		Slug:        slugFromID(id),
		Title:       strings.TrimSpace(fm.Title),
		Description: strings.TrimSpace(fm.Description),
		Draft:       fm.Draft,
		Body:        string(body),
	}
	if item.Title == "" {
		item.Title = item.Slug
	}
	for _, v := range []string{fm.Published, fm.PubDate, fm.Date} {
		if v == "" {
			continue
		}
		t, err := parseDate(v)
		if err != nil {
			return ContentItem{}, err
		}
		item.Published = t
		break
	}
	return item, nil
}

func parseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", v)
}

func slugFromID(id string) string {
	if id == "index" {
		return id
	}
	return strings.TrimSuffix(id, "/index")
}

func isMarkdown(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

func (s *FileSource) warnf(format string, args ...interface{}) {
	if s.Logger != nil {
		s.Logger.Warnf(format, args...)
	}
}
