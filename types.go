package pubfeed

import "time"

// ContentItem is one document of a content collection.
type ContentItem struct {
	ID          string // source path relative to the collection, no extension: "foo/index"
	Slug        string // ID without a trailing "/index": "foo"
	Title       string
	Description string
	Published   time.Time
	Draft       bool
	Body        string // markdown, frontmatter removed
}

// FeedItem is a rendered feed entry.
type FeedItem struct {
	Title       string
	Description string
	Link        string // absolute
	Published   time.Time
	Content     string // sanitized HTML with rewritten image URLs
}

// Feed is the envelope handed to the emitter.
type Feed struct {
	Title       string
	Description string
	Site        string
	Language    string
	CustomData  string // raw XML appended to the channel
	BuiltAt     time.Time
	Items       []FeedItem
}
