// Package rewrite turns image references in rendered content into absolute,
// publicly resolvable URLs.
package rewrite

import (
	"path"
	"strings"
)

const (
	DefaultContentRoot = "/src/content"
	DefaultCollection  = "posts"
)

// Kind classifies a raw image reference.
type Kind int

const (
	// KindNone means no rule applies; the reference is left as authored.
	KindNone Kind = iota
	// KindAsset means Path is a logical asset path to look up.
	KindAsset
	// KindPublic means the reference is site-root-relative and already public.
	KindPublic
)

func (k Kind) String() string {
	switch k {
	case KindAsset:
		return "asset"
	case KindPublic:
		return "public"
	default:
		return "none"
	}
}

// Candidate is the result of resolving one raw reference.
type Candidate struct {
	Kind Kind
	Path string
}

// Resolver maps document-relative and collection-relative references to
// logical asset paths.
type Resolver struct {
	ContentRoot string // default /src/content
	Collection  string // default posts
}

func (r Resolver) contentRoot() string {
	if r.ContentRoot == "" {
		return DefaultContentRoot
	}
	return path.Join("/", r.ContentRoot)
}

// PostsRoot returns the logical directory holding collection documents.
func (r Resolver) PostsRoot() string {
	c := r.Collection
	if c == "" {
		c = DefaultCollection
	}
	return path.Join(r.contentRoot(), c)
}

// Resolve computes the candidate for raw as written in documentID.
//
//	./x       -> <posts root>/<doc dir>/x, or <posts root>/x for top-level documents
//	../../x   -> <content root>/x, every leading ../ stripped
//	/x        -> KindPublic
func (r Resolver) Resolve(documentID, raw string) Candidate {
	switch {
	case strings.HasPrefix(raw, "./"):
		rest := raw[2:]
		if dir, _, ok := strings.Cut(documentID, "/"); ok {
			return Candidate{Kind: KindAsset, Path: r.PostsRoot() + "/" + dir + "/" + rest}
		}
		return Candidate{Kind: KindAsset, Path: r.PostsRoot() + "/" + rest}
	case strings.HasPrefix(raw, "../"):
		rest := raw
		for strings.HasPrefix(rest, "../") {
			rest = rest[3:]
		}
		return Candidate{Kind: KindAsset, Path: r.contentRoot() + "/" + rest}
	case strings.HasPrefix(raw, "/"):
		return Candidate{Kind: KindPublic}
	default:
		return Candidate{Kind: KindNone}
	}
}
