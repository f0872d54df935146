package pubfeed

import (
	"net/url"
	"path"
	"strings"
)

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// isFeedPath reports whether p is one of the generated documents.
func isFeedPath(p string) bool {
	return p == "/rss.xml" || p == "/sitemap.xml" || p == "/robots.txt"
}

// hasExt reports whether the last segment of p looks like a file name.
func hasExt(p string) bool {
	return path.Ext(p) != ""
}
