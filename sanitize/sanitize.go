// Package sanitize strips feed item markup down to an allowed tag set.
package sanitize

import "github.com/microcosm-cc/bluemonday"

// DefaultTags is the base set of elements kept in item content.
var DefaultTags = []string{
	"address", "article", "aside", "footer", "header",
	"h1", "h2", "h3", "h4", "h5", "h6", "hgroup", "main", "nav", "section",
	"blockquote", "dd", "div", "dl", "dt", "figcaption", "figure", "hr", "li",
	"ol", "p", "pre", "ul",
	"a", "abbr", "b", "bdi", "bdo", "br", "cite", "code", "data", "dfn", "em",
	"i", "kbd", "mark", "q", "rb", "rp", "rt", "rtc", "ruby", "s", "samp",
	"small", "span", "strong", "sub", "sup", "time", "u", "var", "wbr",
	"caption", "col", "colgroup", "table", "tbody", "td", "tfoot", "th",
	"thead", "tr",
}

// Policy sanitizes HTML fragments. It is safe for concurrent use once built.
type Policy struct {
	p *bluemonday.Policy
}

// New returns a policy allowing DefaultTags plus extra.
func New(extra ...string) *Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(DefaultTags...)
	if len(extra) > 0 {
		p.AllowElements(extra...)
	}
	p.AllowAttrs("href", "name", "target").OnElements("a")
	p.AllowAttrs("src", "srcset", "alt", "title", "width", "height", "loading").OnElements("img")
	p.AllowURLSchemes("http", "https", "ftp", "mailto", "tel")
	p.AllowRelativeURLs(true)
	p.RequireParseableURLs(true)
	return &Policy{p: p}
}

// HTML returns the sanitized form of s.
func (p *Policy) HTML(s string) string {
	return p.p.Sanitize(s)
}
