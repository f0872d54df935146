// Package markdown renders content bodies to HTML fragments with goldmark.
package markdown

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
)

// Options tunes the renderer.
type Options struct {
	// Unsafe passes raw HTML in the source through to the output. Off by
	// default, so inline HTML is replaced with a comment.
	Unsafe    bool
	HardWraps bool
}

// Renderer converts markdown to HTML. It is stateless and safe for
// concurrent use.
type Renderer struct {
	md goldmark.Markdown
}

// New builds a renderer with GFM, linkify and automatic heading IDs.
func New(opts Options) *Renderer {
	var rendererOpts []renderer.Option
	if opts.Unsafe {
		rendererOpts = append(rendererOpts, html.WithUnsafe())
	}
	if opts.HardWraps {
		rendererOpts = append(rendererOpts, html.WithHardWraps())
	}
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Linkify),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(rendererOpts...),
		),
	}
}

// Render converts body to an HTML fragment.
func (r *Renderer) Render(body []byte) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert(body, &buf); err != nil {
		return "", fmt.Errorf("markdown render: %w", err)
	}
	return buf.String(), nil
}
