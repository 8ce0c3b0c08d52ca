package document

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Strikethrough),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// ParseMarkdown renders Markdown with goldmark and reads the result into a document.
// Raw HTML in the source is not rendered.
func ParseMarkdown(src []byte) (*Document, error) {
	var buf bytes.Buffer
	if err := markdown.Convert(src, &buf); err != nil {
		return nil, errors.Wrap(err, "rendering markdown")
	}
	return ParseHTML(buf.String())
}
