// Package render turns model output into display HTML.
package render

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"fwk-assistant/internal/logging"
)

// Converter turns markdown into HTML.
type Converter interface {
	Convert(source []byte, w *bytes.Buffer) error
}

type goldmarkConverter struct {
	md goldmark.Markdown
}

func (g goldmarkConverter) Convert(source []byte, w *bytes.Buffer) error {
	return g.md.Convert(source, w)
}

type Renderer struct {
	converter Converter
}

// New returns a renderer backed by goldmark with GitHub-flavored extensions.
func New() *Renderer {
	return &Renderer{converter: goldmarkConverter{md: goldmark.New(goldmark.WithExtensions(extension.GFM))}}
}

// NewWithConverter returns a renderer using c. A nil c renders plain text.
func NewWithConverter(c Converter) *Renderer {
	return &Renderer{converter: c}
}

var escaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

// Markdown escapes angle brackets and converts the result. Without a working
// converter the input comes back unchanged.
func (r *Renderer) Markdown(text string) string {
	if r == nil || r.converter == nil {
		return text
	}
	var buf bytes.Buffer
	if err := r.converter.Convert([]byte(escaper.Replace(text)), &buf); err != nil {
		logging.Logger().Warn("markdown conversion failed", "error", err)
		return text
	}
	return buf.String()
}

var defaultRenderer = New()

func Markdown(text string) string {
	return defaultRenderer.Markdown(text)
}
