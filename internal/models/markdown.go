package models

import (
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(
			highlighting.WithStyle("monokai"),
		),
	),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

// RenderMarkdown converts assistant markdown content to HTML for the panel templates. If the
// conversion fails the raw content is returned unchanged, so a rendering problem never hides a
// response from the user.
func RenderMarkdown(content string) string {
	var sb strings.Builder
	if err := markdown.Convert([]byte(content), &sb); err != nil {
		return content
	}
	return sb.String()
}
