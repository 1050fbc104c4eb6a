package markup

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var (
	md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			gmhtml.WithHardWraps(),
			gmhtml.WithXHTML(),
		),
	)
	ugc    = bluemonday.UGCPolicy()
	strict = bluemonday.StrictPolicy()

	linkPattern = regexp.MustCompile(`(?i)(http|https|ftp)://`)
)

func init() {
	ugc.AddTargetBlankToFullyQualifiedLinks(true)
	ugc.RequireNoReferrerOnLinks(true)
}

// PlainText strips every tag, used for titles and anonymous author fields.
// Content bodies are stored as written and only sanitized by Render.
func PlainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// Render turns stored markdown into safe HTML. Runs on read.
func Render(content string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		return ugc.Sanitize(content)
	}
	return string(ugc.SanitizeBytes(buf.Bytes()))
}

// CountLinks counts URL schemes in raw content
func CountLinks(content string) int {
	return len(linkPattern.FindAllStringIndex(content, -1))
}
