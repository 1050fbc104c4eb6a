package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderDropsScripts(t *testing.T) {
	out := Render(`hello <script>alert(1)</script> <b>world</b>`)
	assert.NotContains(t, out, "<script")
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "Title", PlainText(" <i>Title</i> "))
	assert.Equal(t, "Q&A", PlainText("Q&A"))
}

func TestRenderMarkdown(t *testing.T) {
	out := Render("**bold** [x](https://example.com)")
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.Contains(t, out, `href="https://example.com"`)
	assert.Contains(t, out, "noreferrer")
}

func TestCountLinks(t *testing.T) {
	assert.Equal(t, 0, CountLinks("no links here"))
	assert.Equal(t, 3, CountLinks("http://a.com HTTPS://b.com ftp://c.org"))
}
