package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractURLs(t *testing.T) {
	html := `<html><body>
		<a href="/about">About</a>
		<a href="https://example.com/contact">Contact</a>
		<a href="https://other.com/page">External</a>
		<a href="#section">Anchor</a>
		<a href="mailto:team@example.com">Mail</a>
		<a href="javascript:void(0)">JS</a>
		<a href="tel:+123456">Call</a>
		<a href="/about">Duplicate</a>
		<a href="/docs#install">Docs</a>
	</body></html>`

	urls, meta, err := ExtractURLs(html, "https://example.com/blog/post")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://example.com/about",
		"https://example.com/contact",
		"https://other.com/page",
		"https://example.com/docs",
	}, urls)
	assert.Equal(t, 9, meta.AnchorCount)
}

func TestExtractURLsRelativeResolution(t *testing.T) {
	html := `<a href="../up">Up</a><a href="sibling">Sibling</a>`
	urls, _, err := ExtractURLs(html, "https://example.com/a/b/c")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://example.com/a/up",
		"https://example.com/a/b/sibling",
	}, urls)
}

func TestExtractURLsEmptyDocument(t *testing.T) {
	urls, meta, err := ExtractURLs("<html><body><p>no links</p></body></html>", "https://example.com")
	require.NoError(t, err)
	assert.Empty(t, urls)
	assert.Equal(t, 0, meta.AnchorCount)
}
