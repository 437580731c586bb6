package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
	}{
		{"HTTPS://Example.COM/Path", "https://example.com/Path"},
		{"https://example.com:443/about", "https://example.com/about"},
		{"http://example.com:80/about", "http://example.com/about"},
		{"https://example.com:8443/about", "https://example.com:8443/about"},
		{"https://example.com/page#section", "https://example.com/page"},
		{"example.com/about", "https://example.com/about"},
		{"  https://example.com  ", "https://example.com"},
		{"https://example.com/search?q=a&b=c", "https://example.com/search?q=a&b=c"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, NormalizeURL(tc.in), tc.in)
	}
}

func TestNormalizeHTMLStripsVolatileContent(t *testing.T) {
	html := `<html>
	<head>
		<!-- build 42 -->
		<script src="app.js"></script>
		<style>body { color: red; }</style>
	</head>
	<body>
		<h1>  Hello   World  </h1>
	</body>
</html>`

	got := NormalizeHTML(html)
	assert.NotContains(t, got, "build 42")
	assert.NotContains(t, got, "app.js")
	assert.NotContains(t, got, "color: red")
	assert.Contains(t, got, "Hello World")
}

func TestNormalizeHTMLStableAcrossFormatting(t *testing.T) {
	a := "<html><body><h1>Title</h1><p>text</p></body></html>"
	b := "<html>\n  <body>\n    <h1>Title</h1>\n    <p>text</p>\n  </body>\n</html>"
	assert.Equal(t, NormalizeHTML(a), NormalizeHTML(b))
}

func TestNormalizeHTMLDetectsContentChange(t *testing.T) {
	a := "<html><body><h1>Welcome</h1></body></html>"
	b := "<html><body><h1>HACKED</h1></body></html>"
	assert.NotEqual(t, NormalizeHTML(a), NormalizeHTML(b))
}

func TestNormalizeRenderedHTMLKeepsScripts(t *testing.T) {
	html := "<html>\n<body>\n<script>hydrate()</script>\n<p>content</p>\n</body>\n</html>"
	got := NormalizeRenderedHTML(html)
	assert.Contains(t, got, "hydrate()")
	assert.NotContains(t, got, ">\n<")
}
