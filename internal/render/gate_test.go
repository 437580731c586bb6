package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNeedsRenderingEmptyHtml(t *testing.T) {
	gate := NewGate(3000, 2)
	assert.True(t, gate.NeedsRendering(""))
}

func TestNeedsRenderingSpaMarkers(t *testing.T) {
	gate := NewGate(10, 0)
	markers := []string{
		`<html><body><div id="root"></div></body></html>`,
		`<html><body><div id="app"></div></body></html>`,
		`<html><body><app-root></app-root></body></html>`,
		`<html><body><main id="content"></main></body></html>`,
	}
	for _, html := range markers {
		assert.True(t, gate.NeedsRendering(html), html)
	}
}

func TestNeedsRenderingSmallHtml(t *testing.T) {
	gate := NewGate(3000, 0)
	assert.True(t, gate.NeedsRendering("<html><body>tiny</body></html>"))
}

func TestNeedsRenderingFewInteractiveElements(t *testing.T) {
	gate := NewGate(10, 2)
	html := `<html><body>` + strings.Repeat("<p>text</p>", 20) + `<a href="/x">one</a></body></html>`
	assert.True(t, gate.NeedsRendering(html))
}

func TestNeedsRenderingFullPage(t *testing.T) {
	gate := NewGate(100, 2)
	html := `<html><body><h1>Welcome</h1>` +
		strings.Repeat(`<a href="/p">link</a>`, 5) +
		`<form action="/search"></form>` +
		strings.Repeat("<p>some article text</p>", 10) +
		`</body></html>`
	assert.False(t, gate.NeedsRendering(html))
}
