package render

import "strings"

// Root containers left empty by single-page-application frameworks.
var spaRootMarkers = []string{
	`<div id="root"`,
	`<div id="app"`,
	`<app-root`,
	`<main id=`,
}

// Gate decides whether raw server HTML needs a browser render to reveal the
// real content. Pure function of the HTML text.
type Gate struct {
	minHtmlBytes           int
	minInteractiveElements int
}

func NewGate(minHtmlBytes, minInteractiveElements int) *Gate {
	return &Gate{
		minHtmlBytes:           minHtmlBytes,
		minInteractiveElements: minInteractiveElements,
	}
}

// NeedsRendering returns true when the HTML is empty, carries an SPA root
// marker, is suspiciously small, or has almost no interactive elements.
func (g *Gate) NeedsRendering(html string) bool {
	if html == "" {
		return true
	}
	h := strings.ToLower(html)
	for _, marker := range spaRootMarkers {
		if strings.Contains(h, marker) {
			return true
		}
	}
	if len(h) < g.minHtmlBytes {
		return true
	}
	interactive := strings.Count(h, "<a ") + strings.Count(h, "<button") + strings.Count(h, "<form")
	return interactive < g.minInteractiveElements
}
