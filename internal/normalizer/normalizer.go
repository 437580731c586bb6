package normalizer

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	whitespaceRe   = regexp.MustCompile(`\s+`)
	interTagRe     = regexp.MustCompile(`>\s+<`)
	scriptStyleRe  = regexp.MustCompile(`(?si)<(script|style)\b[^>]*>.*?</(script|style)>`)
	htmlCommentsRe = regexp.MustCompile(`(?s)<!--.*?-->`)
)

// NormalizeURL returns the canonical form of a URL used for frontier dedup,
// baseline lookup and compare matching: lowercase scheme and host, default
// ports and fragments stripped, path and query preserved as-is.
func NormalizeURL(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return raw
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return strings.TrimSpace(rawURL)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if (u.Scheme == "http" && strings.HasSuffix(host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(host, ":443")) {
		host = host[:strings.LastIndex(host, ":")]
	}
	u.Host = host
	u.Fragment = ""
	return u.String()
}

// NormalizeHTML produces the canonical HTML used for content hashing:
// comments, scripts and styles removed, whitespace collapsed. The result is
// stable across cosmetic re-serialization so baseline and observation hashes
// only differ on real content changes.
func NormalizeHTML(html string) string {
	h := htmlCommentsRe.ReplaceAllString(html, "")
	h = scriptStyleRe.ReplaceAllString(h, "")
	h = interTagRe.ReplaceAllString(h, "><")
	h = whitespaceRe.ReplaceAllString(h, " ")
	return strings.TrimSpace(h)
}

// NormalizeRenderedHTML cleans browser-rendered output before caching and
// link extraction. Rendered DOM keeps its scripts; only whitespace noise is
// collapsed.
func NormalizeRenderedHTML(html string) string {
	h := interTagRe.ReplaceAllString(html, "><")
	return strings.TrimSpace(h)
}
