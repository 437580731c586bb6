package fetch

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type ExtractMeta struct {
	AnchorCount int
}

// ExtractURLs returns the absolute outgoing links of an HTML document,
// resolved against baseURL. Fragment-only, mailto, javascript and tel links
// are skipped; fragments are stripped from kept links.
func ExtractURLs(html, baseURL string) ([]string, ExtractMeta, error) {
	meta := ExtractMeta{}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, meta, err
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, meta, err
	}

	seen := make(map[string]struct{})
	var urls []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		meta.AnchorCount++
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "javascript:") ||
			strings.HasPrefix(lower, "tel:") || strings.HasPrefix(lower, "data:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		abs.Fragment = ""
		link := abs.String()
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		urls = append(urls, link)
	})

	return urls, meta, nil
}
