package filter

import (
	"net/url"
	"regexp"
	"strings"
	"sync"
)

// Block reasons reported for dropped child URLs.
const (
	ReasonBlockRule    = "BLOCK_RULE"
	ReasonStatic       = "STATIC"
	ReasonDomainFilter = "DOMAIN_FILTER"
)

var pathBlockRules = map[string]*regexp.Regexp{
	"TAG_PAGE":    regexp.MustCompile(`^/tag/`),
	"AUTHOR_PAGE": regexp.MustCompile(`^/author/`),
	"PAGINATION":  regexp.MustCompile(`/page/\d*/?$`),
}

var staticExtensions = []string{
	".css", ".js", ".png", ".jpg", ".jpeg",
	".gif", ".svg", ".ico", ".pdf", ".zip",
}

// ClassifyBlock returns the block reason for a URL, or "" when it may be
// crawled. Static assets are reported as STATIC, path rule hits as the rule
// name.
func ClassifyBlock(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ReasonBlockRule
	}
	p := strings.ToLower(u.Path)
	for _, ext := range staticExtensions {
		if strings.HasSuffix(p, ext) {
			return ReasonStatic
		}
	}
	for name, re := range pathBlockRules {
		if re.MatchString(p) {
			return name
		}
	}
	return ""
}

// AllowedDomain reports whether candidate's host matches the seed host,
// tolerating a leading "www." in either direction. Ports are ignored.
func AllowedDomain(seedURL, candidateURL string) bool {
	seedHost := hostOf(seedURL)
	candHost := hostOf(candidateURL)
	if seedHost == "" || candHost == "" {
		return false
	}
	base := strings.TrimPrefix(seedHost, "www.")
	return candHost == base || candHost == "www."+base
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Host)
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}
	return host
}

// BlockReport aggregates blocked URLs by reason across all workers. It is
// append-only during a job and read after the crawl for diagnostics.
type BlockReport struct {
	mu      sync.Mutex
	blocked map[string][]string
}

func NewBlockReport() *BlockReport {
	return &BlockReport{blocked: make(map[string][]string)}
}

func (r *BlockReport) Add(reason, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocked[reason] = append(r.blocked[reason], url)
}

// Snapshot returns a copy of the report; safe to read while workers run.
func (r *BlockReport) Snapshot() map[string][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]string, len(r.blocked))
	for reason, urls := range r.blocked {
		out[reason] = append([]string(nil), urls...)
	}
	return out
}
