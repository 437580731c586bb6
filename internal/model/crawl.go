package model

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

type CrawlMode int

const (
	Baseline CrawlMode = iota
	Crawl
	Compare
)

func (m CrawlMode) String() string {
	return [...]string{"BASELINE", "CRAWL", "COMPARE"}[m]
}

func ParseCrawlMode(s string) (CrawlMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BASELINE":
		return Baseline, nil
	case "CRAWL":
		return Crawl, nil
	case "COMPARE":
		return Compare, nil
	default:
		return Crawl, errors.New("unknown crawl mode: " + s)
	}
}

// Severity is a discrete defacement tier derived from a continuous score.
type Severity string

const (
	SeverityNone     Severity = "NONE"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Task is one unit of frontier work.
type Task struct {
	URL       string
	ParentURL string
	Depth     int
}

type FetchResult struct {
	Success        bool
	StatusCode     int
	Status         string
	Headers        http.Header
	Body           []byte
	ResponseTimeMs int64
}

func (f *FetchResult) ContentType() string {
	if f.Headers == nil {
		return ""
	}
	return f.Headers.Get("Content-Type")
}

type Site struct {
	SiteID int64
	CustID int64
	URL    string
}

type CrawlJob struct {
	JobID        string
	CustID       int64
	SiteID       int64
	StartURL     string
	PagesCrawled int
	Status       string
}

type PageMeta struct {
	JobID          string
	CustID         int64
	SiteID         int64
	URL            string
	ParentURL      string
	Depth          int
	StatusCode     int
	ContentType    string
	ContentLength  int
	ResponseTimeMs int64
	FetchedAt      time.Time
}

// BaselineRecord is the stored hash for one captured page.
type BaselineRecord struct {
	BaselineID  string
	ContentHash string
}

// SelectionRow is a (site, url, baseline) triple actively monitored in COMPARE mode.
type SelectionRow struct {
	SiteID     int64
	URL        string
	BaselineID string
}

type ObservedPage struct {
	SiteID          int64
	BaselineID      string
	NormalizedURL   string
	ObservedHash    string
	Changed         bool
	DiffPath        string
	DefacementScore float64
	Severity        Severity
}

type DefacementAlert struct {
	JobID      string    `json:"job_id"`
	CustID     int64     `json:"custid"`
	SiteID     int64     `json:"siteid"`
	URL        string    `json:"url"`
	BaselineID string    `json:"baseline_id"`
	Score      float64   `json:"defacement_score"`
	Severity   Severity  `json:"severity"`
	DiffPath   string    `json:"diff_path"`
	DetectedAt time.Time `json:"detected_at"`
}

type FrontierStats struct {
	VisitedCount int
}
