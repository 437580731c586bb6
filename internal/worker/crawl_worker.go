package worker

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IliaW/defacement-crawler/config"
	"github.com/IliaW/defacement-crawler/internal/fetch"
	"github.com/IliaW/defacement-crawler/internal/filter"
	"github.com/IliaW/defacement-crawler/internal/frontier"
	"github.com/IliaW/defacement-crawler/internal/model"
	"github.com/IliaW/defacement-crawler/internal/normalizer"
	"github.com/IliaW/defacement-crawler/internal/render"
	"github.com/IliaW/defacement-crawler/internal/telemetry"
)

type Renderer interface {
	Render(url string, timeout time.Duration) (string, error)
}

type RenderCache interface {
	Get(url string) (string, bool)
	Set(url, html string)
}

type SnapshotStorage interface {
	StoreSnapshot(siteID int64, url, html string, mode model.CrawlMode) (string, string, error)
	StoreBaselineHash(siteID int64, normalizedURL, rawHTML, baselinePath string) (string, error)
}

type PageComparer interface {
	HandlePage(siteID int64, url, html string)
}

type PageStorage interface {
	SavePageMeta(meta *model.PageMeta)
}

// CrawlWorker drains the frontier and runs the per-page pipeline: fetch,
// render escalation, link extraction, mode dispatch, child filtering. Every
// dequeued task is marked visited exactly once, success or not, so the job
// always drains.
type CrawlWorker struct {
	Name        string
	Frontier    *frontier.Frontier
	Fetcher     fetch.Fetcher
	Gate        *render.Gate
	Renderer    Renderer
	RenderCache RenderCache
	BlockReport *filter.BlockReport
	Pages       PageStorage
	Snapshots   SnapshotStorage
	Engine      PageComparer
	Cfg         *config.Config
	Metrics     *telemetry.AppMetrics
	CrawlMode   model.CrawlMode
	JobID       string
	CustID      int64
	SiteID      int64
	SeedURL     string
	Wg          *sync.WaitGroup

	stopped atomic.Bool
}

func (w *CrawlWorker) Run() {
	defer w.Wg.Done()
	slog.Debug("starting crawl worker.", slog.String("worker", w.Name),
		slog.String("mode", w.CrawlMode.String()))

	for !w.stopped.Load() {
		task, ok := w.Frontier.Dequeue()
		if !ok {
			time.Sleep(w.Cfg.WorkerSettings.DequeueBackoff)
			continue
		}
		w.process(task)
	}
}

// Stop makes the worker exit at the top of its loop. The in-flight task is
// not interrupted.
func (w *CrawlWorker) Stop() {
	w.stopped.Store(true)
}

func (w *CrawlWorker) process(task *model.Task) {
	defer w.Frontier.MarkVisited(task.URL, true)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while processing task.", slog.String("worker", w.Name),
				slog.String("url", task.URL), slog.Any("panic", r))
		}
	}()

	slog.Debug("crawling.", slog.String("worker", w.Name), slog.String("url", task.URL))
	result := w.Fetcher.Fetch(task.URL, task.ParentURL, task.Depth)
	fetchedAt := time.Now().UTC()
	if !result.Success {
		slog.Error("fetch failed.", slog.String("url", task.URL), slog.String("status", result.Status))
		w.Metrics.FetchFailedCnt(1)
		return
	}

	contentType := result.ContentType()
	w.Pages.SavePageMeta(&model.PageMeta{
		JobID:          w.JobID,
		CustID:         w.CustID,
		SiteID:         w.SiteID,
		URL:            task.URL,
		ParentURL:      task.ParentURL,
		Depth:          task.Depth,
		StatusCode:     result.StatusCode,
		ContentType:    contentType,
		ContentLength:  len(result.Body),
		ResponseTimeMs: result.ResponseTimeMs,
		FetchedAt:      fetchedAt,
	})
	w.Metrics.PagesCrawledCnt(1)

	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return
	}

	html, ok := w.finalHtml(task.URL, string(result.Body))
	if !ok {
		return
	}

	urls, _, err := fetch.ExtractURLs(html, task.URL)
	if err != nil {
		slog.Error("link extraction failed.", slog.String("url", task.URL),
			slog.String("err", err.Error()))
		return
	}
	if len(urls) == 0 {
		slog.Warn("no urls extracted.", slog.String("url", task.URL),
			slog.Int("html_size", len(html)))
	}

	if !w.dispatchMode(task.URL, html) {
		return
	}

	w.enqueueChildren(task, urls)
}

// finalHtml ensures the HTML is fully rendered before any extraction or
// comparison: if the gate triggers, the render cache is consulted and misses
// go through the render worker.
func (w *CrawlWorker) finalHtml(url, html string) (string, bool) {
	if !w.Gate.NeedsRendering(html) {
		return html, true
	}
	if cached, ok := w.RenderCache.Get(url); ok {
		w.Metrics.RenderCacheHitCnt(1)
		return cached, true
	}

	slog.Debug("render escalation.", slog.String("url", url))
	rendered, err := w.Renderer.Render(url, w.Cfg.RenderSettings.RequestTimeout)
	if err != nil {
		slog.Error("render failed.", slog.String("url", url), slog.String("err", err.Error()))
		w.Metrics.RenderFailedCnt(1)
		return "", false
	}
	w.Metrics.RenderCnt(1)
	w.RenderCache.Set(url, rendered)

	return rendered, true
}

func (w *CrawlWorker) dispatchMode(url, html string) bool {
	switch w.CrawlMode {
	case model.Baseline:
		_, path, err := w.Snapshots.StoreSnapshot(w.SiteID, url, html, w.CrawlMode)
		if err != nil {
			slog.Error("failed to store snapshot.", slog.String("url", url),
				slog.String("err", err.Error()))
			return false
		}
		_, err = w.Snapshots.StoreBaselineHash(w.SiteID, normalizer.NormalizeURL(url), html, path)
		if err != nil {
			slog.Error("failed to store baseline hash.", slog.String("url", url),
				slog.String("err", err.Error()))
			return false
		}
	case model.Compare:
		w.Engine.HandlePage(w.SiteID, url, html)
	}
	return true
}

func (w *CrawlWorker) enqueueChildren(task *model.Task, urls []string) {
	enqueued := 0
	for _, u := range urls {
		if reason := filter.ClassifyBlock(u); reason != "" {
			bucket := filter.ReasonBlockRule
			if reason == filter.ReasonStatic {
				bucket = filter.ReasonStatic
			}
			w.BlockReport.Add(bucket, u)
			w.Metrics.BlockedUrlCnt(1)
			continue
		}
		if !filter.AllowedDomain(w.SeedURL, u) {
			w.BlockReport.Add(filter.ReasonDomainFilter, u)
			w.Metrics.BlockedUrlCnt(1)
			continue
		}
		w.Frontier.Enqueue(u, task.URL, task.Depth+1)
		enqueued++
	}
	if enqueued > 0 {
		slog.Debug("enqueued child urls.", slog.String("worker", w.Name), slog.Int("count", enqueued))
	}
}
