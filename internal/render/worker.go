package render

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/IliaW/defacement-crawler/config"
	"github.com/IliaW/defacement-crawler/internal/normalizer"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
)

var ErrRenderTimeout = errors.New("render timeout")

type renderResult struct {
	html string
	err  error
}

type renderRequest struct {
	url  string
	done chan renderResult
}

// Worker serializes all browser rendering through a single consumer goroutine
// so only one page is rendered at a time, bounding Chrome's memory and CPU
// use. The browser session is created lazily exactly once and reused for the
// process lifetime; each request opens and closes its own tab.
type Worker struct {
	cfg      *config.RenderConfig
	requests chan *renderRequest
	renderFn func(url string) (string, error)

	browserOnce   sync.Once
	browserErr    error
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	userAgent     string
}

func NewWorker(cfg *config.RenderConfig, userAgent string) *Worker {
	w := &Worker{
		cfg:       cfg,
		requests:  make(chan *renderRequest, 64),
		userAgent: userAgent,
	}
	w.renderFn = w.renderWithBrowser
	return w
}

// Run consumes render requests until ctx is canceled. Results are delivered
// on per-request buffered channels, so a caller that timed out and walked
// away never blocks the worker.
func (w *Worker) Run(ctx context.Context) {
	slog.Debug("starting render worker.")
	for {
		select {
		case <-ctx.Done():
			w.closeBrowser()
			return
		case req := <-w.requests:
			html, err := w.renderFn(req.url)
			if err == nil {
				html = normalizer.NormalizeRenderedHTML(html)
			}
			req.done <- renderResult{html: html, err: err}
		}
	}
}

// Render submits a URL and blocks until the page is rendered or the timeout
// elapses. The timeout cancels only this caller's wait; an in-flight render
// still completes and its late result is dropped.
func (w *Worker) Render(url string, timeout time.Duration) (string, error) {
	req := &renderRequest{url: url, done: make(chan renderResult, 1)}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case w.requests <- req:
	case <-timer.C:
		return "", ErrRenderTimeout
	}

	select {
	case res := <-req.done:
		return res.html, res.err
	case <-timer.C:
		return "", ErrRenderTimeout
	}
}

func (w *Worker) ensureBrowser() error {
	w.browserOnce.Do(func() {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(w.userAgent),
		)
		allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
		browserCtx, browserCancel := chromedp.NewContext(allocCtx)
		if err := chromedp.Run(browserCtx); err != nil {
			browserCancel()
			allocCancel()
			w.browserErr = err
			return
		}
		w.browserCtx = browserCtx
		w.browserCancel = browserCancel
		w.allocCancel = allocCancel
		slog.Info("headless browser session started.")
	})
	return w.browserErr
}

func (w *Worker) closeBrowser() {
	if w.browserCancel != nil {
		w.browserCancel()
	}
	if w.allocCancel != nil {
		w.allocCancel()
	}
}

func (w *Worker) renderWithBrowser(url string) (string, error) {
	if err := w.ensureBrowser(); err != nil {
		return "", err
	}

	tabCtx, cancelTab := chromedp.NewContext(w.browserCtx)
	defer cancelTab()
	ctx, cancel := context.WithTimeout(tabCtx, w.cfg.NavigationTimeout)
	defer cancel()

	var html string
	var hydrated bool
	err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		// Bounded wait for client-side hydration; a timeout here is not an
		// error, the page is captured as-is.
		chromedp.ActionFunc(func(ctx context.Context) error {
			err := chromedp.Poll("document.body && document.body.children.length > 0", &hydrated,
				chromedp.WithPollingTimeout(w.cfg.HydrationTimeout)).Do(ctx)
			if err != nil && !errors.Is(err, chromedp.ErrPollingTimeout) {
				return err
			}
			return nil
		}),
		chromedp.Sleep(w.cfg.HydrationGrace),
		chromedp.ActionFunc(func(ctx context.Context) error {
			rootNode, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			html, err = dom.GetOuterHTML().WithNodeID(rootNode.NodeID).Do(ctx)
			return err
		}),
	)
	return html, err
}
