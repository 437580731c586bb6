package fetch

import (
	"net/http"
	"time"

	"github.com/IliaW/defacement-crawler/config"
	"github.com/IliaW/defacement-crawler/internal/model"
	"github.com/gocolly/colly"
)

type Fetcher interface {
	Fetch(url, parentURL string, depth int) *model.FetchResult
}

// CollyFetcher performs plain HTTP fetches through a shared transport.
// Retries, if any, are not this layer's concern: a failed fetch is returned
// as-is and the task is abandoned by the caller.
type CollyFetcher struct {
	cfg       *config.Config
	transport *http.Transport
}

func NewCollyFetcher(cfg *config.Config, transport *http.Transport) *CollyFetcher {
	return &CollyFetcher{cfg: cfg, transport: transport}
}

func (f *CollyFetcher) Fetch(url, _ string, _ int) *model.FetchResult {
	result := &model.FetchResult{}

	c := colly.NewCollector()
	c.WithTransport(f.transport)
	c.SetRequestTimeout(f.cfg.HttpClientSettings.RequestTimeout)
	c.UserAgent = f.cfg.WorkerSettings.UserAgent

	c.OnResponse(func(resp *colly.Response) {
		result.Success = true
		result.StatusCode = resp.StatusCode
		result.Status = http.StatusText(resp.StatusCode)
		result.Body = resp.Body
		result.Headers = http.Header(*resp.Headers)
	})
	c.OnError(func(resp *colly.Response, err error) {
		result.Success = false
		result.StatusCode = resp.StatusCode
		if len(err.Error()) > 1000 {
			result.Status = err.Error()[:1000]
		} else {
			result.Status = err.Error()
		}
		if resp.Headers != nil {
			result.Headers = http.Header(*resp.Headers)
		}
	})

	t := time.Now()
	err := c.Visit(url)
	result.ResponseTimeMs = time.Since(t).Milliseconds()
	if err != nil && result.Status == "" {
		result.Success = false
		result.Status = err.Error()
	}
	if result.Headers == nil {
		result.Headers = http.Header{}
	}

	return result
}
