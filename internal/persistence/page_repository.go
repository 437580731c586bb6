package persistence

import (
	"database/sql"
	"log/slog"

	"github.com/IliaW/defacement-crawler/internal/model"
)

type PageStorage interface {
	SavePageMeta(meta *model.PageMeta)
}

type PageRepository struct {
	db *sql.DB
}

func NewPageRepository(db *sql.DB) *PageRepository {
	return &PageRepository{db: db}
}

// SavePageMeta records per-page crawl metadata. Failures are logged, not
// propagated: metadata is diagnostic and must not abort the crawl.
func (pr *PageRepository) SavePageMeta(meta *model.PageMeta) {
	_, err := pr.db.Exec(`INSERT INTO defacement.crawl_pages
		(job_id, custid, siteid, url, parent_url, depth, status_code, content_type,
		 content_length, response_time_ms, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		meta.JobID, meta.CustID, meta.SiteID, meta.URL, meta.ParentURL, meta.Depth,
		meta.StatusCode, meta.ContentType, meta.ContentLength, meta.ResponseTimeMs,
		meta.FetchedAt)
	if err != nil {
		slog.Error("failed to save crawl page metadata.", slog.String("url", meta.URL),
			slog.String("err", err.Error()))
		return
	}
	slog.Debug("crawl page metadata saved.", slog.String("url", meta.URL))
}
