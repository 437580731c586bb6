package persistence

import (
	"database/sql"
	"time"

	"github.com/IliaW/defacement-crawler/internal/model"
)

type ObservedStorage interface {
	InsertObservedPage(page *model.ObservedPage) error
}

type ObservedRepository struct {
	db *sql.DB
}

func NewObservedRepository(db *sql.DB) *ObservedRepository {
	return &ObservedRepository{db: db}
}

// InsertObservedPage appends one compare verdict. diff_path is NULL for
// unchanged pages.
func (or *ObservedRepository) InsertObservedPage(page *model.ObservedPage) error {
	var diffPath sql.NullString
	if page.DiffPath != "" {
		diffPath = sql.NullString{String: page.DiffPath, Valid: true}
	}
	_, err := or.db.Exec(`INSERT INTO defacement.observed_pages
		(site_id, baseline_id, normalized_url, observed_hash, changed, diff_path,
		 defacement_score, defacement_severity, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		page.SiteID, page.BaselineID, page.NormalizedURL, page.ObservedHash,
		page.Changed, diffPath, page.DefacementScore, string(page.Severity),
		time.Now().UTC())
	return err
}
