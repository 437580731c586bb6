package persistence

import (
	"database/sql"
	"errors"

	"github.com/IliaW/defacement-crawler/internal/model"
)

type BaselineStorage interface {
	UpsertBaselineHash(siteID int64, normalizedURL, contentHash, baselinePath string) error
	GetBaselineHash(siteID int64, normalizedURL string) (*model.BaselineRecord, error)
}

type BaselineRepository struct {
	db *sql.DB
}

func NewBaselineRepository(db *sql.DB) *BaselineRepository {
	return &BaselineRepository{db: db}
}

func (br *BaselineRepository) UpsertBaselineHash(siteID int64, normalizedURL, contentHash,
	baselinePath string) error {
	_, err := br.db.Exec(`INSERT INTO defacement.baseline_pages
		(site_id, normalized_url, content_hash, baseline_path)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (site_id, normalized_url) DO UPDATE
		SET content_hash = EXCLUDED.content_hash,
		    baseline_path = EXCLUDED.baseline_path`,
		siteID, normalizedURL, contentHash, baselinePath)
	return err
}

// GetBaselineHash returns (nil, nil) when no baseline exists for the URL.
func (br *BaselineRepository) GetBaselineHash(siteID int64,
	normalizedURL string) (*model.BaselineRecord, error) {
	record := &model.BaselineRecord{}
	err := br.db.QueryRow(`SELECT id, content_hash
		FROM defacement.baseline_pages
		WHERE site_id = $1 AND normalized_url = $2`,
		siteID, normalizedURL).Scan(&record.BaselineID, &record.ContentHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}
