package persistence

import (
	"database/sql"

	"github.com/IliaW/defacement-crawler/internal/model"
)

type SiteStorage interface {
	EnabledSites() ([]model.Site, error)
}

type SiteRepository struct {
	db *sql.DB
}

func NewSiteRepository(db *sql.DB) *SiteRepository {
	return &SiteRepository{db: db}
}

func (sr *SiteRepository) EnabledSites() ([]model.Site, error) {
	rows, err := sr.db.Query(`SELECT siteid, custid, url
		FROM defacement.monitored_sites
		WHERE enabled = TRUE
		ORDER BY siteid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []model.Site
	for rows.Next() {
		var s model.Site
		if err := rows.Scan(&s.SiteID, &s.CustID, &s.URL); err != nil {
			return nil, err
		}
		sites = append(sites, s)
	}

	return sites, rows.Err()
}
