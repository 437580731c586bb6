package persistence

import (
	"database/sql"

	"github.com/IliaW/defacement-crawler/internal/model"
)

type SelectionStorage interface {
	SelectedRows() ([]model.SelectionRow, error)
	InsertSelectionRow(siteID int64, baselineID, url string) error
}

type SelectionRepository struct {
	db *sql.DB
}

func NewSelectionRepository(db *sql.DB) *SelectionRepository {
	return &SelectionRepository{db: db}
}

// SelectedRows returns the defacement_sites rows actively monitored in
// COMPARE mode.
func (sr *SelectionRepository) SelectedRows() ([]model.SelectionRow, error) {
	rows, err := sr.db.Query(`SELECT siteid, url, baseline_id
		FROM defacement.defacement_sites
		WHERE action = 'selected'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var selected []model.SelectionRow
	for rows.Next() {
		var r model.SelectionRow
		if err := rows.Scan(&r.SiteID, &r.URL, &r.BaselineID); err != nil {
			return nil, err
		}
		selected = append(selected, r)
	}

	return selected, rows.Err()
}

func (sr *SelectionRepository) InsertSelectionRow(siteID int64, baselineID, url string) error {
	_, err := sr.db.Exec(`INSERT INTO defacement.defacement_sites
		(siteid, baseline_id, url, action)
		VALUES ($1, $2, $3, 'pending')`,
		siteID, baselineID, url)
	return err
}
