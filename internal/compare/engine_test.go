package compare

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/IliaW/defacement-crawler/internal"
	"github.com/IliaW/defacement-crawler/internal/model"
	"github.com/IliaW/defacement-crawler/internal/normalizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSelection struct {
	rows  []model.SelectionRow
	err   error
	calls int
}

func (f *fakeSelection) SelectedRows() ([]model.SelectionRow, error) {
	f.calls++
	return f.rows, f.err
}

type fakeBaselines struct {
	records map[string]*model.BaselineRecord
}

func (f *fakeBaselines) GetBaselineHash(_ int64, normalizedURL string) (*model.BaselineRecord, error) {
	return f.records[normalizedURL], nil
}

type fakeObserved struct {
	pages []*model.ObservedPage
}

func (f *fakeObserved) InsertObservedPage(p *model.ObservedPage) error {
	f.pages = append(f.pages, p)
	return nil
}

func contentHash(html string) string {
	return internal.HashContent(normalizer.NormalizeHTML(html))
}

func TestHandlePageUnchanged(t *testing.T) {
	html := "<html><body><h1>Welcome</h1></body></html>"
	selection := &fakeSelection{rows: []model.SelectionRow{
		{SiteID: 7, URL: "https://example.com/about", BaselineID: "7-1"},
	}}
	baselines := &fakeBaselines{records: map[string]*model.BaselineRecord{
		"https://example.com/about": {BaselineID: "7-1", ContentHash: contentHash(html)},
	}}
	observed := &fakeObserved{}
	engine := NewEngine(1, "job-1", selection, baselines, observed, nil, nil,
		t.TempDir(), t.TempDir())

	engine.HandlePage(7, "https://example.com/about", html)

	require.Len(t, observed.pages, 1)
	page := observed.pages[0]
	assert.False(t, page.Changed)
	assert.Equal(t, 0.0, page.DefacementScore)
	assert.Equal(t, model.SeverityNone, page.Severity)
	assert.Equal(t, "7-1", page.BaselineID)
	assert.Empty(t, page.DiffPath)
}

func TestHandlePageChanged(t *testing.T) {
	oldHTML := "<html><body><h1>Welcome</h1>\n<p>our site</p>\n</body></html>"
	newHTML := "<html><body><h1>HACKED</h1>\n<p>by evil</p>\n</body></html>"

	baselineRoot := t.TempDir()
	diffRoot := t.TempDir()
	siteDir := filepath.Join(baselineRoot, "1", "7")
	require.NoError(t, os.MkdirAll(siteDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(siteDir, "7-1.html"), []byte(oldHTML), 0o644))

	selection := &fakeSelection{rows: []model.SelectionRow{
		{SiteID: 7, URL: "https://example.com/about", BaselineID: "7-1"},
	}}
	baselines := &fakeBaselines{records: map[string]*model.BaselineRecord{
		"https://example.com/about": {BaselineID: "7-1", ContentHash: contentHash(oldHTML)},
	}}
	observed := &fakeObserved{}
	alertChan := make(chan *model.DefacementAlert, 1)
	engine := NewEngine(1, "job-1", selection, baselines, observed, nil, alertChan,
		baselineRoot, diffRoot)

	engine.HandlePage(7, "https://example.com/about", newHTML)

	require.Len(t, observed.pages, 1)
	page := observed.pages[0]
	assert.True(t, page.Changed)
	assert.Greater(t, page.DefacementScore, 0.0)
	assert.NotEqual(t, model.SeverityNone, page.Severity)
	assert.FileExists(t, page.DiffPath)

	alert := <-alertChan
	assert.Equal(t, "job-1", alert.JobID)
	assert.Equal(t, int64(1), alert.CustID)
	assert.Equal(t, int64(7), alert.SiteID)
	assert.Equal(t, "7-1", alert.BaselineID)
	assert.Equal(t, page.DefacementScore, alert.Score)
	assert.Equal(t, page.DiffPath, alert.DiffPath)
	assert.False(t, alert.DetectedAt.IsZero())
}

func TestHandlePageTrailingSlashTolerance(t *testing.T) {
	html := "<html><body><h1>About</h1></body></html>"
	// Selection row stored with a trailing slash, baseline hash keyed on the
	// slash variant, page observed without one.
	selection := &fakeSelection{rows: []model.SelectionRow{
		{SiteID: 7, URL: "https://example.com/about/", BaselineID: "7-2"},
	}}
	baselines := &fakeBaselines{records: map[string]*model.BaselineRecord{
		"https://example.com/about/": {BaselineID: "7-2", ContentHash: contentHash(html)},
	}}
	observed := &fakeObserved{}
	engine := NewEngine(1, "job-1", selection, baselines, observed, nil, nil,
		t.TempDir(), t.TempDir())

	engine.HandlePage(7, "https://example.com/about", html)

	require.Len(t, observed.pages, 1)
	assert.False(t, observed.pages[0].Changed)
}

func TestHandlePageNoMatchingRow(t *testing.T) {
	selection := &fakeSelection{rows: []model.SelectionRow{
		{SiteID: 7, URL: "https://example.com/other", BaselineID: "7-3"},
	}}
	observed := &fakeObserved{}
	engine := NewEngine(1, "job-1", selection, &fakeBaselines{}, observed, nil, nil,
		t.TempDir(), t.TempDir())

	engine.HandlePage(7, "https://example.com/about", "<html></html>")

	assert.Empty(t, observed.pages)
}

func TestHandlePageMissingBaselineFile(t *testing.T) {
	selection := &fakeSelection{rows: []model.SelectionRow{
		{SiteID: 7, URL: "https://example.com/about", BaselineID: "7-9"},
	}}
	baselines := &fakeBaselines{records: map[string]*model.BaselineRecord{
		"https://example.com/about": {BaselineID: "7-9", ContentHash: "different-hash"},
	}}
	observed := &fakeObserved{}
	engine := NewEngine(1, "job-1", selection, baselines, observed, nil, nil,
		t.TempDir(), t.TempDir())

	engine.HandlePage(7, "https://example.com/about", "<html>changed</html>")

	// Snapshot file is gone; the page is skipped rather than mis-scored.
	assert.Empty(t, observed.pages)
}

func TestSelectionRowsLoadedOnce(t *testing.T) {
	selection := &fakeSelection{err: errors.New("db down")}
	engine := NewEngine(1, "job-1", selection, &fakeBaselines{}, &fakeObserved{}, nil, nil,
		t.TempDir(), t.TempDir())

	engine.HandlePage(7, "https://example.com/a", "<html></html>")
	engine.HandlePage(7, "https://example.com/b", "<html></html>")

	assert.Equal(t, 1, selection.calls)
}
