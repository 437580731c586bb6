package compare

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/IliaW/defacement-crawler/internal"
	"github.com/IliaW/defacement-crawler/internal/model"
	"github.com/IliaW/defacement-crawler/internal/normalizer"
)

type SelectionSource interface {
	SelectedRows() ([]model.SelectionRow, error)
}

type BaselineReader interface {
	GetBaselineHash(siteID int64, normalizedURL string) (*model.BaselineRecord, error)
}

type ObservedWriter interface {
	InsertObservedPage(*model.ObservedPage) error
}

type Archiver interface {
	WriteFile(key string, body []byte) error
}

// Engine reconciles observed pages against baseline records and persists a
// change verdict per matched page. It never touches the frontier; transient
// storage failures are logged and swallowed so the surrounding crawl keeps
// draining.
type Engine struct {
	custID       int64
	jobID        string
	selection    SelectionSource
	baselines    BaselineReader
	observed     ObservedWriter
	archive      Archiver // optional S3 mirror, may be nil
	alertChan    chan<- *model.DefacementAlert
	baselineRoot string
	diffRoot     string

	loadOnce sync.Once
	rows     []model.SelectionRow
}

func NewEngine(custID int64, jobID string, selection SelectionSource, baselines BaselineReader,
	observed ObservedWriter, archive Archiver, alertChan chan<- *model.DefacementAlert,
	baselineRoot, diffRoot string) *Engine {
	return &Engine{
		custID:       custID,
		jobID:        jobID,
		selection:    selection,
		baselines:    baselines,
		observed:     observed,
		archive:      archive,
		alertChan:    alertChan,
		baselineRoot: baselineRoot,
		diffRoot:     diffRoot,
	}
}

// Selection rows are loaded once per engine and never refreshed within a job.
func (e *Engine) loadRows() []model.SelectionRow {
	e.loadOnce.Do(func() {
		rows, err := e.selection.SelectedRows()
		if err != nil {
			slog.Error("failed to load defacement selection rows.", slog.String("err", err.Error()))
			return
		}
		e.rows = rows
		slog.Info("loaded defacement selection rows.", slog.Int("count", len(rows)))
	})
	return e.rows
}

// HandlePage compares one observed page against every matching selection row.
// URL matching tolerates inconsistent trailing-slash conventions between
// crawl time and baseline time: the canonical form and both slash variants
// are all tried.
func (e *Engine) HandlePage(siteID int64, url, html string) {
	rows := e.loadRows()
	if len(rows) == 0 {
		slog.Debug("no defacement rows to compare. skipping.", slog.String("url", url))
		return
	}

	canon := normalizer.NormalizeURL(url)
	canonSlash := withSlash(canon)
	canonNoSlash := strings.TrimRight(canon, "/")
	observedHash := internal.HashContent(normalizer.NormalizeHTML(html))

	matched := false
	for _, row := range rows {
		rowCanon := normalizer.NormalizeURL(row.URL)
		if canon != rowCanon && canonSlash != withSlash(rowCanon) &&
			canonNoSlash != strings.TrimRight(rowCanon, "/") {
			continue
		}
		matched = true
		e.compareRow(siteID, row, url, canon, canonSlash, canonNoSlash, observedHash, html)
	}

	if !matched {
		slog.Debug("no matching defacement row.", slog.String("url", url))
	}
}

func (e *Engine) compareRow(siteID int64, row model.SelectionRow, url, canon, canonSlash,
	canonNoSlash, observedHash, html string) {
	baseline := e.resolveBaseline(siteID, canon, canonSlash, canonNoSlash)
	if baseline == nil {
		slog.Warn("no baseline hash found for url or its slash variants.",
			slog.String("url", canon), slog.Int64("site_id", siteID))
		return
	}

	if observedHash == baseline.ContentHash {
		e.insertObserved(&model.ObservedPage{
			SiteID:          siteID,
			BaselineID:      row.BaselineID,
			NormalizedURL:   canon,
			ObservedHash:    observedHash,
			Changed:         false,
			DefacementScore: 0.0,
			Severity:        model.SeverityNone,
		})
		return
	}

	slog.Warn("change detected.", slog.String("url", url), slog.String("baseline_id", row.BaselineID))
	baselineFile := filepath.Join(e.baselineRoot, strconv.FormatInt(e.custID, 10),
		strconv.FormatInt(siteID, 10), row.BaselineID+".html")
	oldHTML, err := os.ReadFile(baselineFile)
	if err != nil {
		slog.Error("baseline snapshot file not readable; cannot score.",
			slog.String("file", baselineFile), slog.String("err", err.Error()))
		return
	}

	score := DefacementScore(string(oldHTML), html)
	severity := SeverityForScore(score)

	diffDir := filepath.Join(e.diffRoot, strconv.FormatInt(e.custID, 10), strconv.FormatInt(siteID, 10))
	diffPath, err := WriteDiffArtifact(url, string(oldHTML), html, diffDir, row.BaselineID)
	if err != nil {
		slog.Error("failed to write diff artifact.", slog.String("err", err.Error()))
		return
	}
	e.archiveDiff(diffPath)

	e.insertObserved(&model.ObservedPage{
		SiteID:          siteID,
		BaselineID:      row.BaselineID,
		NormalizedURL:   canon,
		ObservedHash:    observedHash,
		Changed:         true,
		DiffPath:        diffPath,
		DefacementScore: score,
		Severity:        severity,
	})

	slog.Warn("defacement recorded.", slog.String("url", url),
		slog.Float64("score", score), slog.String("severity", string(severity)))

	if e.alertChan != nil {
		e.alertChan <- &model.DefacementAlert{
			JobID:      e.jobID,
			CustID:     e.custID,
			SiteID:     siteID,
			URL:        url,
			BaselineID: row.BaselineID,
			Score:      score,
			Severity:   severity,
			DiffPath:   diffPath,
			DetectedAt: time.Now().UTC(),
		}
	}
}

// resolveBaseline tries the baseline lookup under each URL variant in order.
func (e *Engine) resolveBaseline(siteID int64, variants ...string) *model.BaselineRecord {
	for _, v := range variants {
		record, err := e.baselines.GetBaselineHash(siteID, v)
		if err != nil {
			slog.Error("baseline lookup failed.", slog.String("url", v), slog.String("err", err.Error()))
			continue
		}
		if record != nil {
			return record
		}
	}
	return nil
}

func (e *Engine) insertObserved(page *model.ObservedPage) {
	if err := e.observed.InsertObservedPage(page); err != nil {
		slog.Error("failed to insert observed page.", slog.String("url", page.NormalizedURL),
			slog.String("err", err.Error()))
	}
}

func (e *Engine) archiveDiff(diffPath string) {
	if e.archive == nil {
		return
	}
	body, err := os.ReadFile(diffPath)
	if err != nil {
		slog.Error("failed to read diff artifact for archiving.", slog.String("err", err.Error()))
		return
	}
	if err := e.archive.WriteFile(filepath.ToSlash(diffPath), body); err != nil {
		slog.Error("failed to archive diff artifact.", slog.String("err", err.Error()))
	}
}

func withSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}
