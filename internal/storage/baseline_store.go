package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/IliaW/defacement-crawler/internal"
	"github.com/IliaW/defacement-crawler/internal/model"
	"github.com/IliaW/defacement-crawler/internal/normalizer"
)

type BaselineWriter interface {
	UpsertBaselineHash(siteID int64, normalizedURL, contentHash, baselinePath string) error
}

type SelectionWriter interface {
	InsertSelectionRow(siteID int64, baselineID, url string) error
}

type Archiver interface {
	WriteFile(key string, body []byte) error
}

// SnapshotStore persists page snapshots under
// <root>/<custid>/<siteid>/<baseline_id>.html. Baseline ids are a per-site
// sequence held in memory, seeded from the existing files on first use and
// then incremented under the lock, so concurrent workers snapshotting the
// same site cannot collide.
type SnapshotStore struct {
	root      string
	custID    int64
	baselines BaselineWriter
	selection SelectionWriter
	archive   Archiver // optional S3 mirror, may be nil

	mu      sync.Mutex
	nextSeq map[int64]int
}

func NewSnapshotStore(root string, custID int64, baselines BaselineWriter,
	selection SelectionWriter, archive Archiver) *SnapshotStore {
	return &SnapshotStore{
		root:      root,
		custID:    custID,
		baselines: baselines,
		selection: selection,
		archive:   archive,
		nextSeq:   make(map[int64]int),
	}
}

// StoreSnapshot writes the snapshot file and, in BASELINE mode, registers the
// page as a monitored selection row. Returns the new baseline id and the
// snapshot path.
func (s *SnapshotStore) StoreSnapshot(siteID int64, url, html string,
	mode model.CrawlMode) (string, string, error) {
	siteDir := filepath.Join(s.root, strconv.FormatInt(s.custID, 10), strconv.FormatInt(siteID, 10))
	if err := os.MkdirAll(siteDir, 0o755); err != nil {
		return "", "", err
	}

	baselineID, err := s.nextBaselineID(siteDir, siteID)
	if err != nil {
		return "", "", err
	}
	path := filepath.Join(siteDir, baselineID+".html")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(html)), 0o644); err != nil {
		return "", "", err
	}

	if s.archive != nil {
		if err := s.archive.WriteFile(filepath.ToSlash(path), []byte(html)); err != nil {
			slog.Error("failed to archive snapshot.", slog.String("err", err.Error()))
		}
	}

	if mode == model.Baseline && s.selection != nil {
		if err := s.selection.InsertSelectionRow(siteID, baselineID, url); err != nil {
			slog.Error("failed to insert selection row.", slog.String("url", url),
				slog.String("err", err.Error()))
		}
	}

	return baselineID, path, nil
}

// StoreBaselineHash upserts the content hash of the snapshot keyed by the
// normalized URL and returns the hash.
func (s *SnapshotStore) StoreBaselineHash(siteID int64, normalizedURL, rawHTML,
	baselinePath string) (string, error) {
	contentHash := internal.HashContent(normalizer.NormalizeHTML(rawHTML))
	if err := s.baselines.UpsertBaselineHash(siteID, normalizedURL, contentHash, baselinePath); err != nil {
		return "", err
	}
	return contentHash, nil
}

func (s *SnapshotStore) nextBaselineID(siteDir string, siteID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, ok := s.nextSeq[siteID]
	if !ok {
		maxSeq, err := scanMaxSequence(siteDir, siteID)
		if err != nil {
			return "", err
		}
		seq = maxSeq
	}
	seq++
	s.nextSeq[siteID] = seq

	return fmt.Sprintf("%d-%d", siteID, seq), nil
}

func scanMaxSequence(siteDir string, siteID int64) (int, error) {
	pattern := filepath.Join(siteDir, fmt.Sprintf("%d-*.html", siteID))
	files, err := filepath.Glob(pattern)
	if err != nil {
		return 0, err
	}
	prefix := fmt.Sprintf("%d-", siteID)
	maxSeq := 0
	for _, f := range files {
		stem := strings.TrimSuffix(filepath.Base(f), ".html")
		n, err := strconv.Atoi(strings.TrimPrefix(stem, prefix))
		if err != nil {
			continue
		}
		if n > maxSeq {
			maxSeq = n
		}
	}
	return maxSeq, nil
}
