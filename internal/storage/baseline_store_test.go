package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/IliaW/defacement-crawler/internal"
	"github.com/IliaW/defacement-crawler/internal/model"
	"github.com/IliaW/defacement-crawler/internal/normalizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBaselineWriter struct {
	mu      sync.Mutex
	upserts map[string]string // normalizedURL -> contentHash
}

func (f *fakeBaselineWriter) UpsertBaselineHash(_ int64, normalizedURL, contentHash, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upserts == nil {
		f.upserts = make(map[string]string)
	}
	f.upserts[normalizedURL] = contentHash
	return nil
}

type fakeSelectionWriter struct {
	mu   sync.Mutex
	rows []string // baselineID
}

func (f *fakeSelectionWriter) InsertSelectionRow(_ int64, baselineID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, baselineID)
	return nil
}

func TestStoreSnapshotSequence(t *testing.T) {
	store := NewSnapshotStore(t.TempDir(), 1, &fakeBaselineWriter{}, &fakeSelectionWriter{}, nil)

	id1, path1, err := store.StoreSnapshot(7, "https://example.com/a", "<html>a</html>", model.Crawl)
	require.NoError(t, err)
	id2, path2, err := store.StoreSnapshot(7, "https://example.com/b", "<html>b</html>", model.Crawl)
	require.NoError(t, err)

	assert.Equal(t, "7-1", id1)
	assert.Equal(t, "7-2", id2)
	assert.FileExists(t, path1)
	assert.FileExists(t, path2)
}

func TestStoreSnapshotLayoutAndContent(t *testing.T) {
	root := t.TempDir()
	store := NewSnapshotStore(root, 1, &fakeBaselineWriter{}, &fakeSelectionWriter{}, nil)

	_, path, err := store.StoreSnapshot(7, "https://example.com", "  <html>a</html>\n", model.Crawl)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "1", "7", "7-1.html"), path)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<html>a</html>", string(body))
}

func TestStoreSnapshotResumesSequenceFromDisk(t *testing.T) {
	root := t.TempDir()
	siteDir := filepath.Join(root, "1", "7")
	require.NoError(t, os.MkdirAll(siteDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(siteDir, "7-5.html"), []byte("<html></html>"), 0o644))

	store := NewSnapshotStore(root, 1, &fakeBaselineWriter{}, &fakeSelectionWriter{}, nil)
	id, _, err := store.StoreSnapshot(7, "https://example.com", "<html></html>", model.Crawl)
	require.NoError(t, err)
	assert.Equal(t, "7-6", id)
}

func TestStoreSnapshotSelectionRowOnlyInBaselineMode(t *testing.T) {
	selection := &fakeSelectionWriter{}
	store := NewSnapshotStore(t.TempDir(), 1, &fakeBaselineWriter{}, selection, nil)

	_, _, err := store.StoreSnapshot(7, "https://example.com/a", "<html></html>", model.Crawl)
	require.NoError(t, err)
	assert.Empty(t, selection.rows)

	id, _, err := store.StoreSnapshot(7, "https://example.com/b", "<html></html>", model.Baseline)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, selection.rows)
}

func TestStoreBaselineHash(t *testing.T) {
	writer := &fakeBaselineWriter{}
	store := NewSnapshotStore(t.TempDir(), 1, writer, &fakeSelectionWriter{}, nil)

	html := "<html><body>  <h1>Hi</h1>  </body></html>"
	hash, err := store.StoreBaselineHash(7, "https://example.com", html, "/tmp/7-1.html")
	require.NoError(t, err)
	assert.Equal(t, internal.HashContent(normalizer.NormalizeHTML(html)), hash)
	assert.Equal(t, hash, writer.upserts["https://example.com"])
}

func TestStoreSnapshotConcurrentIDsUnique(t *testing.T) {
	store := NewSnapshotStore(t.TempDir(), 1, &fakeBaselineWriter{}, &fakeSelectionWriter{}, nil)

	const n = 20
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, _, err := store.StoreSnapshot(7, fmt.Sprintf("https://example.com/%d", i),
				"<html></html>", model.Crawl)
			assert.NoError(t, err)
			ids <- id
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{})
	for id := range ids {
		_, dup := seen[id]
		assert.False(t, dup, "duplicate baseline id %s", id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, n)
}
