package compare

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/IliaW/defacement-crawler/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefacementScoreIdentical(t *testing.T) {
	html := "<html><body><h1>Welcome</h1></body></html>"
	assert.Equal(t, 0.0, DefacementScore(html, html))
}

func TestDefacementScoreCompletelyDifferent(t *testing.T) {
	score := DefacementScore("<html><body>original</body></html>", "<div>HACKED BY EVIL</div>")
	assert.Equal(t, 100.0, score)
}

func TestDefacementScorePartialChange(t *testing.T) {
	oldHTML := "line one\nline two\nline three\nline four\n"
	newHTML := "line one\nline two\nline three\nline CHANGED\n"
	score := DefacementScore(oldHTML, newHTML)
	assert.Greater(t, score, 0.0)
	assert.Less(t, score, 100.0)
}

func TestSeverityForScore(t *testing.T) {
	testCases := []struct {
		score    float64
		expected model.Severity
	}{
		{0, model.SeverityNone},
		{0.01, model.SeverityLow},
		{9.99, model.SeverityLow},
		{10, model.SeverityMedium},
		{29.99, model.SeverityMedium},
		{30, model.SeverityHigh},
		{59.99, model.SeverityHigh},
		{60, model.SeverityCritical},
		{100, model.SeverityCritical},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, SeverityForScore(tc.score), "score %v", tc.score)
	}
}

func TestWriteDiffArtifact(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "diffs", "1", "7")
	path, err := WriteDiffArtifact("https://example.com/about",
		"<h1>old</h1>\n", "<h1>new</h1>\n", dir, "7-1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "7-1.html"), path)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "https://example.com/about")
	assert.Contains(t, string(body), "baseline")
	assert.Contains(t, string(body), "observed")
	// Diff content is escaped into the artifact, never raw.
	assert.Contains(t, string(body), "&lt;h1&gt;new&lt;/h1&gt;")
}

func TestWriteDiffArtifactOverwrites(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteDiffArtifact("https://example.com", "a\n", "b\n", dir, "7-1")
	require.NoError(t, err)
	path, err := WriteDiffArtifact("https://example.com", "a\n", "c\n", dir, "7-1")
	require.NoError(t, err)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "+c")
	assert.NotContains(t, string(body), "+b")
}
