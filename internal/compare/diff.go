package compare

import (
	"fmt"
	"html"
	"math"
	"os"
	"path/filepath"

	"github.com/IliaW/defacement-crawler/internal/model"
	"github.com/pmezard/go-difflib/difflib"
)

// DefacementScore returns the percentage of the page that changed between the
// baseline and the observed HTML, computed over a line-based similarity
// ratio. 0 means identical, 100 means nothing in common.
func DefacementScore(oldHTML, newHTML string) float64 {
	if oldHTML == newHTML {
		return 0.0
	}
	matcher := difflib.NewMatcher(difflib.SplitLines(oldHTML), difflib.SplitLines(newHTML))
	score := (1.0 - matcher.Ratio()) * 100.0
	return math.Round(score*100) / 100
}

// SeverityForScore maps a defacement percentage to its tier. Monotonic in the
// score.
func SeverityForScore(score float64) model.Severity {
	switch {
	case score <= 0:
		return model.SeverityNone
	case score < 10:
		return model.SeverityLow
	case score < 30:
		return model.SeverityMedium
	case score < 60:
		return model.SeverityHigh
	default:
		return model.SeverityCritical
	}
}

// WriteDiffArtifact writes a single HTML diff file <filePrefix>.html under
// outDir, overwriting any previous artifact for the same baseline id, and
// returns its path.
func WriteDiffArtifact(url, oldHTML, newHTML, outDir, filePrefix string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	unified, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldHTML),
		B:        difflib.SplitLines(newHTML),
		FromFile: "baseline",
		ToFile:   "observed",
		Context:  3,
	})
	if err != nil {
		return "", err
	}

	body := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Defacement diff — %s</title></head>
<body>
<h1>%s</h1>
<pre>%s</pre>
</body>
</html>
`, html.EscapeString(url), html.EscapeString(url), html.EscapeString(unified))

	path := filepath.Join(outDir, filePrefix+".html")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
