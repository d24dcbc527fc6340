package projector

import (
	"testing"

	"github.com/riskline/riskline/internal/types"
	"github.com/stretchr/testify/assert"
)

// TestDedupeByPRID asserts a repeated pr_id collapses to its first occurrence.
func TestDedupeByPRID(t *testing.T) {
	prs := []*types.PullRequest{
		{PRID: 1, PRNumber: 10},
		{PRID: 1, PRNumber: 10},
		{PRID: 2, PRNumber: 11},
	}
	out := dedupeByPRID(prs)
	assert.Len(t, out, 2)
}

// TestFeatureConfidence asserts the binary confidence rule.
func TestFeatureConfidence(t *testing.T) {
	assert.Equal(t, 1.0, featureConfidence(&types.PullRequest{Feature: "auth"}))
	assert.Equal(t, 0.0, featureConfidence(&types.PullRequest{Feature: ""}))
}

// TestTopRiskyFiles_ExcludesNonPositiveScores asserts zero/negative-score
// files never appear in top_risky_files (spec §4.6 "Shipped PRs").
func TestTopRiskyFiles_ExcludesNonPositiveScores(t *testing.T) {
	files := []*types.File{
		{FileID: "a.go", RiskScoreFile: 0, LinesChanged: 500},
		{FileID: "b.go", RiskScoreFile: -1, LinesChanged: 500},
		{FileID: "c.go", RiskScoreFile: 2.5, LinesChanged: 10},
	}
	out := topRiskyFiles(files)
	assert.Len(t, out, 1)
	assert.Equal(t, "c.go", out[0].FilePath)
}

// TestTopRiskyFiles_OrderingAndCap asserts descending (risk_score_file,
// lines_changed) ordering and the top-5 cap.
func TestTopRiskyFiles_OrderingAndCap(t *testing.T) {
	var files []*types.File
	for i := 0; i < 7; i++ {
		files = append(files, &types.File{
			FileID:        string(rune('a' + i)),
			RiskScoreFile: float64(i + 1),
			LinesChanged:  10,
		})
	}
	out := topRiskyFiles(files)
	assert.Len(t, out, 5)
	assert.Equal(t, string(rune('a'+6)), out[0].FilePath, "highest score first")
	assert.Equal(t, string(rune('a'+2)), out[4].FilePath, "capped at top 5")
}

// TestTopRiskyFiles_TiebreakByLinesChanged asserts equal scores fall back to
// lines_changed descending.
func TestTopRiskyFiles_TiebreakByLinesChanged(t *testing.T) {
	files := []*types.File{
		{FileID: "small.go", RiskScoreFile: 5.0, LinesChanged: 10},
		{FileID: "big.go", RiskScoreFile: 5.0, LinesChanged: 300},
	}
	out := topRiskyFiles(files)
	assert.Equal(t, "big.go", out[0].FilePath)
	assert.Equal(t, "small.go", out[1].FilePath)
}
