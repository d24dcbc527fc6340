package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestDedupePRs_ByPRID asserts a repeated pr_id collapses to one row.
func TestDedupePRs_ByPRID(t *testing.T) {
	rows := []PRResult{
		{PR: PRFields{PRID: 1, PRNumber: 10}},
		{PR: PRFields{PRID: 1, PRNumber: 10}},
		{PR: PRFields{PRID: 2, PRNumber: 11}},
	}
	out := dedupePRs(rows)
	assert.Len(t, out, 2)
}

// TestDedupePRs_FallsBackToPRNumber covers rows with no pr_id (pr_id == 0),
// which dedup by pr_number instead (spec §4.9 "Deduplication").
func TestDedupePRs_FallsBackToPRNumber(t *testing.T) {
	rows := []PRResult{
		{PR: PRFields{PRID: 0, PRNumber: 5}},
		{PR: PRFields{PRID: 0, PRNumber: 5}},
		{PR: PRFields{PRID: 0, PRNumber: 6}},
	}
	out := dedupePRs(rows)
	assert.Len(t, out, 2)
}

// TestBandFor matches spec's low <= 3.0, medium (3.0, 6.9], high otherwise.
func TestBandFor(t *testing.T) {
	assert.Equal(t, "low", bandFor(3.0))
	assert.Equal(t, "medium", bandFor(3.1))
	assert.Equal(t, "medium", bandFor(6.9))
	assert.Equal(t, "high", bandFor(7.0))
}

// TestSortPRs_Riskiest asserts descending risk_score ordering.
func TestSortPRs_Riskiest(t *testing.T) {
	rows := []PRResult{
		{PR: PRFields{PRNumber: 1, RiskScore: 2.0}},
		{PR: PRFields{PRNumber: 2, RiskScore: 8.5}},
		{PR: PRFields{PRNumber: 3, RiskScore: 5.0}},
	}
	sortPRs(rows, SortRiskiest)
	assert.Equal(t, 2, rows[0].PR.PRNumber)
	assert.Equal(t, 3, rows[1].PR.PRNumber)
	assert.Equal(t, 1, rows[2].PR.PRNumber)
}

// TestSortPRs_Recency asserts descending merged_at ordering (the default).
func TestSortPRs_Recency(t *testing.T) {
	rows := []PRResult{
		{PR: PRFields{PRNumber: 1, MergedAt: 100}},
		{PR: PRFields{PRNumber: 2, MergedAt: 300}},
		{PR: PRFields{PRNumber: 3, MergedAt: 200}},
	}
	sortPRs(rows, SortRecency)
	assert.Equal(t, 2, rows[0].PR.PRNumber)
	assert.Equal(t, 3, rows[1].PR.PRNumber)
	assert.Equal(t, 1, rows[2].PR.PRNumber)
}
