package enrichment

import (
	"fmt"
	"sort"

	"github.com/riskline/riskline/internal/types"
)

// FileRiskInput is the per-file data the PR-level aggregation needs.
type FileRiskInput struct {
	Score        float64
	LinesChanged int
	IsTestFile   bool
	Additions    int
	Deletions    int
	Reasons      []string
}

// AggregateResult is the deterministic PR-level risk aggregation output
// (spec §4.3 "PR risk aggregation").
type AggregateResult struct {
	Score   float64
	Band    types.RiskBand
	High    bool
	Reasons []string
}

// AggregatePRRisk implements the weighted-base / hard-override / net-tests
// rubric verbatim.
func AggregatePRRisk(files []FileRiskInput) AggregateResult {
	if len(files) == 0 {
		return AggregateResult{Score: 0, Band: types.RiskBandLow, High: false}
	}

	var weightedSum, weightSum, sum, maxScore float64
	hard := false
	netTestsAdded := 0

	for _, f := range files {
		weightedSum += f.Score * float64(f.LinesChanged)
		weightSum += float64(f.LinesChanged)
		sum += f.Score
		if f.Score > maxScore {
			maxScore = f.Score
		}
		if f.Score >= 8 {
			hard = true
		}
		if f.IsTestFile {
			netTestsAdded += f.Additions - f.Deletions
		}
	}

	var base float64
	if weightSum > 0 {
		base = weightedSum / weightSum
	} else {
		base = sum / float64(len(files))
	}

	score := base
	if hard {
		score = base
		if score < 8.0 {
			score = 8.0
		}
	}
	if maxScore >= 8 {
		score = score + 0.5
		if score > 10.0 {
			score = 10.0
		}
	} else if netTestsAdded > 0 {
		score = score - 0.5
		if score < 0.0 {
			score = 0.0
		}
	}

	return AggregateResult{
		Score:   score,
		Band:    types.BandForScore(score),
		High:    types.HighRisk(score),
		Reasons: topReasons(files),
	}
}

// topReasons counts recurring file-level reasons and emits the top 3-4,
// annotated with occurrence count when it exceeds one, capping at 4 with an
// overflow summary entry if more remain (spec §4.3).
func topReasons(files []FileRiskInput) []string {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, f := range files {
		for _, r := range f.Reasons {
			if counts[r] == 0 {
				order = append(order, r)
			}
			counts[r]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	const capN = 4
	var reasons []string
	for i, r := range order {
		if i >= capN {
			remaining := len(order) - capN
			reasons = append(reasons, fmt.Sprintf("%d additional risk factor(s) observed", remaining))
			break
		}
		if counts[r] > 1 {
			reasons = append(reasons, fmt.Sprintf("%s (in %d files)", r, counts[r]))
		} else {
			reasons = append(reasons, r)
		}
	}
	return reasons
}
