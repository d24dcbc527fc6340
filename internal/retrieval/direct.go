package retrieval

import (
	"context"
	"sort"

	"github.com/riskline/riskline/internal/vectorstore"
)

// SortBy selects the ranking ListPRs applies after the scalar filter.
type SortBy string

const (
	SortRecency  SortBy = "recency"
	SortLargest  SortBy = "largest"
	SortRiskiest SortBy = "riskiest"
)

// ListPRsSummary carries the aggregate totals ListPRs returns alongside rows.
type ListPRsSummary struct {
	PRsMerged      int
	FeaturesShipped int
	HighRiskPRs    int
}

func (h *Handlers) windowExpr(repo string, start, end int64) vectorstore.Expr {
	return vectorstore.And(
		vectorstore.Eq("repo_name", repo),
		vectorstore.GTE("merged_at", start),
		vectorstore.LTE("merged_at", end),
		vectorstore.Eq("is_merged", true),
	)
}

// ListPRs implements spec §4.9's primary direct handler.
func (h *Handlers) ListPRs(ctx context.Context, repo string, start, end int64, author string, prNumber int, limit int, sortBy SortBy) ([]PRResult, ListPRsSummary, error) {
	parts := []vectorstore.Expr{h.windowExpr(repo, start, end)}
	if author != "" {
		parts = append(parts, vectorstore.Eq("author_name", author))
	}
	if prNumber != 0 {
		parts = append(parts, vectorstore.Eq("pr_number", prNumber))
	}

	rows, err := h.vs.QueryPRs(ctx, h.prCollection, vectorstore.And(parts...), 1000)
	if err != nil {
		return nil, ListPRsSummary{}, err
	}

	results := toPRResults(rows)
	results = dedupePRs(results)

	summary := ListPRsSummary{}
	for _, r := range results {
		summary.PRsMerged++
		if r.PR.Feature != "" {
			summary.FeaturesShipped++
		}
		if r.PR.HighRisk {
			summary.HighRiskPRs++
		}
	}

	sortPRs(results, sortBy)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, summary, nil
}

// ListFeatures is ListPRs with the extra feature != "" filter.
func (h *Handlers) ListFeatures(ctx context.Context, repo string, start, end int64, author string, limit int) ([]PRResult, error) {
	parts := []vectorstore.Expr{h.windowExpr(repo, start, end)}
	if author != "" {
		parts = append(parts, vectorstore.Eq("author_name", author))
	}

	rows, err := h.vs.QueryPRs(ctx, h.prCollection, vectorstore.And(parts...), 1000)
	if err != nil {
		return nil, err
	}

	results := dedupePRs(toPRResults(rows))
	filtered := results[:0]
	for _, r := range results {
		if r.PR.Feature != "" {
			filtered = append(filtered, r)
		}
	}
	sortPRs(filtered, SortRecency)
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

// TopFileByLines groups VS-File by file_id and returns the file with the
// highest summed lines_changed.
func (h *Handlers) TopFileByLines(ctx context.Context, repo string, start, end int64) (FileFields, int, error) {
	expr := vectorstore.And(
		vectorstore.Eq("repo_name", repo),
		vectorstore.GTE("merged_at", start),
		vectorstore.LTE("merged_at", end),
		vectorstore.Eq("is_binary", false),
	)
	rows, err := h.vs.QueryFiles(ctx, h.fileCollection, expr, 10000)
	if err != nil {
		return FileFields{}, 0, err
	}

	totals := map[string]int{}
	sample := map[string]FileFields{}
	for _, row := range rows {
		f := fileFromPayload(row.Payload)
		totals[f.FileID] += f.LinesChanged
		sample[f.FileID] = f
	}

	var best string
	bestLines := -1
	for path, lines := range totals {
		if lines > bestLines {
			best, bestLines = path, lines
		}
	}
	return sample[best], bestLines, nil
}

// PRCount aggregates submission/merge counts over the window.
type PRCountResult struct {
	Submitted int
	Merged    int
	HighRisk  int
	Features  int
}

func (h *Handlers) PRCount(ctx context.Context, repo string, start, end int64, author string) (PRCountResult, error) {
	parts := []vectorstore.Expr{
		vectorstore.Eq("repo_name", repo),
		vectorstore.GTE("created_at", start),
		vectorstore.LTE("created_at", end),
	}
	if author != "" {
		parts = append(parts, vectorstore.Eq("author_name", author))
	}
	rows, err := h.vs.QueryPRs(ctx, h.prCollection, vectorstore.And(parts...), 10000)
	if err != nil {
		return PRCountResult{}, err
	}

	results := dedupePRs(toPRResults(rows))
	var out PRCountResult
	for _, r := range results {
		out.Submitted++
		if r.PR.IsMerged {
			out.Merged++
			if r.PR.Feature != "" {
				out.Features++
			}
		}
		if r.PR.HighRisk {
			out.HighRisk++
		}
	}
	return out, nil
}

// TopPRsByRisk filters merged PRs in window and sorts by risk_score desc.
func (h *Handlers) TopPRsByRisk(ctx context.Context, repo string, start, end int64, limit int) ([]PRResult, error) {
	rows, err := h.vs.QueryPRs(ctx, h.prCollection, h.windowExpr(repo, start, end), 10000)
	if err != nil {
		return nil, err
	}
	results := dedupePRs(toPRResults(rows))
	sortPRs(results, SortRiskiest)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// FileChangesSummary returns totals plus per-language and per-band histograms.
type FileChangesSummary struct {
	TotalFiles     int
	TotalLines     int
	ByLanguage     map[string]int
	ByRiskBand     map[string]int
}

func (h *Handlers) FileChangesSummary(ctx context.Context, repo string, start, end int64) (FileChangesSummary, error) {
	expr := vectorstore.And(
		vectorstore.Eq("repo_name", repo),
		vectorstore.GTE("merged_at", start),
		vectorstore.LTE("merged_at", end),
	)
	rows, err := h.vs.QueryFiles(ctx, h.fileCollection, expr, 10000)
	if err != nil {
		return FileChangesSummary{}, err
	}

	out := FileChangesSummary{ByLanguage: map[string]int{}, ByRiskBand: map[string]int{}}
	for _, row := range rows {
		f := fileFromPayload(row.Payload)
		out.TotalFiles++
		out.TotalLines += f.LinesChanged
		out.ByLanguage[f.Language]++
		out.ByRiskBand[bandFor(f.RiskScoreFile)]++
	}
	return out, nil
}

func bandFor(score float64) string {
	switch {
	case score <= 3.0:
		return "low"
	case score <= 6.9:
		return "medium"
	default:
		return "high"
	}
}

func toPRResults(rows []vectorstore.Row) []PRResult {
	out := make([]PRResult, len(rows))
	for i, row := range rows {
		out[i] = PRResult{PR: prFromPayload(row.Payload), Distance: row.Distance}
	}
	return out
}

func sortPRs(rows []PRResult, by SortBy) {
	switch by {
	case SortRiskiest:
		sort.Slice(rows, func(i, j int) bool { return rows[i].PR.RiskScore > rows[j].PR.RiskScore })
	case SortLargest:
		sort.Slice(rows, func(i, j int) bool { return size(rows[i].PR) > size(rows[j].PR) })
	default:
		sort.Slice(rows, func(i, j int) bool { return rows[i].PR.MergedAt > rows[j].PR.MergedAt })
	}
}

func size(pr PRFields) int {
	return pr.Additions + pr.Deletions + pr.ChangedFiles
}
