package retrieval

import (
	"context"
	"sort"

	"github.com/riskline/riskline/internal/vectorstore"
)

// Features runs the hybrid PR-feature search: scalar-filtered to merged PRs
// in window, then narrowed to feature PRs, ranked by ANN distance to terms
// then recency. The feature filter runs after the k-nearest search, so
// fewer than k rows can come back even when more feature PRs match.
func (h *Handlers) Features(ctx context.Context, repo string, start, end int64, terms string, k int) ([]PRResult, error) {
	expr := h.windowExpr(repo, start, end)

	vec := h.llm.Embed(ctx, terms)
	rows, err := h.vs.SearchPRs(ctx, h.prCollection, vec, expr, uint64(k))
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

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Distance != filtered[j].Distance {
			return filtered[i].Distance < filtered[j].Distance
		}
		return filtered[i].PR.MergedAt > filtered[j].PR.MergedAt
	})
	if len(filtered) > k {
		filtered = filtered[:k]
	}
	return filtered, nil
}

// RiskyFiles searches VS-File by semantic terms, collects the PR numbers of
// the top hits, then re-queries VS-PR restricted to those (merged) PRs.
func (h *Handlers) RiskyFiles(ctx context.Context, repo string, start, end int64, terms string, k int) ([]PRResult, error) {
	fileExpr := vectorstore.And(
		vectorstore.Eq("repo_name", repo),
		vectorstore.GTE("merged_at", start),
		vectorstore.LTE("merged_at", end),
		vectorstore.Eq("is_binary", false),
	)
	vec := h.llm.Embed(ctx, terms)
	fileRows, err := h.vs.SearchFiles(ctx, h.fileCollection, vec, fileExpr, uint64(k))
	if err != nil {
		return nil, err
	}

	prNumbers := uniquePRNumbers(fileRows)
	if len(prNumbers) == 0 {
		return nil, nil
	}

	any := make([]interface{}, len(prNumbers))
	for i, n := range prNumbers {
		any[i] = n
	}
	prExpr := vectorstore.And(
		vectorstore.Eq("repo_name", repo),
		vectorstore.Eq("is_merged", true),
		vectorstore.In("pr_number", any...),
	)
	prRows, err := h.vs.QueryPRs(ctx, h.prCollection, prExpr, 1000)
	if err != nil {
		return nil, err
	}

	results := dedupePRs(toPRResults(prRows))
	sortPRs(results, SortRecency)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// FileSearch filters VS-File by a path substring, then fetches the owning PRs.
func (h *Handlers) FileSearch(ctx context.Context, repo string, start, end int64, filename string, k int) ([]PRResult, error) {
	fileExpr := vectorstore.And(
		vectorstore.Eq("repo_name", repo),
		vectorstore.GTE("merged_at", start),
		vectorstore.LTE("merged_at", end),
		vectorstore.Like("file_id", "%"+filename+"%"),
	)
	fileRows, err := h.vs.QueryFiles(ctx, h.fileCollection, fileExpr, 10000)
	if err != nil {
		return nil, err
	}

	prNumbers := uniquePRNumbers(fileRows)
	if len(prNumbers) == 0 {
		return nil, nil
	}

	any := make([]interface{}, len(prNumbers))
	for i, n := range prNumbers {
		any[i] = n
	}
	prExpr := vectorstore.And(
		vectorstore.Eq("repo_name", repo),
		vectorstore.In("pr_number", any...),
	)
	prRows, err := h.vs.QueryPRs(ctx, h.prCollection, prExpr, 1000)
	if err != nil {
		return nil, err
	}

	results := dedupePRs(toPRResults(prRows))
	sortPRs(results, SortRecency)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func uniquePRNumbers(rows []vectorstore.Row) []int {
	seen := map[int]bool{}
	var out []int
	for _, row := range rows {
		f := fileFromPayload(row.Payload)
		if !seen[f.PRNumber] {
			seen[f.PRNumber] = true
			out = append(out, f.PRNumber)
		}
	}
	return out
}

// topicBundle is a predefined set of semantic terms fed into Features or
// RiskyFiles by a topic-shortcut handler (spec §4.9 "Topic shortcuts").
type topicBundle struct {
	terms string
}

var (
	authBundle        = topicBundle{"authentication authorization login session token"}
	paymentBundle     = topicBundle{"payment billing invoice checkout"}
	securityBundle    = topicBundle{"security vulnerability exploit risk"}
	databaseBundle    = topicBundle{"database sql query migration schema"}
	apiBundle         = topicBundle{"api endpoint route handler"}
	testBundle        = topicBundle{"test testing coverage assertion"}
	performanceBundle = topicBundle{"performance optimization latency speed"}
	bugfixBundle      = topicBundle{"bug fix error issue regression"}
	complexBundle     = topicBundle{"complex change large refactor multi-file"}
	streamingBundle   = topicBundle{"streaming real-time websocket event"}
)

func (h *Handlers) AuthFeatures(ctx context.Context, repo string, start, end int64, k int) ([]PRResult, error) {
	return h.Features(ctx, repo, start, end, authBundle.terms, k)
}

func (h *Handlers) PaymentFeatures(ctx context.Context, repo string, start, end int64, k int) ([]PRResult, error) {
	return h.Features(ctx, repo, start, end, paymentBundle.terms, k)
}

func (h *Handlers) SecurityChanges(ctx context.Context, repo string, start, end int64, k int) ([]PRResult, error) {
	return h.RiskyFiles(ctx, repo, start, end, securityBundle.terms, k)
}

func (h *Handlers) DatabaseChanges(ctx context.Context, repo string, start, end int64, k int) ([]PRResult, error) {
	return h.RiskyFiles(ctx, repo, start, end, databaseBundle.terms, k)
}

func (h *Handlers) APIChanges(ctx context.Context, repo string, start, end int64, k int) ([]PRResult, error) {
	return h.RiskyFiles(ctx, repo, start, end, apiBundle.terms, k)
}

func (h *Handlers) TestChanges(ctx context.Context, repo string, start, end int64, k int) ([]PRResult, error) {
	return h.RiskyFiles(ctx, repo, start, end, testBundle.terms, k)
}

func (h *Handlers) PerformanceChanges(ctx context.Context, repo string, start, end int64, k int) ([]PRResult, error) {
	return h.RiskyFiles(ctx, repo, start, end, performanceBundle.terms, k)
}

func (h *Handlers) BugFixes(ctx context.Context, repo string, start, end int64, k int) ([]PRResult, error) {
	return h.RiskyFiles(ctx, repo, start, end, bugfixBundle.terms, k)
}

func (h *Handlers) ComplexChanges(ctx context.Context, repo string, start, end int64, k int) ([]PRResult, error) {
	return h.RiskyFiles(ctx, repo, start, end, complexBundle.terms, k)
}

func (h *Handlers) StreamingFeatures(ctx context.Context, repo string, start, end int64, k int) ([]PRResult, error) {
	return h.Features(ctx, repo, start, end, streamingBundle.terms, k)
}
