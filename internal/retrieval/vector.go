package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/riskline/riskline/internal/llmgateway"
)

// ExplanationResult is the Explanation handler's output: ranked hits plus an
// optional natural-language summary of the top ones.
type ExplanationResult struct {
	Hits    []PRResult
	Summary string
}

// Explanation runs a pure vector search scoped only to time/repo, then
// optionally asks the LLM gateway to narrate the top 10 hits (spec §4.9
// "Vector handlers").
func (h *Handlers) Explanation(ctx context.Context, repo string, start, end int64, query string, k int) (ExplanationResult, error) {
	expr := h.windowExpr(repo, start, end)
	vec := h.llm.Embed(ctx, query)

	rows, err := h.vs.SearchPRs(ctx, h.prCollection, vec, expr, uint64(k))
	if err != nil {
		return ExplanationResult{}, err
	}

	results := dedupePRs(toPRResults(rows))
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })

	summaryCount := len(results)
	if summaryCount > 10 {
		summaryCount = 10
	}

	summary, err := h.llm.Chat(ctx, llmgateway.ExplanationSystemPrompt, explanationUserPrompt(query, results[:summaryCount]), 400, 0.3)
	if err != nil {
		summary = ""
	}

	return ExplanationResult{Hits: results, Summary: summary}, nil
}

func explanationUserPrompt(query string, hits []PRResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nTop matching pull requests:\n", query)
	for _, h := range hits {
		fmt.Fprintf(&b, "- PR #%d: %s\n  summary: %s\n  risk reasons: %s\n", h.PR.PRNumber, h.PR.Title, h.PR.PRSummary, strings.Join(h.PR.RiskReasons, "; "))
	}
	return b.String()
}
