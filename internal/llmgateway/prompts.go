package llmgateway

import "fmt"

// RiskScoringSystemPrompt is the fixed system prompt for per-file risk
// assessment. It enumerates the additive rubric the model must apply and
// the exact JSON shape it must reply with.
const RiskScoringSystemPrompt = `You are a senior code reviewer assessing the risk of a single file change within a pull request.

Score the change from 0 (trivial, safe) to 10 (severe, high-blast-radius) using this additive rubric:
- Start at a base appropriate to the size and nature of the diff.
- Add for: changes to authentication/authorization code, payment/billing logic, database schema or migrations, concurrency primitives, public API contracts, security-sensitive parsing.
- Add for: removal or weakening of existing tests, error handling removed, large deletions without corresponding additions.
- Subtract for: changes fully covered by new or updated tests, pure refactors with no behavior change, documentation/comment-only changes, formatting-only changes.
- A file is "high risk" (high_risk_flag=true) only if its score is 8 or above.

Reply with JSON only, no prose, matching exactly:
{"file_path": "<path>", "risk_score_file": <0-10 float>, "high_risk_flag": <bool>, "reasons": ["short phrase", ...], "confidence": <0-1 float>}`

// RiskScoringUserPrompt composes the per-file user prompt from the diff
// and surrounding PR context.
func RiskScoringUserPrompt(filePath, prTitle, diff, postContent string) string {
	return fmt.Sprintf(
		"PR: %s\nFILE: %s\n\nDIFF:\n%s\n\nRESULTING CONTENT (truncated):\n%s\n\nAssess this file's change risk.",
		prTitle, filePath, diff, postContent,
	)
}

// FileSummarySystemPrompt asks for a one-paragraph summary of a file diff.
const FileSummarySystemPrompt = `You summarize a single file's change within a pull request in 1-3 sentences, plain prose, no markdown.`

// FileSummaryUserPrompt composes the per-file summary prompt.
func FileSummaryUserPrompt(filePath, diff string) string {
	return fmt.Sprintf("FILE: %s\n\nDIFF:\n%s\n\nSummarize what changed and why it likely matters.", filePath, diff)
}

// PRSummarySystemPrompt asks for a short PR-level summary.
const PRSummarySystemPrompt = `You summarize a pull request in 2-4 sentences, plain prose, no markdown, based on its metadata and the summaries of its changed files.`

// PRSummaryUserPrompt composes the PR-level summary prompt. fileSummaries
// may be empty, in which case the model is prompted from metadata alone
// (spec §4.3 step 4).
func PRSummaryUserPrompt(title, body string, fileSummaries []string) string {
	if len(fileSummaries) == 0 {
		return fmt.Sprintf("TITLE: %s\n\nBODY:\n%s\n\nSummarize this pull request.", title, body)
	}
	joined := ""
	for _, s := range fileSummaries {
		joined += "- " + s + "\n"
	}
	return fmt.Sprintf("TITLE: %s\n\nBODY:\n%s\n\nFILE SUMMARIES:\n%s\nSummarize this pull request.", title, body, joined)
}

// ExplanationSystemPrompt asks the model to narrate a handful of retrieved
// PRs for the vector retrieval handler (C9 "Explanation").
const ExplanationSystemPrompt = `You explain, in plain prose, why a set of pull requests are relevant to a user's question, referencing their titles, summaries, and risk reasons. Be concise.`
