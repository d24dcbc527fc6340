// Package retrieval implements the direct, hybrid, and vector handlers that
// the router dispatches to (spec §4.9), composed over internal/vectorstore
// and internal/llmgateway. Every handler enforces its repo/time-window scalar
// filter and dedupes results by pr_id then pr_number.
package retrieval

import (
	"context"

	"github.com/riskline/riskline/internal/types"
	"github.com/riskline/riskline/internal/vectorstore"
)

// VectorStore is the subset of vectorstore.Client the handlers depend on.
type VectorStore interface {
	QueryPRs(ctx context.Context, collection string, expr vectorstore.Expr, limit uint32) ([]vectorstore.Row, error)
	SearchPRs(ctx context.Context, collection string, vec []float32, expr vectorstore.Expr, k uint64) ([]vectorstore.Row, error)
	QueryFiles(ctx context.Context, collection string, expr vectorstore.Expr, limit uint32) ([]vectorstore.Row, error)
	SearchFiles(ctx context.Context, collection string, vec []float32, expr vectorstore.Expr, k uint64) ([]vectorstore.Row, error)
}

// LLM is the subset of llmgateway.Client the Explanation handler needs.
type LLM interface {
	Embed(ctx context.Context, text string) []float32
	Chat(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error)
}

// Handlers wires the two collections and the LLM gateway into the C9
// retrieval surface.
type Handlers struct {
	vs             VectorStore
	llm            LLM
	prCollection   string
	fileCollection string
}

// NewHandlers builds a Handlers over vs (the vector store adapter), llm (for
// Explanation's optional summary), and the two collection names.
func NewHandlers(vs VectorStore, llm LLM, prCollection, fileCollection string) *Handlers {
	return &Handlers{vs: vs, llm: llm, prCollection: prCollection, fileCollection: fileCollection}
}

// PRResult is one ranked row returned to a caller, carrying the ANN
// distance when the row came from a search path (zero for scalar-only
// results).
type PRResult struct {
	PR       PRFields
	Distance float32
}

// PRFields mirrors the VS-PR payload scalars the handlers read back.
type PRFields struct {
	RepoName     string
	PRID         int64
	PRNumber     int
	AuthorName   string
	CreatedAt    int64
	MergedAt     int64
	IsMerged     bool
	Title        string
	PRSummary    string
	Feature      string
	Additions    int
	Deletions    int
	ChangedFiles int
	RiskScore    float64
	RiskBand     types.RiskBand
	HighRisk     bool
	RiskReasons  []string
}

// FileFields mirrors the VS-File payload scalars the handlers read back.
type FileFields struct {
	RepoName        string
	PRID            int64
	PRNumber        int
	FileID          string
	Language        string
	IsBinary        bool
	LinesChanged    int
	RiskScoreFile   float64
	AISummary       string
	Patch           string
	FileRiskReasons []string
}

func prFromPayload(p map[string]interface{}) PRFields {
	return PRFields{
		RepoName:     str(p, "repo_name"),
		PRID:         int64v(p, "pr_id"),
		PRNumber:     int(int64v(p, "pr_number")),
		AuthorName:   str(p, "author_name"),
		CreatedAt:    int64v(p, "created_at"),
		MergedAt:     int64v(p, "merged_at"),
		IsMerged:     boolv(p, "is_merged"),
		Title:        str(p, "title"),
		PRSummary:    str(p, "pr_summary"),
		Feature:      str(p, "feature"),
		Additions:    int(int64v(p, "additions")),
		Deletions:    int(int64v(p, "deletions")),
		ChangedFiles: int(int64v(p, "changed_files")),
		RiskScore:    floatv(p, "risk_score"),
		RiskBand:     types.RiskBand(str(p, "risk_band")),
		HighRisk:     boolv(p, "high_risk"),
		RiskReasons:  strSlice(p, "risk_reasons"),
	}
}

func fileFromPayload(p map[string]interface{}) FileFields {
	return FileFields{
		RepoName:        str(p, "repo_name"),
		PRID:            int64v(p, "pr_id"),
		PRNumber:        int(int64v(p, "pr_number")),
		FileID:          str(p, "file_id"),
		Language:        str(p, "language"),
		IsBinary:        boolv(p, "is_binary"),
		LinesChanged:    int(int64v(p, "lines_changed")),
		RiskScoreFile:   floatv(p, "risk_score_file"),
		AISummary:       str(p, "ai_summary"),
		Patch:           str(p, "patch"),
		FileRiskReasons: strSlice(p, "file_risk_reasons"),
	}
}

func str(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func boolv(m map[string]interface{}, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

func int64v(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func floatv(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func strSlice(m map[string]interface{}, key string) []string {
	ss, _ := m[key].([]string)
	return ss
}

// dedupePRs removes duplicates by pr_id first, then pr_number (spec §4.9
// "Deduplication").
func dedupePRs(rows []PRResult) []PRResult {
	seenID := make(map[int64]bool)
	seenNumber := make(map[int]bool)
	out := make([]PRResult, 0, len(rows))
	for _, r := range rows {
		if r.PR.PRID != 0 {
			if seenID[r.PR.PRID] {
				continue
			}
			seenID[r.PR.PRID] = true
		} else {
			if seenNumber[r.PR.PRNumber] {
				continue
			}
			seenNumber[r.PR.PRNumber] = true
		}
		out = append(out, r)
	}
	return out
}
