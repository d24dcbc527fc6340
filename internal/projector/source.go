package projector

import (
	"context"
	"encoding/json"

	"github.com/riskline/riskline/internal/types"
	"github.com/riskline/riskline/internal/vectorstore"
)

// VectorSource implements Source by reading PRs and files back out of the
// vector store's scalar index (spec §4.6: the projector's only input is the
// enriched records already upserted by vector load, never the forge
// directly). It reconstructs *types.PullRequest and *types.File from the
// untyped payload maps the same way internal/retrieval does, since both
// packages read the same collections.
type VectorSource struct {
	vs             *vectorstore.Client
	prCollection   string
	fileCollection string
}

// NewVectorSource builds a projector.Source backed by the given collections.
func NewVectorSource(vs *vectorstore.Client, prCollection, fileCollection string) *VectorSource {
	return &VectorSource{vs: vs, prCollection: prCollection, fileCollection: fileCollection}
}

// ListPRsInWindow returns every PR (merged or not) whose merged_at or
// created_at falls in [start, end], each with its Files populated from
// VS-File. A PR that never merged has MergedAt == 0 and is still returned so
// callers can compute submission-side metrics.
func (s *VectorSource) ListPRsInWindow(ctx context.Context, repoName string, start, end int64) ([]*types.PullRequest, error) {
	prExpr := vectorstore.And(
		vectorstore.Eq("repo_name", repoName),
		vectorstore.GTE("created_at", start),
		vectorstore.LTE("created_at", end),
	)
	prRows, err := s.vs.QueryPRs(ctx, s.prCollection, prExpr, 100000)
	if err != nil {
		return nil, err
	}
	mergedExpr := vectorstore.And(
		vectorstore.Eq("repo_name", repoName),
		vectorstore.GTE("merged_at", start),
		vectorstore.LTE("merged_at", end),
	)
	mergedRows, err := s.vs.QueryPRs(ctx, s.prCollection, mergedExpr, 100000)
	if err != nil {
		return nil, err
	}
	prRows = append(prRows, mergedRows...)

	fileExpr := vectorstore.And(
		vectorstore.Eq("repo_name", repoName),
		vectorstore.GTE("merged_at", start),
		vectorstore.LTE("merged_at", end),
	)
	fileRows, err := s.vs.QueryFiles(ctx, s.fileCollection, fileExpr, 1000000)
	if err != nil {
		return nil, err
	}

	filesByPR := make(map[int64][]*types.File, len(fileRows))
	for _, row := range fileRows {
		f := fileFromPayload(row.Payload)
		filesByPR[f.PRID] = append(filesByPR[f.PRID], f)
	}

	prs := make([]*types.PullRequest, 0, len(prRows))
	seen := make(map[int64]bool, len(prRows))
	for _, row := range prRows {
		pr := prFromPayload(row.Payload)
		if seen[pr.PRID] {
			continue
		}
		seen[pr.PRID] = true
		pr.Files = filesByPR[pr.PRID]
		prs = append(prs, pr)
	}
	return prs, nil
}

func prFromPayload(p map[string]interface{}) *types.PullRequest {
	return &types.PullRequest{
		RepoID:       str(p["repo_id"]),
		RepoName:     str(p["repo_name"]),
		PRID:         int64v(p["pr_id"]),
		PRNumber:     int(int64v(p["pr_number"])),
		AuthorID:     str(p["author_id"]),
		AuthorName:   str(p["author_name"]),
		CreatedAt:    int64v(p["created_at"]),
		MergedAt:     int64v(p["merged_at"]),
		IsMerged:     boolv(p["is_merged"]),
		IsClosed:     boolv(p["is_closed"]),
		Status:       str(p["status"]),
		Title:        str(p["title"]),
		Body:         str(p["body"]),
		PRSummary:    str(p["pr_summary"]),
		Feature:      str(p["feature"]),
		Additions:    int(int64v(p["additions"])),
		Deletions:    int(int64v(p["deletions"])),
		ChangedFiles: int(int64v(p["changed_files"])),
		RiskScore:    floatv(p["risk_score"]),
		RiskBand:     types.RiskBand(str(p["risk_band"])),
		HighRisk:     boolv(p["high_risk"]),
		LabelsFull:   decodeLabels(str(p["labels_full"])),
		LabelTrust:   floatv(p["label_trust"]),
		RiskReasons:  strSlice(p["risk_reasons"]),
	}
}

func decodeLabels(raw string) []types.Label {
	if raw == "" {
		return nil
	}
	var labels []types.Label
	if err := json.Unmarshal([]byte(raw), &labels); err != nil {
		return nil
	}
	return labels
}

func strSlice(v interface{}) []string {
	ss, _ := v.([]string)
	return ss
}

func fileFromPayload(p map[string]interface{}) *types.File {
	return &types.File{
		RepoID:          str(p["repo_id"]),
		RepoName:        str(p["repo_name"]),
		PRID:            int64v(p["pr_id"]),
		PRNumber:        int(int64v(p["pr_number"])),
		FileID:          str(p["file_id"]),
		AuthorID:        str(p["author_id"]),
		AuthorName:      str(p["author_name"]),
		MergedAt:        int64v(p["merged_at"]),
		FileStatus:      types.FileStatus(str(p["file_status"])),
		Language:        str(p["language"]),
		IsBinary:        boolv(p["is_binary"]),
		Additions:       int(int64v(p["additions"])),
		Deletions:       int(int64v(p["deletions"])),
		LinesChanged:    int(int64v(p["lines_changed"])),
		AISummary:       str(p["ai_summary"]),
		RiskScoreFile:   floatv(p["risk_score_file"]),
		HighRiskFlag:    boolv(p["high_risk_flag"]),
		Patch:           str(p["patch"]),
		FileRiskReasons: strSlice(p["file_risk_reasons"]),
	}
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

func boolv(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func int64v(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}

func floatv(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}
