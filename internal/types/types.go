// Package types holds the tagged record types shared by every component of
// the ingestion, materialization, and retrieval pipeline. Boundary
// serialization (vector store payloads, mart rows, API responses) all
// convert through these types rather than passing provider-native structs
// across package lines.
package types

// RiskBand buckets a numeric risk score into a short label.
type RiskBand string

const (
	RiskBandLow    RiskBand = "low"
	RiskBandMedium RiskBand = "medium"
	RiskBandHigh   RiskBand = "high"
)

// BandForScore implements the banding rule: low <= 3.0, medium (3.0, 6.9], high otherwise.
func BandForScore(score float64) RiskBand {
	switch {
	case score <= 3.0:
		return RiskBandLow
	case score <= 6.9:
		return RiskBandMedium
	default:
		return RiskBandHigh
	}
}

// HighRisk reports whether a score crosses the high-risk threshold.
func HighRisk(score float64) bool {
	return score >= 7.0
}

// Label is a GitHub-style PR label.
type Label struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// FileStatus is the file-level change kind reported by the forge.
type FileStatus string

const (
	FileAdded    FileStatus = "added"
	FileModified FileStatus = "modified"
	FileRemoved  FileStatus = "removed"
	FileRenamed  FileStatus = "renamed"
)

// PullRequest is the enriched, flattened PR record written to VS-PR and
// embedded in the persisted ingest JSON (§6 "Persisted JSON format").
type PullRequest struct {
	RepoID   string `json:"repo_id"`
	RepoName string `json:"repo_name"`
	PRID     int64  `json:"pr_id"`
	PRNumber int    `json:"pr_number"`

	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`

	CreatedAt int64 `json:"created_at"`
	MergedAt  int64 `json:"merged_at"`

	IsMerged bool   `json:"is_merged"`
	IsClosed bool   `json:"is_closed"`
	Status   string `json:"status"`

	Title     string `json:"title"`
	Body      string `json:"body"`
	PRSummary string `json:"pr_summary"`

	Feature    string  `json:"feature"`
	LabelsFull []Label `json:"labels_full"`

	// LabelTrust is the commenter-role-weighted confidence (0-0.98) that
	// LabelsFull reflects a real maintainer decision rather than a
	// drive-by label from an uninvolved contributor (SPEC_FULL.md §4
	// "Confidence-bearing comment-based label trust"). Zero when the PR has
	// no labels or no comments to corroborate its labels.
	LabelTrust float64 `json:"label_trust"`

	Additions    int `json:"additions"`
	Deletions    int `json:"deletions"`
	ChangedFiles int `json:"changed_files"`

	RiskScore   float64  `json:"risk_score"`
	RiskBand    RiskBand `json:"risk_band"`
	HighRisk    bool     `json:"high_risk"`
	RiskReasons []string `json:"risk_reasons"`

	// MergedAtBackfilled records whether MergedAt was backfilled from
	// CreatedAt because the forge reported the PR merged with no
	// merge timestamp (spec.md §9 source hazard). Not persisted to VS-PR.
	MergedAtBackfilled bool `json:"merged_at_backfilled,omitempty"`

	Vector []float32 `json:"-"`

	Files []*File `json:"files"`
}

// File is the enriched per-file record written to VS-File.
type File struct {
	RepoID     string `json:"repo_id"`
	RepoName   string `json:"repo_name"`
	PRID       int64  `json:"pr_id"`
	PRNumber   int    `json:"pr_number"`
	FileID     string `json:"file_id"`
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
	MergedAt   int64  `json:"merged_at"`

	FileStatus FileStatus `json:"file_status"`
	Language   string     `json:"language"`

	IsBinary        bool `json:"is_binary"`
	IsConfigFile    bool `json:"is_config_file"`
	IsDocumentation bool `json:"is_documentation"`
	IsTestFile      bool `json:"is_test_file"`
	IsSourceCode    bool `json:"is_source_code"`

	Additions    int `json:"additions"`
	Deletions    int `json:"deletions"`
	LinesChanged int `json:"lines_changed"`
	Patch        string `json:"patch"`

	AISummary       string   `json:"ai_summary"`
	RiskScoreFile   float64  `json:"risk_score_file"`
	HighRiskFlag    bool     `json:"high_risk_flag"`
	FileRiskReasons []string `json:"file_risk_reasons"`

	// ContentError records a non-fatal per-file enrichment failure
	// (§4.3 failure policy) without aborting the owning PR.
	ContentError string `json:"content_error,omitempty"`

	Vector []float32 `json:"-"`

	preContent  string
	postContent string
}

// SetPreContent / SetPostContent / PreContent / PostContent store fetched
// file bodies used only to build LLM prompts. Both fields are unexported, so
// neither pre- nor post-content is written to the ingest JSON or to VS-File.
func (f *File) SetPreContent(s string)  { f.preContent = s }
func (f *File) SetPostContent(s string) { f.postContent = s }
func (f *File) PreContent() string      { return f.preContent }
func (f *File) PostContent() string     { return f.postContent }

// IngestResult is the top-level persisted JSON document (§6).
type IngestResult struct {
	Summary      IngestSummary  `json:"summary"`
	PullRequests []*PullRequest `json:"pull_requests"`
}

// IngestSummary gives a cheap overview of an ingest run.
type IngestSummary struct {
	RepoName       string `json:"repo_name"`
	PRsProcessed   int    `json:"prs_processed"`
	PRsSkipped     int    `json:"prs_skipped"`
	FilesProcessed int    `json:"files_processed"`
	StartedAt      int64  `json:"started_at"`
	FinishedAt     int64  `json:"finished_at"`
}
