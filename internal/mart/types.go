// Package mart persists the six analytic tables derived from enriched PR
// records (spec §4.5/§4.6): authors, daily/windowed author metrics, file
// ownership, author-scoped PR listings, and the repo-wide shipped-PR table.
// All writes are upserts; conflict resolution always updates every non-key
// column and bumps updated_at.
package mart

import "time"

// Author is one row of authors.
type Author struct {
	Username    string `db:"username"`
	DisplayName string `db:"display_name"`
	AvatarURL   string `db:"avatar_url"`
}

// DailyMetric is one row of author_metrics_daily, PK (username, repo_name, day).
type DailyMetric struct {
	Username       string    `db:"username"`
	RepoName       string    `db:"repo_name"`
	Day            time.Time `db:"day"`
	PRsSubmitted   int       `db:"prs_submitted"`
	PRsMerged      int       `db:"prs_merged"`
	LinesChanged   int       `db:"lines_changed"`
	HighRiskPRs    int       `db:"high_risk_prs"`
	FeaturesMerged int       `db:"features_merged"`
}

// WindowMetric is one row of author_metrics_window.
type WindowMetric struct {
	Username            string    `db:"username"`
	RepoName            string    `db:"repo_name"`
	WindowDays          int       `db:"window_days"`
	StartDate           time.Time `db:"start_date"`
	EndDate             time.Time `db:"end_date"`
	PRsSubmitted        int       `db:"prs_submitted"`
	PRsMerged           int       `db:"prs_merged"`
	HighRiskPRs         int       `db:"high_risk_prs"`
	HighRiskRate        float64   `db:"high_risk_rate"`
	LinesChanged        int       `db:"lines_changed"`
	OwnershipLowRiskPRs int       `db:"ownership_low_risk_prs"`
}

// FileOwnership is one row of author_file_ownership.
type FileOwnership struct {
	Username     string    `db:"username"`
	RepoName     string    `db:"repo_name"`
	WindowDays   int       `db:"window_days"`
	StartDate    time.Time `db:"start_date"`
	EndDate      time.Time `db:"end_date"`
	FileID       string    `db:"file_id"`
	FilePath     string    `db:"file_path"`
	OwnershipPct float64   `db:"ownership_pct"`
	AuthorLines  int       `db:"author_lines"`
	TotalLines   int       `db:"total_lines"`
	LastTouched  int64     `db:"last_touched"`
}

// AuthorPR is one row of author_prs_window.
type AuthorPR struct {
	Username          string  `db:"username"`
	RepoName          string  `db:"repo_name"`
	WindowDays        int     `db:"window_days"`
	StartDate         time.Time `db:"start_date"`
	EndDate           time.Time `db:"end_date"`
	PRNumber          int     `db:"pr_number"`
	Title             string  `db:"title"`
	PRSummary         string  `db:"pr_summary"`
	MergedAt          int64   `db:"merged_at"`
	RiskScore         float64 `db:"risk_score"`
	HighRisk          bool    `db:"high_risk"`
	FeatureRule       string  `db:"feature_rule"`
	FeatureConfidence float64 `db:"feature_confidence"`
}

// RiskyFile is one entry of repo_prs.top_risky_files.
type RiskyFile struct {
	FilePath      string  `json:"file_path"`
	RiskScoreFile float64 `json:"risk_score_file"`
	LinesChanged  int     `json:"lines_changed"`
}

// RepoPR is one row of repo_prs, PK (repo_name, pr_number).
type RepoPR struct {
	RepoName        string    `db:"repo_name"`
	PRNumber        int       `db:"pr_number"`
	Title           string    `db:"title"`
	PRSummary       string    `db:"pr_summary"`
	Author          string    `db:"author"`
	CreatedAt       int64     `db:"created_at"`
	MergedAt        int64     `db:"merged_at"`
	IsMerged        bool      `db:"is_merged"`
	Additions       int       `db:"additions"`
	Deletions       int       `db:"deletions"`
	ChangedFiles    int       `db:"changed_files"`
	LabelsFull      string    `db:"labels_full"` // JSON-encoded []types.Label
	FeatureRule     string    `db:"feature_rule"`
	FeatureConfidence float64 `db:"feature_confidence"`
	RiskScore       float64   `db:"risk_score"`
	HighRisk        bool      `db:"high_risk"`
	RiskReasons     string    `db:"risk_reasons"`     // JSON-encoded []string
	TopRiskyFiles   string    `db:"top_risky_files"`  // JSON-encoded []RiskyFile
}
