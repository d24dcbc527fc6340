package mart

import (
	"context"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	apperrors "github.com/riskline/riskline/internal/errors"
)

// SQLiteStore backs local/offline runs that have no Postgres instance
// available, behind the same Store contract as PostgresStore.
type SQLiteStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewSQLiteStore opens (creating if absent) the sqlite file at path and
// applies the mart schema.
func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, apperrors.ConfigErrorf("open mart sqlite %s: %v", path, err)
	}
	db.SetMaxOpenConns(1) // sqlite allows one writer at a time

	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, apperrors.ConfigErrorf("apply mart sqlite schema: %v", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS authors (
	username TEXT PRIMARY KEY,
	display_name TEXT,
	avatar_url TEXT,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS author_metrics_daily (
	username TEXT, repo_name TEXT, day DATE,
	prs_submitted INTEGER, prs_merged INTEGER, lines_changed INTEGER,
	high_risk_prs INTEGER, features_merged INTEGER,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (username, repo_name, day)
);
CREATE TABLE IF NOT EXISTS author_metrics_window (
	username TEXT, repo_name TEXT, window_days INTEGER, start_date DATE, end_date DATE,
	prs_submitted INTEGER, prs_merged INTEGER, high_risk_prs INTEGER, high_risk_rate REAL,
	lines_changed INTEGER, ownership_low_risk_prs INTEGER,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (username, repo_name, window_days, start_date, end_date)
);
CREATE TABLE IF NOT EXISTS author_file_ownership (
	username TEXT, repo_name TEXT, window_days INTEGER, start_date DATE, end_date DATE,
	file_id TEXT, file_path TEXT, ownership_pct REAL, author_lines INTEGER,
	total_lines INTEGER, last_touched INTEGER,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (username, repo_name, window_days, start_date, end_date, file_id)
);
CREATE TABLE IF NOT EXISTS author_prs_window (
	username TEXT, repo_name TEXT, window_days INTEGER, start_date DATE, end_date DATE,
	pr_number INTEGER, title TEXT, pr_summary TEXT, merged_at INTEGER,
	risk_score REAL, high_risk BOOLEAN, feature_rule TEXT, feature_confidence REAL,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (username, repo_name, window_days, start_date, end_date, pr_number)
);
CREATE TABLE IF NOT EXISTS repo_prs (
	repo_name TEXT, pr_number INTEGER, title TEXT, pr_summary TEXT, author TEXT,
	created_at INTEGER, merged_at INTEGER, is_merged BOOLEAN,
	additions INTEGER, deletions INTEGER, changed_files INTEGER, labels_full TEXT,
	feature_rule TEXT, feature_confidence REAL, risk_score REAL, high_risk BOOLEAN,
	risk_reasons TEXT, top_risky_files TEXT,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (repo_name, pr_number)
);
`

const sqliteUpsertAuthorsSQL = `
	INSERT INTO authors (username, display_name, avatar_url)
	VALUES (:username, :display_name, :avatar_url)
	ON CONFLICT(username) DO UPDATE SET
		display_name = excluded.display_name,
		avatar_url = excluded.avatar_url,
		updated_at = CURRENT_TIMESTAMP
`

func (s *SQLiteStore) UpsertAuthors(ctx context.Context, rows []Author) error {
	return batches(rows,
		func(b []Author) error { return s.execBatch(ctx, sqliteUpsertAuthorsSQL, toAnySlice(b)) },
		func(r Author) error { return s.execOne(ctx, sqliteUpsertAuthorsSQL, r, "authors") })
}

const sqliteUpsertDailySQL = `
	INSERT INTO author_metrics_daily (
		username, repo_name, day, prs_submitted, prs_merged,
		lines_changed, high_risk_prs, features_merged
	) VALUES (
		:username, :repo_name, :day, :prs_submitted, :prs_merged,
		:lines_changed, :high_risk_prs, :features_merged
	) ON CONFLICT(username, repo_name, day) DO UPDATE SET
		prs_submitted = excluded.prs_submitted,
		prs_merged = excluded.prs_merged,
		lines_changed = excluded.lines_changed,
		high_risk_prs = excluded.high_risk_prs,
		features_merged = excluded.features_merged,
		updated_at = CURRENT_TIMESTAMP
`

func (s *SQLiteStore) UpsertDailyMetrics(ctx context.Context, rows []DailyMetric) error {
	return batches(rows,
		func(b []DailyMetric) error { return s.execBatch(ctx, sqliteUpsertDailySQL, toAnySlice(b)) },
		func(r DailyMetric) error { return s.execOne(ctx, sqliteUpsertDailySQL, r, "author_metrics_daily") })
}

const sqliteUpsertWindowSQL = `
	INSERT INTO author_metrics_window (
		username, repo_name, window_days, start_date, end_date,
		prs_submitted, prs_merged, high_risk_prs, high_risk_rate,
		lines_changed, ownership_low_risk_prs
	) VALUES (
		:username, :repo_name, :window_days, :start_date, :end_date,
		:prs_submitted, :prs_merged, :high_risk_prs, :high_risk_rate,
		:lines_changed, :ownership_low_risk_prs
	) ON CONFLICT(username, repo_name, window_days, start_date, end_date) DO UPDATE SET
		prs_submitted = excluded.prs_submitted,
		prs_merged = excluded.prs_merged,
		high_risk_prs = excluded.high_risk_prs,
		high_risk_rate = excluded.high_risk_rate,
		lines_changed = excluded.lines_changed,
		ownership_low_risk_prs = excluded.ownership_low_risk_prs,
		updated_at = CURRENT_TIMESTAMP
`

func (s *SQLiteStore) UpsertWindowMetrics(ctx context.Context, rows []WindowMetric) error {
	return batches(rows,
		func(b []WindowMetric) error { return s.execBatch(ctx, sqliteUpsertWindowSQL, toAnySlice(b)) },
		func(r WindowMetric) error { return s.execOne(ctx, sqliteUpsertWindowSQL, r, "author_metrics_window") })
}

const sqliteUpsertOwnershipSQL = `
	INSERT INTO author_file_ownership (
		username, repo_name, window_days, start_date, end_date,
		file_id, file_path, ownership_pct, author_lines, total_lines, last_touched
	) VALUES (
		:username, :repo_name, :window_days, :start_date, :end_date,
		:file_id, :file_path, :ownership_pct, :author_lines, :total_lines, :last_touched
	) ON CONFLICT(username, repo_name, window_days, start_date, end_date, file_id) DO UPDATE SET
		ownership_pct = excluded.ownership_pct,
		author_lines = excluded.author_lines,
		total_lines = excluded.total_lines,
		last_touched = excluded.last_touched,
		updated_at = CURRENT_TIMESTAMP
`

func (s *SQLiteStore) UpsertFileOwnership(ctx context.Context, rows []FileOwnership) error {
	return batches(rows,
		func(b []FileOwnership) error { return s.execBatch(ctx, sqliteUpsertOwnershipSQL, toAnySlice(b)) },
		func(r FileOwnership) error { return s.execOne(ctx, sqliteUpsertOwnershipSQL, r, "author_file_ownership") })
}

const sqliteUpsertAuthorPRsSQL = `
	INSERT INTO author_prs_window (
		username, repo_name, window_days, start_date, end_date, pr_number,
		title, pr_summary, merged_at, risk_score, high_risk,
		feature_rule, feature_confidence
	) VALUES (
		:username, :repo_name, :window_days, :start_date, :end_date, :pr_number,
		:title, :pr_summary, :merged_at, :risk_score, :high_risk,
		:feature_rule, :feature_confidence
	) ON CONFLICT(username, repo_name, window_days, start_date, end_date, pr_number) DO UPDATE SET
		title = excluded.title,
		pr_summary = excluded.pr_summary,
		merged_at = excluded.merged_at,
		risk_score = excluded.risk_score,
		high_risk = excluded.high_risk,
		feature_rule = excluded.feature_rule,
		feature_confidence = excluded.feature_confidence,
		updated_at = CURRENT_TIMESTAMP
`

func (s *SQLiteStore) UpsertAuthorPRs(ctx context.Context, rows []AuthorPR) error {
	return batches(rows,
		func(b []AuthorPR) error { return s.execBatch(ctx, sqliteUpsertAuthorPRsSQL, toAnySlice(b)) },
		func(r AuthorPR) error { return s.execOne(ctx, sqliteUpsertAuthorPRsSQL, r, "author_prs_window") })
}

const sqliteUpsertRepoPRsSQL = `
	INSERT INTO repo_prs (
		repo_name, pr_number, title, pr_summary, author, created_at, merged_at,
		is_merged, additions, deletions, changed_files, labels_full,
		feature_rule, feature_confidence, risk_score, high_risk, risk_reasons, top_risky_files
	) VALUES (
		:repo_name, :pr_number, :title, :pr_summary, :author, :created_at, :merged_at,
		:is_merged, :additions, :deletions, :changed_files, :labels_full,
		:feature_rule, :feature_confidence, :risk_score, :high_risk, :risk_reasons, :top_risky_files
	) ON CONFLICT(repo_name, pr_number) DO UPDATE SET
		title = excluded.title,
		pr_summary = excluded.pr_summary,
		merged_at = excluded.merged_at,
		is_merged = excluded.is_merged,
		additions = excluded.additions,
		deletions = excluded.deletions,
		changed_files = excluded.changed_files,
		labels_full = excluded.labels_full,
		feature_rule = excluded.feature_rule,
		feature_confidence = excluded.feature_confidence,
		risk_score = excluded.risk_score,
		high_risk = excluded.high_risk,
		risk_reasons = excluded.risk_reasons,
		top_risky_files = excluded.top_risky_files,
		updated_at = CURRENT_TIMESTAMP
`

func (s *SQLiteStore) UpsertRepoPRs(ctx context.Context, rows []RepoPR) error {
	return batches(rows,
		func(b []RepoPR) error { return s.execBatch(ctx, sqliteUpsertRepoPRsSQL, toAnySlice(b)) },
		func(r RepoPR) error { return s.execOne(ctx, sqliteUpsertRepoPRsSQL, r, "repo_prs") })
}

func (s *SQLiteStore) execBatch(ctx context.Context, query string, rows []interface{}) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.MartConflictError(err, "begin sqlite batch transaction")
	}
	defer tx.Rollback()

	for _, r := range rows {
		if _, err := tx.NamedExecContext(ctx, query, r); err != nil {
			return apperrors.MartConflictError(err, "sqlite batch upsert row")
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) execOne(ctx context.Context, query string, row interface{}, table string) error {
	_, err := s.db.NamedExecContext(ctx, query, row)
	if err != nil {
		s.logger.WithField("table", table).WithError(err).Warn("mart row upsert failed, skipping row")
		return apperrors.MartConflictError(err, fmt.Sprintf("upsert row into %s", table))
	}
	return nil
}

func (s *SQLiteStore) ListAuthorPRs(ctx context.Context, repoName, username string, windowDays, limit int) ([]AuthorPR, error) {
	var rows []AuthorPR
	query := `
		SELECT * FROM author_prs_window
		WHERE repo_name = ? AND username = ? AND window_days = ?
		ORDER BY merged_at DESC LIMIT ?
	`
	if err := s.db.SelectContext(ctx, &rows, query, repoName, username, windowDays, limit); err != nil {
		return nil, apperrors.DatabaseError(err, "list author prs")
	}
	return rows, nil
}

func (s *SQLiteStore) ListRepoPRs(ctx context.Context, repoName string, limit int) ([]RepoPR, error) {
	var rows []RepoPR
	query := `SELECT * FROM repo_prs WHERE repo_name = ? ORDER BY pr_number DESC LIMIT ?`
	if err := s.db.SelectContext(ctx, &rows, query, repoName, limit); err != nil {
		return nil, apperrors.DatabaseError(err, "list repo prs")
	}
	return rows, nil
}

func (s *SQLiteStore) GetWindowMetric(ctx context.Context, repoName, username string, windowDays int) (*WindowMetric, error) {
	var row WindowMetric
	query := `
		SELECT * FROM author_metrics_window
		WHERE repo_name = ? AND username = ? AND window_days = ?
		ORDER BY end_date DESC LIMIT 1
	`
	if err := s.db.GetContext(ctx, &row, query, repoName, username, windowDays); err != nil {
		return nil, apperrors.DatabaseError(err, "get window metric")
	}
	return &row, nil
}

func (s *SQLiteStore) ListFileOwnership(ctx context.Context, repoName string, windowDays int, filePath string) ([]FileOwnership, error) {
	var rows []FileOwnership
	query := `
		SELECT * FROM author_file_ownership
		WHERE repo_name = ? AND window_days = ? AND file_path = ?
		ORDER BY ownership_pct DESC
	`
	if err := s.db.SelectContext(ctx, &rows, query, repoName, windowDays, filePath); err != nil {
		return nil, apperrors.DatabaseError(err, "list file ownership")
	}
	return rows, nil
}
