package mart

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	apperrors "github.com/riskline/riskline/internal/errors"
)

// PostgresStore is the deployed mart backend.
type PostgresStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPostgresStore dials dsn and configures the connection pool the way the
// ingestion and projector CLIs share it.
func NewPostgresStore(dsn string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, apperrors.ConfigErrorf("connect to mart postgres: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresStore{db: db, logger: logger}, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

const upsertAuthorsSQL = `
	INSERT INTO authors (username, display_name, avatar_url)
	VALUES (:username, :display_name, :avatar_url)
	ON CONFLICT (username) DO UPDATE SET
		display_name = EXCLUDED.display_name,
		avatar_url = EXCLUDED.avatar_url,
		updated_at = now()
`

func (s *PostgresStore) UpsertAuthors(ctx context.Context, rows []Author) error {
	return s.upsert(ctx, rows, upsertAuthorsSQL, "authors")
}

const upsertDailySQL = `
	INSERT INTO author_metrics_daily (
		username, repo_name, day, prs_submitted, prs_merged,
		lines_changed, high_risk_prs, features_merged
	) VALUES (
		:username, :repo_name, :day, :prs_submitted, :prs_merged,
		:lines_changed, :high_risk_prs, :features_merged
	) ON CONFLICT (username, repo_name, day) DO UPDATE SET
		prs_submitted = EXCLUDED.prs_submitted,
		prs_merged = EXCLUDED.prs_merged,
		lines_changed = EXCLUDED.lines_changed,
		high_risk_prs = EXCLUDED.high_risk_prs,
		features_merged = EXCLUDED.features_merged,
		updated_at = now()
`

func (s *PostgresStore) UpsertDailyMetrics(ctx context.Context, rows []DailyMetric) error {
	return s.upsert(ctx, rows, upsertDailySQL, "author_metrics_daily")
}

const upsertWindowSQL = `
	INSERT INTO author_metrics_window (
		username, repo_name, window_days, start_date, end_date,
		prs_submitted, prs_merged, high_risk_prs, high_risk_rate,
		lines_changed, ownership_low_risk_prs
	) VALUES (
		:username, :repo_name, :window_days, :start_date, :end_date,
		:prs_submitted, :prs_merged, :high_risk_prs, :high_risk_rate,
		:lines_changed, :ownership_low_risk_prs
	) ON CONFLICT (username, repo_name, window_days, start_date, end_date) DO UPDATE SET
		prs_submitted = EXCLUDED.prs_submitted,
		prs_merged = EXCLUDED.prs_merged,
		high_risk_prs = EXCLUDED.high_risk_prs,
		high_risk_rate = EXCLUDED.high_risk_rate,
		lines_changed = EXCLUDED.lines_changed,
		ownership_low_risk_prs = EXCLUDED.ownership_low_risk_prs,
		updated_at = now()
`

func (s *PostgresStore) UpsertWindowMetrics(ctx context.Context, rows []WindowMetric) error {
	return s.upsert(ctx, rows, upsertWindowSQL, "author_metrics_window")
}

const upsertOwnershipSQL = `
	INSERT INTO author_file_ownership (
		username, repo_name, window_days, start_date, end_date,
		file_id, file_path, ownership_pct, author_lines, total_lines, last_touched
	) VALUES (
		:username, :repo_name, :window_days, :start_date, :end_date,
		:file_id, :file_path, :ownership_pct, :author_lines, :total_lines, :last_touched
	) ON CONFLICT (username, repo_name, window_days, start_date, end_date, file_id) DO UPDATE SET
		ownership_pct = EXCLUDED.ownership_pct,
		author_lines = EXCLUDED.author_lines,
		total_lines = EXCLUDED.total_lines,
		last_touched = EXCLUDED.last_touched,
		updated_at = now()
`

func (s *PostgresStore) UpsertFileOwnership(ctx context.Context, rows []FileOwnership) error {
	return s.upsert(ctx, rows, upsertOwnershipSQL, "author_file_ownership")
}

const upsertAuthorPRsSQL = `
	INSERT INTO author_prs_window (
		username, repo_name, window_days, start_date, end_date, pr_number,
		title, pr_summary, merged_at, risk_score, high_risk,
		feature_rule, feature_confidence
	) VALUES (
		:username, :repo_name, :window_days, :start_date, :end_date, :pr_number,
		:title, :pr_summary, :merged_at, :risk_score, :high_risk,
		:feature_rule, :feature_confidence
	) ON CONFLICT (username, repo_name, window_days, start_date, end_date, pr_number) DO UPDATE SET
		title = EXCLUDED.title,
		pr_summary = EXCLUDED.pr_summary,
		merged_at = EXCLUDED.merged_at,
		risk_score = EXCLUDED.risk_score,
		high_risk = EXCLUDED.high_risk,
		feature_rule = EXCLUDED.feature_rule,
		feature_confidence = EXCLUDED.feature_confidence,
		updated_at = now()
`

func (s *PostgresStore) UpsertAuthorPRs(ctx context.Context, rows []AuthorPR) error {
	return s.upsert(ctx, rows, upsertAuthorPRsSQL, "author_prs_window")
}

const upsertRepoPRsSQL = `
	INSERT INTO repo_prs (
		repo_name, pr_number, title, pr_summary, author, created_at, merged_at,
		is_merged, additions, deletions, changed_files, labels_full,
		feature_rule, feature_confidence, risk_score, high_risk, risk_reasons, top_risky_files
	) VALUES (
		:repo_name, :pr_number, :title, :pr_summary, :author, :created_at, :merged_at,
		:is_merged, :additions, :deletions, :changed_files, :labels_full,
		:feature_rule, :feature_confidence, :risk_score, :high_risk, :risk_reasons, :top_risky_files
	) ON CONFLICT (repo_name, pr_number) DO UPDATE SET
		title = EXCLUDED.title,
		pr_summary = EXCLUDED.pr_summary,
		merged_at = EXCLUDED.merged_at,
		is_merged = EXCLUDED.is_merged,
		additions = EXCLUDED.additions,
		deletions = EXCLUDED.deletions,
		changed_files = EXCLUDED.changed_files,
		labels_full = EXCLUDED.labels_full,
		feature_rule = EXCLUDED.feature_rule,
		feature_confidence = EXCLUDED.feature_confidence,
		risk_score = EXCLUDED.risk_score,
		high_risk = EXCLUDED.high_risk,
		risk_reasons = EXCLUDED.risk_reasons,
		top_risky_files = EXCLUDED.top_risky_files,
		updated_at = now()
`

func (s *PostgresStore) UpsertRepoPRs(ctx context.Context, rows []RepoPR) error {
	return s.upsert(ctx, rows, upsertRepoPRsSQL, "repo_prs")
}

// upsert runs rows through the batches helper: a batch is one transaction of
// NamedExecContext calls, falling back to isolated single-row transactions
// on batch failure (spec §4.5).
func (s *PostgresStore) upsert(ctx context.Context, rows interface{}, query, table string) error {
	switch typed := rows.(type) {
	case []Author:
		return batches(typed,
			func(b []Author) error { return s.execBatch(ctx, query, toAnySlice(b)) },
			func(r Author) error { return s.execOne(ctx, query, r, table) })
	case []DailyMetric:
		return batches(typed,
			func(b []DailyMetric) error { return s.execBatch(ctx, query, toAnySlice(b)) },
			func(r DailyMetric) error { return s.execOne(ctx, query, r, table) })
	case []WindowMetric:
		return batches(typed,
			func(b []WindowMetric) error { return s.execBatch(ctx, query, toAnySlice(b)) },
			func(r WindowMetric) error { return s.execOne(ctx, query, r, table) })
	case []FileOwnership:
		return batches(typed,
			func(b []FileOwnership) error { return s.execBatch(ctx, query, toAnySlice(b)) },
			func(r FileOwnership) error { return s.execOne(ctx, query, r, table) })
	case []AuthorPR:
		return batches(typed,
			func(b []AuthorPR) error { return s.execBatch(ctx, query, toAnySlice(b)) },
			func(r AuthorPR) error { return s.execOne(ctx, query, r, table) })
	case []RepoPR:
		return batches(typed,
			func(b []RepoPR) error { return s.execBatch(ctx, query, toAnySlice(b)) },
			func(r RepoPR) error { return s.execOne(ctx, query, r, table) })
	default:
		return apperrors.InternalErrorf("mart upsert: unsupported row type %T", rows)
	}
}

func toAnySlice[T any](rows []T) []interface{} {
	out := make([]interface{}, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}

func (s *PostgresStore) execBatch(ctx context.Context, query string, rows []interface{}) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.MartConflictError(err, "begin batch transaction")
	}
	defer tx.Rollback()

	for _, r := range rows {
		if _, err := tx.NamedExecContext(ctx, query, r); err != nil {
			return apperrors.MartConflictError(err, "batch upsert row")
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) execOne(ctx context.Context, query string, row interface{}, table string) error {
	_, err := s.db.NamedExecContext(ctx, query, row)
	if err != nil {
		s.logger.WithField("table", table).WithError(err).Warn("mart row upsert failed, skipping row")
		return apperrors.MartConflictError(err, fmt.Sprintf("upsert row into %s", table))
	}
	return nil
}

func (s *PostgresStore) ListAuthorPRs(ctx context.Context, repoName, username string, windowDays, limit int) ([]AuthorPR, error) {
	var rows []AuthorPR
	query := `
		SELECT * FROM author_prs_window
		WHERE repo_name = $1 AND username = $2 AND window_days = $3
		ORDER BY merged_at DESC LIMIT $4
	`
	if err := s.db.SelectContext(ctx, &rows, query, repoName, username, windowDays, limit); err != nil {
		return nil, apperrors.DatabaseError(err, "list author prs")
	}
	return rows, nil
}

func (s *PostgresStore) ListRepoPRs(ctx context.Context, repoName string, limit int) ([]RepoPR, error) {
	var rows []RepoPR
	query := `SELECT * FROM repo_prs WHERE repo_name = $1 ORDER BY pr_number DESC LIMIT $2`
	if err := s.db.SelectContext(ctx, &rows, query, repoName, limit); err != nil {
		return nil, apperrors.DatabaseError(err, "list repo prs")
	}
	return rows, nil
}

func (s *PostgresStore) GetWindowMetric(ctx context.Context, repoName, username string, windowDays int) (*WindowMetric, error) {
	var row WindowMetric
	query := `
		SELECT * FROM author_metrics_window
		WHERE repo_name = $1 AND username = $2 AND window_days = $3
		ORDER BY end_date DESC LIMIT 1
	`
	if err := s.db.GetContext(ctx, &row, query, repoName, username, windowDays); err != nil {
		return nil, apperrors.DatabaseError(err, "get window metric")
	}
	return &row, nil
}

func (s *PostgresStore) ListFileOwnership(ctx context.Context, repoName string, windowDays int, filePath string) ([]FileOwnership, error) {
	var rows []FileOwnership
	query := `
		SELECT * FROM author_file_ownership
		WHERE repo_name = $1 AND window_days = $2 AND file_path = $3
		ORDER BY ownership_pct DESC
	`
	if err := s.db.SelectContext(ctx, &rows, query, repoName, windowDays, filePath); err != nil {
		return nil, apperrors.DatabaseError(err, "list file ownership")
	}
	return rows, nil
}
