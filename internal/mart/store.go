package mart

import "context"

const batchSize = 50

// UpdateTable names one of the six mart tables, matching the projector
// CLI's `--update-table` flag (spec §6).
type UpdateTable string

const (
	TableAuthors             UpdateTable = "authors"
	TableAuthorMetricsDaily  UpdateTable = "author_metrics_daily"
	TableAuthorMetricsWindow UpdateTable = "author_metrics_window"
	TableAuthorPRsWindow     UpdateTable = "author_prs_window"
	TableAuthorFileOwnership UpdateTable = "author_file_ownership"
	TableRepoPRs             UpdateTable = "repo_prs"
	TableAll                UpdateTable = "all"
)

// Store is the relational mart contract; Postgres is the deployed backend,
// SQLite backs local/offline runs without a Postgres instance available.
type Store interface {
	UpsertAuthors(ctx context.Context, rows []Author) error
	UpsertDailyMetrics(ctx context.Context, rows []DailyMetric) error
	UpsertWindowMetrics(ctx context.Context, rows []WindowMetric) error
	UpsertFileOwnership(ctx context.Context, rows []FileOwnership) error
	UpsertAuthorPRs(ctx context.Context, rows []AuthorPR) error
	UpsertRepoPRs(ctx context.Context, rows []RepoPR) error

	ListAuthorPRs(ctx context.Context, repoName, username string, windowDays int, limit int) ([]AuthorPR, error)
	ListRepoPRs(ctx context.Context, repoName string, limit int) ([]RepoPR, error)
	GetWindowMetric(ctx context.Context, repoName, username string, windowDays int) (*WindowMetric, error)
	ListFileOwnership(ctx context.Context, repoName string, windowDays int, filePath string) ([]FileOwnership, error)

	Close() error
}

// batches splits n into batches of batchSize, invoking fn per batch; a
// failed batch falls back to invoking fn one row at a time (spec §4.5). A
// failed row does not stop the rest; the first row error is returned after
// every row has been tried.
func batches[T any](rows []T, batchFn func([]T) error, rowFn func(T) error) error {
	var firstErr error
	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]
		if err := batchFn(batch); err != nil {
			for _, r := range batch {
				if rowErr := rowFn(r); rowErr != nil && firstErr == nil {
					firstErr = rowErr
				}
			}
		}
	}
	return firstErr
}
