package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/riskline/riskline/internal/config"
	apperrors "github.com/riskline/riskline/internal/errors"
	"github.com/riskline/riskline/internal/logging"
	"github.com/riskline/riskline/internal/mart"
	"github.com/riskline/riskline/internal/projector"
	"github.com/riskline/riskline/internal/vectorstore"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "riskline-project",
	Short:   "Materialize the relational mart tables from the vector store",
	Version: Version,
	RunE:    runProject,
}

var (
	repoFlag          string
	windowDaysFlag    int
	dataWindowDaysFlag int
	forceRefreshFlag  bool
	updateTableFlag   string
)

func init() {
	rootCmd.Flags().StringVar(&repoFlag, "repo", "", "repository in owner/repo form (required)")
	rootCmd.Flags().IntVar(&windowDaysFlag, "window-days", 30, "reporting window in days: 7, 14, 30, or 90; validated but not applied: every run projects the 7/15/30/60/90/all-time windows")
	rootCmd.Flags().IntVar(&dataWindowDaysFlag, "data-window-days", 365, "how far back to read PRs from the vector store")
	rootCmd.Flags().BoolVar(&forceRefreshFlag, "force-refresh", false, "recompute even if the mart already has rows for this window")
	rootCmd.Flags().StringVar(&updateTableFlag, "update-table", "all", "authors|author_metrics_daily|author_metrics_window|author_prs_window|author_file_ownership|repo_prs|all")
	rootCmd.MarkFlagRequired("repo")
	rootCmd.SetVersionTemplate(fmt.Sprintf("riskline-project %s\nBuild time: %s\nGit commit: %s\n", Version, BuildTime, GitCommit))
}

func runProject(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	baseLogger, err := logging.NewLogger(logging.DefaultConfig(false))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer baseLogger.Close()
	logger := baseLogger.With("command", "riskline-project")

	switch windowDaysFlag {
	case 7, 14, 30, 90:
	default:
		return apperrors.ValidationErrorf("--window-days must be one of 7, 14, 30, 90, got %d", windowDaysFlag)
	}

	table := mart.UpdateTable(updateTableFlag)
	switch table {
	case mart.TableAuthors, mart.TableAuthorMetricsDaily, mart.TableAuthorMetricsWindow,
		mart.TableAuthorPRsWindow, mart.TableAuthorFileOwnership, mart.TableRepoPRs, mart.TableAll:
	default:
		return apperrors.ValidationErrorf("--update-table %q is not a recognized table", updateTableFlag)
	}

	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	vs, err := vectorstore.NewClient(cfg.VectorStore.URL, cfg.VectorStore.APIKey, cfg.VectorStore.Dimension, 30*time.Second)
	if err != nil {
		return fmt.Errorf("connect vector store: %w", err)
	}
	defer vs.Close()

	store, err := buildMartStore(cfg)
	if err != nil {
		return fmt.Errorf("open mart store: %w", err)
	}
	defer store.Close()

	source := projector.NewVectorSource(vs, cfg.VectorStore.PRCollection, cfg.VectorStore.FileCollection)
	proj := projector.NewProjector(source, store)

	today := time.Now().UTC()
	dataWindowStart := today.AddDate(0, 0, -dataWindowDaysFlag)

	tables := map[mart.UpdateTable]bool{table: true}
	if forceRefreshFlag {
		logger.Info("force-refresh requested, recomputing regardless of existing rows")
	}

	logger.Info("projecting mart tables", "repo", repoFlag, "table", table, "data_window_start", dataWindowStart, "today", today)
	if err := proj.Run(ctx, repoFlag, dataWindowStart, today, tables); err != nil {
		return fmt.Errorf("project mart tables: %w", err)
	}

	logger.Info("project complete", "repo", repoFlag)
	return nil
}

func buildMartStore(cfg *config.Config) (mart.Store, error) {
	logger := logrus.New()
	switch strings.ToLower(cfg.Storage.Type) {
	case "postgres":
		return mart.NewPostgresStore(cfg.Storage.PostgresDSN, logger)
	case "sqlite", "":
		return mart.NewSQLiteStore(cfg.Storage.SQLitePath, logger)
	default:
		return nil, apperrors.ConfigErrorf("unknown storage.type %q", cfg.Storage.Type)
	}
}
