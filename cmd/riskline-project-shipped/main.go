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

// rootCmd is a narrower sibling of riskline-project that materializes only
// repo_prs, the "shipped work" feed a repo-overview page reads (spec §6).
var rootCmd = &cobra.Command{
	Use:     "riskline-project-shipped",
	Short:   "Materialize the repo_prs mart table from the vector store",
	Version: Version,
	RunE:    runProjectShipped,
}

var (
	repoFlag         string
	forceRefreshFlag bool
	incrementalFlag  bool
)

func init() {
	rootCmd.Flags().StringVar(&repoFlag, "repo", "", "repository in owner/repo form (required)")
	rootCmd.Flags().BoolVar(&forceRefreshFlag, "force-refresh", false, "recompute all repo_prs rows, ignoring --incremental")
	rootCmd.Flags().BoolVar(&incrementalFlag, "incremental", false, "only read PRs created or merged since the last recorded run")
	rootCmd.MarkFlagRequired("repo")
	rootCmd.SetVersionTemplate(fmt.Sprintf("riskline-project-shipped %s\nBuild time: %s\nGit commit: %s\n", Version, BuildTime, GitCommit))
}

// lastRunMarkerDir holds one file per repo recording the previous run's
// finish time, consulted only when --incremental is set.
const lastRunMarkerDir = ".riskline/project-shipped"

func runProjectShipped(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	baseLogger, err := logging.NewLogger(logging.DefaultConfig(false))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer baseLogger.Close()
	logger := baseLogger.With("command", "riskline-project-shipped")

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
	dataWindowStart := today.AddDate(-5, 0, 0) // matches timeparse's no-match default window

	markerPath := markerPathFor(repoFlag)
	if incrementalFlag && !forceRefreshFlag {
		if last, ok := readMarker(markerPath); ok {
			dataWindowStart = last
		}
	}

	logger.Info("projecting repo_prs", "repo", repoFlag, "incremental", incrementalFlag, "data_window_start", dataWindowStart)
	tables := map[mart.UpdateTable]bool{mart.TableRepoPRs: true}
	if err := proj.Run(ctx, repoFlag, dataWindowStart, today, tables); err != nil {
		return fmt.Errorf("project repo_prs: %w", err)
	}

	if incrementalFlag {
		if err := writeMarker(markerPath, today); err != nil {
			logger.Warn("failed to record run marker, next --incremental run will re-scan further back", "error", err)
		}
	}

	logger.Info("project-shipped complete", "repo", repoFlag)
	return nil
}

func markerPathFor(repo string) string {
	safe := strings.ReplaceAll(repo, "/", "_")
	return lastRunMarkerDir + "/" + safe + ".marker"
}

func readMarker(path string) (time.Time, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func writeMarker(path string, t time.Time) error {
	if err := os.MkdirAll(lastRunMarkerDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(t.Format(time.RFC3339)), 0o644)
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
