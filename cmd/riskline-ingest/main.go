package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/riskline/riskline/internal/config"
	"github.com/riskline/riskline/internal/enrichment"
	apperrors "github.com/riskline/riskline/internal/errors"
	"github.com/riskline/riskline/internal/forge"
	"github.com/riskline/riskline/internal/llmgateway"
	"github.com/riskline/riskline/internal/logging"
	"github.com/riskline/riskline/internal/types"
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
	Use:     "riskline-ingest OWNER/REPO",
	Short:   "Crawl and enrich a repository's pull-request history",
	Version: Version,
	Args:    cobra.ExactArgs(1),
	RunE:    runIngest,
}

var (
	state      string
	outputPath string
)

func init() {
	rootCmd.Flags().StringVar(&state, "state", "all", "PR state to crawl: open|closed|all")
	rootCmd.Flags().StringVar(&outputPath, "output", "ingest.json", "path to write the enriched PR JSON")
	rootCmd.SetVersionTemplate(fmt.Sprintf("riskline-ingest %s\nBuild time: %s\nGit commit: %s\n", Version, BuildTime, GitCommit))
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	baseLogger, err := logging.NewLogger(logging.DefaultConfig(false))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer baseLogger.Close()
	logger := baseLogger.With("command", "riskline-ingest")

	repoArg := args[0]
	parts := strings.SplitN(repoArg, "/", 2)
	if len(parts) != 2 {
		return apperrors.ValidationErrorf("repo must be in owner/repo form, got %q", repoArg)
	}
	owner, name := parts[0], parts[1]

	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	fc := forge.NewClient(cfg.GitHub.Token, cfg.GitHub.RateLimit, cfg.Ingest.ForgePacing)

	llmCfg := llmgateway.Config{
		OpenAIKey:      cfg.LLM.OpenAIKey,
		AnthropicKey:   cfg.LLM.AnthropicKey,
		GeminiKey:      cfg.LLM.GeminiKey,
		ChatModel:      cfg.LLM.ChatModel,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		ScoringTemp:    cfg.LLM.ScoringTemp,
		ProseTemp:      cfg.LLM.ProseTemp,
		RequestTimeout: time.Duration(cfg.LLM.RequestTimeoutS) * time.Second,
	}
	llm, err := llmgateway.NewClient(ctx, llmCfg)
	if err != nil {
		return fmt.Errorf("build llm gateway: %w", err)
	}
	logger.Info("llm provider selected", "provider", llm.Provider())

	repo, err := fc.GetRepo(ctx, owner, name)
	if err != nil {
		return fmt.Errorf("resolve repo: %w", err)
	}

	engine := enrichment.NewEngine(fc, llm, cfg.Ingest.FileWorkers, cfg.Ingest.MaxContentBytes)

	result := &types.IngestResult{
		Summary: types.IngestSummary{
			RepoName:  repo.FullName,
			StartedAt: time.Now().Unix(),
		},
	}

	logger.Info("starting ingest", "repo", repo.FullName, "state", state)

	err = fc.ListPullRequests(ctx, owner, name, state, 0, func(summary forge.PRSummary) bool {
		pr, err := engine.EnrichPR(ctx, owner, name, repo.RepoID, summary.Number)
		if err != nil {
			logger.Warn("skipping pr", "number", summary.Number, "error", err)
			result.Summary.PRsSkipped++
			return true
		}
		result.PullRequests = append(result.PullRequests, pr)
		result.Summary.PRsProcessed++
		result.Summary.FilesProcessed += len(pr.Files)
		logger.Info("enriched pr", "number", summary.Number, "risk_band", pr.RiskBand, "files", len(pr.Files))
		return true
	})
	if err != nil {
		return fmt.Errorf("list pull requests: %w", err)
	}

	result.Summary.FinishedAt = time.Now().Unix()

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("write output json: %w", err)
	}

	logger.Info("ingest complete",
		"processed", result.Summary.PRsProcessed,
		"skipped", result.Summary.PRsSkipped,
		"files", result.Summary.FilesProcessed,
		"output", outputPath,
	)
	return nil
}
