package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/riskline/riskline/internal/config"
	"github.com/riskline/riskline/internal/enrichment"
	"github.com/riskline/riskline/internal/llmgateway"
	"github.com/riskline/riskline/internal/logging"
	"github.com/riskline/riskline/internal/types"
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
	Use:     "riskline-vector-load PATH",
	Short:   "Embed and upsert an ingested PR JSON file into the vector store",
	Version: Version,
	Args:    cobra.ExactArgs(1),
	RunE:    runLoad,
}

var batchSizeFlag int

func init() {
	rootCmd.Flags().IntVar(&batchSizeFlag, "batch-size", 0, "upsert batch size; not applied: upserts always go in batches of 50")
	rootCmd.SetVersionTemplate(fmt.Sprintf("riskline-vector-load %s\nBuild time: %s\nGit commit: %s\n", Version, BuildTime, GitCommit))
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	baseLogger, err := logging.NewLogger(logging.DefaultConfig(false))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer baseLogger.Close()
	logger := baseLogger.With("command", "riskline-vector-load")

	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	var ingest types.IngestResult
	if err := json.NewDecoder(f).Decode(&ingest); err != nil {
		return fmt.Errorf("decode ingest json: %w", err)
	}

	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

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

	vs, err := vectorstore.NewClient(cfg.VectorStore.URL, cfg.VectorStore.APIKey, cfg.VectorStore.Dimension, 30*time.Second)
	if err != nil {
		return fmt.Errorf("connect vector store: %w", err)
	}
	defer vs.Close()

	if err := vs.EnsureCollection(ctx, cfg.VectorStore.PRCollection); err != nil {
		return fmt.Errorf("ensure pr collection: %w", err)
	}
	if err := vs.EnsureCollection(ctx, cfg.VectorStore.FileCollection); err != nil {
		return fmt.Errorf("ensure file collection: %w", err)
	}

	var prPoints []vectorstore.Point
	var filePoints []vectorstore.Point

	for _, pr := range ingest.PullRequests {
		prKey := fmt.Sprintf("%s|%d", ingest.Summary.RepoName, pr.PRID)
		vec := llm.Embed(ctx, enrichment.ComposePRText(pr))
		prPoints = append(prPoints, vectorstore.Point{
			ID:      prKey,
			Vector:  vec,
			Payload: prPayload(pr),
		})

		// VS-PR for PR X becomes visible at or after every VS-File row for
		// PR X is written, so files upsert first.
		for _, file := range pr.Files {
			fileKey := fmt.Sprintf("%s|%d|%s", ingest.Summary.RepoName, pr.PRID, file.FileID)
			fvec := llm.Embed(ctx, enrichment.ComposeFileText(pr, file))
			filePoints = append(filePoints, vectorstore.Point{
				ID:      fileKey,
				Vector:  fvec,
				Payload: filePayload(pr, file),
			})
		}
	}

	logger.Info("upserting files", "count", len(filePoints))
	if err := vs.Upsert(ctx, cfg.VectorStore.FileCollection, filePoints); err != nil {
		return fmt.Errorf("upsert files: %w", err)
	}

	logger.Info("upserting prs", "count", len(prPoints))
	if err := vs.Upsert(ctx, cfg.VectorStore.PRCollection, prPoints); err != nil {
		return fmt.Errorf("upsert prs: %w", err)
	}

	logger.Info("vector load complete", "prs", len(prPoints), "files", len(filePoints))
	return nil
}

func prPayload(pr *types.PullRequest) map[string]interface{} {
	return map[string]interface{}{
		"repo_id":       pr.RepoID,
		"repo_name":     pr.RepoName,
		"pr_id":         pr.PRID,
		"pr_number":     pr.PRNumber,
		"author_id":     pr.AuthorID,
		"author_name":   pr.AuthorName,
		"created_at":    pr.CreatedAt,
		"merged_at":     pr.MergedAt,
		"is_merged":     pr.IsMerged,
		"is_closed":     pr.IsClosed,
		"status":        pr.Status,
		"title":         pr.Title,
		"body":          pr.Body,
		"pr_summary":    pr.PRSummary,
		"feature":       pr.Feature,
		"additions":     pr.Additions,
		"deletions":     pr.Deletions,
		"changed_files": pr.ChangedFiles,
		"risk_score":    pr.RiskScore,
		"risk_band":     string(pr.RiskBand),
		"high_risk":     pr.HighRisk,
		"labels_full":   encodeLabels(pr.LabelsFull),
		"label_trust":   pr.LabelTrust,
		"risk_reasons":  pr.RiskReasons,
	}
}

// encodeLabels serializes VS-PR's label list into the opaque JSON string the
// qdrant payload stores it as; toQdrantValue has no struct-list encoding.
func encodeLabels(labels []types.Label) string {
	b, err := json.Marshal(labels)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func filePayload(pr *types.PullRequest, f *types.File) map[string]interface{} {
	return map[string]interface{}{
		"repo_id":           f.RepoID,
		"repo_name":         f.RepoName,
		"pr_id":             f.PRID,
		"pr_number":         f.PRNumber,
		"file_id":           f.FileID,
		"author_id":         f.AuthorID,
		"author_name":       f.AuthorName,
		"merged_at":         f.MergedAt,
		"file_status":       string(f.FileStatus),
		"language":          f.Language,
		"is_binary":         f.IsBinary,
		"is_config_file":    f.IsConfigFile,
		"is_documentation":  f.IsDocumentation,
		"is_test_file":      f.IsTestFile,
		"is_source_code":    f.IsSourceCode,
		"additions":         f.Additions,
		"deletions":         f.Deletions,
		"lines_changed":     f.LinesChanged,
		"ai_summary":        f.AISummary,
		"risk_score_file":   f.RiskScoreFile,
		"high_risk_flag":    f.HighRiskFlag,
		"patch":             f.Patch,
		"file_risk_reasons": f.FileRiskReasons,
	}
}
