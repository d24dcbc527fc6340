package enrichment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/riskline/riskline/internal/errors"
	"github.com/riskline/riskline/internal/forge"
	"github.com/riskline/riskline/internal/llmgateway"
	"github.com/riskline/riskline/internal/types"
)

// Forge is the subset of internal/forge.Client the engine depends on.
type Forge interface {
	GetPullRequest(ctx context.Context, owner, name string, number int) (*forge.PRDetail, error)
	ListFiles(ctx context.Context, owner, name string, number int) ([]forge.FileChange, error)
	GetContents(ctx context.Context, owner, name, path, ref string) (*forge.Contents, error)
	ListIssueComments(ctx context.Context, owner, name string, number int) ([]forge.IssueComment, error)
	ListCollaboratorLogins(ctx context.Context, owner, name string) ([]string, error)
}

// LLM is the subset of internal/llmgateway.Client the engine depends on.
type LLM interface {
	Embed(ctx context.Context, text string) []float32
	Chat(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error)
	ChatJSON(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// Engine orchestrates per-PR enrichment (spec §4.3).
type Engine struct {
	forge        Forge
	llm          LLM
	fileWorkers  int
	maxFileBytes int64
	logger       *slog.Logger

	// collabCache holds one repo's collaborator logins, keyed by
	// "owner/name", populated lazily. EnrichPR is always called
	// sequentially per repo (cmd/riskline-ingest drives it from a single
	// ListPullRequests callback), so no locking is needed.
	collabCache map[string][]string
}

// NewEngine builds an Engine bounded to fileWorkers concurrent per-file LLM
// calls (recommended W=4, spec §5).
func NewEngine(f Forge, l LLM, fileWorkers int, maxFileBytes int64) *Engine {
	if fileWorkers <= 0 {
		fileWorkers = 4
	}
	return &Engine{
		forge:        f,
		llm:          l,
		fileWorkers:  fileWorkers,
		maxFileBytes: maxFileBytes,
		logger:       slog.Default().With("component", "enrichment"),
		collabCache:  make(map[string][]string),
	}
}

// collaboratorsFor returns owner/name's collaborator logins, fetching and
// caching them on first use. A fetch failure degrades to an empty list
// rather than failing the PR: collaborator trust is additive polish, not a
// hard dependency (SPEC_FULL.md §4).
func (e *Engine) collaboratorsFor(ctx context.Context, owner, name string) []string {
	key := owner + "/" + name
	if collabs, ok := e.collabCache[key]; ok {
		return collabs
	}
	collabs, err := e.forge.ListCollaboratorLogins(ctx, owner, name)
	if err != nil {
		e.logger.Warn("list collaborators failed, label trust will be owner/bot-only", "repo", key, "error", err)
		collabs = nil
	}
	e.collabCache[key] = collabs
	return collabs
}

// EnrichPR fetches detail/files for number and produces a fully enriched
// PullRequest record, or a structured IngestSkip error if the PR itself
// cannot be fetched (spec §4.3 "failure policy").
func (e *Engine) EnrichPR(ctx context.Context, owner, name, repoID string, number int) (*types.PullRequest, error) {
	detail, err := e.forge.GetPullRequest(ctx, owner, name, number)
	if err != nil {
		return nil, apperrors.IngestSkipError(err, fmt.Sprintf("fetch pr #%d detail", number))
	}

	changes, err := e.forge.ListFiles(ctx, owner, name, number)
	if err != nil {
		return nil, apperrors.IngestSkipError(err, fmt.Sprintf("fetch pr #%d files", number))
	}

	isMerged := detail.IsMerged
	mergedAt := detail.MergedAt.Unix()
	backfilled := false
	if isMerged && detail.MergedAt.IsZero() {
		mergedAt = detail.CreatedAt.Unix()
		backfilled = true
	}
	if !isMerged {
		mergedAt = 0
	}

	status := detail.State
	if detail.ClosedAt.Unix() > 0 && !isMerged {
		status = "closed"
	}

	pr := &types.PullRequest{
		RepoID:             repoID,
		RepoName:           fmt.Sprintf("%s/%s", owner, name),
		PRID:               detail.ID,
		PRNumber:           number,
		AuthorID:           detail.Author,
		AuthorName:         detail.Author,
		CreatedAt:          detail.CreatedAt.Unix(),
		MergedAt:           mergedAt,
		IsMerged:           isMerged,
		IsClosed:           detail.State == "closed",
		Status:             status,
		Title:              detail.Title,
		Body:               truncate(detail.Body, 8000),
		Additions:          detail.Additions,
		Deletions:          detail.Deletions,
		ChangedFiles:       len(changes),
		MergedAtBackfilled: backfilled,
	}
	for _, l := range detail.Labels {
		pr.LabelsFull = append(pr.LabelsFull, types.Label{Name: l.Name, Color: l.Color})
	}

	files := e.enrichFiles(ctx, owner, name, pr, changes, isMerged)
	pr.Files = files

	allDocs := true
	fileSummaries := make([]string, 0, len(files))
	riskInputs := make([]FileRiskInput, 0, len(files))
	for _, f := range files {
		if !f.IsDocumentation {
			allDocs = false
		}
		if f.AISummary != "" {
			fileSummaries = append(fileSummaries, f.AISummary)
		}
		riskInputs = append(riskInputs, FileRiskInput{
			Score:        f.RiskScoreFile,
			LinesChanged: f.LinesChanged,
			IsTestFile:   f.IsTestFile,
			Additions:    f.Additions,
			Deletions:    f.Deletions,
			Reasons:      f.FileRiskReasons,
		})
	}

	summaryUser := llmgateway.PRSummaryUserPrompt(pr.Title, pr.Body, fileSummaries)
	if summary, err := e.llm.Chat(ctx, llmgateway.PRSummarySystemPrompt, summaryUser, 300, 0.3); err == nil {
		pr.PRSummary = summary
	} else {
		e.logger.Warn("pr summary failed", "pr", number, "error", err)
	}

	agg := AggregatePRRisk(riskInputs)
	pr.RiskScore = agg.Score
	pr.RiskBand = agg.Band
	pr.HighRisk = agg.High
	pr.RiskReasons = agg.Reasons

	labelNames := make([]string, len(pr.LabelsFull))
	for i, l := range pr.LabelsFull {
		labelNames[i] = l.Name
	}

	if len(pr.LabelsFull) > 0 {
		pr.LabelTrust = e.computeLabelTrust(ctx, owner, name, number)
	}

	pr.Feature = ClassifyFeature(pr.Title, labelNames, isMerged, allDocs && len(files) > 0)

	return pr, nil
}

// computeLabelTrust fetches the PR's comment thread and folds each
// commenter's role into a confidence score for LabelsFull (SPEC_FULL.md §4
// "Confidence-bearing comment-based label trust"). A comment-fetch failure
// yields zero trust rather than skipping the PR: the label rule in §4.3
// still applies regardless of this score.
func (e *Engine) computeLabelTrust(ctx context.Context, owner, name string, number int) float64 {
	comments, err := e.forge.ListIssueComments(ctx, owner, name, number)
	if err != nil {
		e.logger.Warn("list pr comments failed, label trust defaults to zero", "pr", number, "error", err)
		return 0
	}
	if len(comments) == 0 {
		return 0
	}

	identities := make([]CommenterIdentity, len(comments))
	for i, c := range comments {
		identities[i] = CommenterIdentity{Author: c.Author, IsBot: c.IsBot}
	}
	collaborators := e.collaboratorsFor(ctx, owner, name)
	return LabelTrust(identities, owner, collaborators)
}

func (e *Engine) enrichFiles(ctx context.Context, owner, name string, pr *types.PullRequest, changes []forge.FileChange, isMerged bool) []*types.File {
	files := make([]*types.File, len(changes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.fileWorkers)

	for i, ch := range changes {
		i, ch := i, ch
		g.Go(func() error {
			files[i] = e.enrichFile(gctx, owner, name, pr, ch, isMerged)
			return nil
		})
	}
	g.Wait()

	return files
}

func (e *Engine) enrichFile(ctx context.Context, owner, name string, pr *types.PullRequest, ch forge.FileChange, isMerged bool) *types.File {
	class := ClassifyFile(ch.Path)

	f := &types.File{
		RepoID:          pr.RepoID,
		RepoName:        pr.RepoName,
		PRID:            pr.PRID,
		PRNumber:        pr.PRNumber,
		FileID:          ch.Path,
		AuthorID:        pr.AuthorID,
		AuthorName:      pr.AuthorName,
		MergedAt:        pr.MergedAt,
		FileStatus:      types.FileStatus(ch.Status),
		Language:        class.Language,
		IsBinary:        class.IsBinary,
		IsConfigFile:    class.IsConfigFile,
		IsDocumentation: class.IsDocumentation,
		IsTestFile:      class.IsTestFile,
		IsSourceCode:    class.IsSourceCode,
		Additions:       ch.Additions,
		Deletions:       ch.Deletions,
		LinesChanged:    ch.Additions + ch.Deletions,
		Patch:           truncate(ch.Patch, 32000),
	}

	if isMerged && !class.IsBinary {
		e.fetchContent(ctx, owner, name, f, ch)
	}

	sizeBytes := int64(len(f.PostContent()))
	if sizeBytes == 0 {
		sizeBytes = int64(len(f.PreContent()))
	}
	problematic := false
	for ext := range problematicExtensions {
		if strings.HasSuffix(strings.ToLower(f.FileID), ext) {
			problematic = true
		}
	}
	if problematic || SkipLLMScoring(class, sizeBytes, e.maxFileBytes, f.Patch) {
		f.RiskScoreFile = 0
		return f
	}

	summaryUser := llmgateway.FileSummaryUserPrompt(f.FileID, f.Patch)
	if summary, err := e.llm.Chat(ctx, llmgateway.FileSummarySystemPrompt, summaryUser, 200, 0.3); err == nil {
		f.AISummary = summary
	} else {
		f.ContentError = err.Error()
	}

	riskUser := llmgateway.RiskScoringUserPrompt(f.FileID, pr.Title, f.Patch, f.PostContent())
	raw, err := e.llm.ChatJSON(ctx, llmgateway.RiskScoringSystemPrompt, riskUser, 400)
	if err != nil {
		f.ContentError = err.Error()
		f.RiskScoreFile = 0
		f.FileRiskReasons = []string{"risk assessment unavailable: " + err.Error()}
		return f
	}

	assessment := llmgateway.ParseRiskAssessment(f.FileID, raw)
	f.RiskScoreFile = assessment.RiskScoreFile
	f.HighRiskFlag = assessment.HighRiskFlag
	f.FileRiskReasons = assessment.Reasons

	return f
}

func (e *Engine) fetchContent(ctx context.Context, owner, name string, f *types.File, ch forge.FileChange) {
	switch f.FileStatus {
	case types.FileAdded:
		if c, err := e.forge.GetContents(ctx, owner, name, ch.Path, "HEAD"); err == nil {
			f.SetPostContent(truncate(c.Content, 32000))
		}
	case types.FileRemoved:
		if c, err := e.forge.GetContents(ctx, owner, name, ch.Path, "HEAD~1"); err == nil {
			f.SetPreContent(truncate(c.Content, 32000))
		}
	default: // modified, renamed: fetch both for the prompts
		if c, err := e.forge.GetContents(ctx, owner, name, ch.Path, "HEAD~1"); err == nil {
			f.SetPreContent(truncate(c.Content, 32000))
		}
		if c, err := e.forge.GetContents(ctx, owner, name, ch.Path, "HEAD"); err == nil {
			f.SetPostContent(truncate(c.Content, 32000))
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ComposePRText builds the text embedded into VS-PR's vector field.
func ComposePRText(pr *types.PullRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PR #%d: %s\n", pr.PRNumber, pr.Title)
	bodyHead := pr.Body
	if len(bodyHead) > 500 {
		bodyHead = bodyHead[:500]
	}
	b.WriteString(bodyHead)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Summary: %s\n", pr.PRSummary)
	b.WriteString("Files: ")
	max := len(pr.Files)
	if max > 10 {
		max = 10
	}
	for i := 0; i < max; i++ {
		b.WriteString(pr.Files[i].FileID)
		b.WriteString(" ")
	}
	return truncate(b.String(), 8000)
}

// ComposeFileText builds the text embedded into VS-File's vector field.
func ComposeFileText(pr *types.PullRequest, f *types.File) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PATH: %s\n", f.FileID)
	fmt.Fprintf(&b, "PR #%d — %s\n", pr.PRNumber, pr.Title)
	fmt.Fprintf(&b, "FILE SUMMARY: %s\n", f.AISummary)
	b.WriteString("DIFF (trimmed): ")
	b.WriteString(truncate(f.Patch, 2000))
	return truncate(b.String(), 8000)
}
