// Package projector computes the six relational mart tables from enriched
// PR records read back out of the vector store (spec §4.6). It is the only
// writer of derived analytics; the mart itself never aggregates.
package projector

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/riskline/riskline/internal/mart"
	"github.com/riskline/riskline/internal/types"
)

// Source is the subset of the VS-PR read path the projector needs: every PR
// for repoName whose created_at or merged_at falls inside [start, end].
type Source interface {
	ListPRsInWindow(ctx context.Context, repoName string, start, end int64) ([]*types.PullRequest, error)
}

// Projector aggregates PR records into mart rows and writes them via Store.
type Projector struct {
	source Source
	store  mart.Store
	logger *slog.Logger
}

// NewProjector builds a Projector over source (read side) and store (write side).
func NewProjector(source Source, store mart.Store) *Projector {
	return &Projector{source: source, store: store, logger: slog.Default().With("component", "projector")}
}

// windowDays enumerates the fixed set of windows the mart materializes,
// 999 standing in for "all time" (spec §3).
var windowDays = []int{7, 15, 30, 60, 90, 999}

// Run projects repoName's PRs within [dataWindowStart, today] into the
// tables named by tables (TableAll for every table). It deduplicates input
// by PRID first (spec §4.6 "Deduplication"), since upstream re-emission is
// an observed hazard.
func (p *Projector) Run(ctx context.Context, repoName string, dataWindowStart, today time.Time, tables map[mart.UpdateTable]bool) error {
	prs, err := p.source.ListPRsInWindow(ctx, repoName, dataWindowStart.Unix(), today.Unix())
	if err != nil {
		return err
	}
	prs = dedupeByPRID(prs)

	wantAll := tables[mart.TableAll] || len(tables) == 0

	if wantAll || tables[mart.TableAuthors] {
		if err := p.projectAuthors(ctx, prs); err != nil {
			p.logger.Warn("project authors failed", "error", err)
		}
	}

	dailyByAuthor := map[string][]mart.DailyMetric{}
	if wantAll || tables[mart.TableAuthorMetricsDaily] {
		rows := p.projectDaily(repoName, prs, dataWindowStart, today)
		if err := p.store.UpsertDailyMetrics(ctx, rows); err != nil {
			p.logger.Warn("upsert daily metrics failed", "error", err)
		}
		for _, r := range rows {
			dailyByAuthor[r.Username] = append(dailyByAuthor[r.Username], r)
		}
	}

	if wantAll || tables[mart.TableAuthorMetricsWindow] {
		rows := p.projectWindows(repoName, prs, today)
		if err := p.store.UpsertWindowMetrics(ctx, rows); err != nil {
			p.logger.Warn("upsert window metrics failed", "error", err)
		}
	}

	if wantAll || tables[mart.TableAuthorFileOwnership] {
		rows := p.projectOwnership(repoName, prs, today)
		if err := p.store.UpsertFileOwnership(ctx, rows); err != nil {
			p.logger.Warn("upsert file ownership failed", "error", err)
		}
	}

	if wantAll || tables[mart.TableAuthorPRsWindow] {
		rows := p.projectAuthorPRs(repoName, prs, today)
		if err := p.store.UpsertAuthorPRs(ctx, rows); err != nil {
			p.logger.Warn("upsert author prs failed", "error", err)
		}
	}

	if wantAll || tables[mart.TableRepoPRs] {
		rows := p.projectRepoPRs(repoName, prs)
		if err := p.store.UpsertRepoPRs(ctx, rows); err != nil {
			p.logger.Warn("upsert repo prs failed", "error", err)
		}
	}

	return nil
}

func dedupeByPRID(prs []*types.PullRequest) []*types.PullRequest {
	seen := make(map[int64]bool, len(prs))
	out := make([]*types.PullRequest, 0, len(prs))
	for _, pr := range prs {
		if seen[pr.PRID] {
			continue
		}
		seen[pr.PRID] = true
		out = append(out, pr)
	}
	return out
}

func dayOf(epoch int64) time.Time {
	return time.Unix(epoch, 0).UTC().Truncate(24 * time.Hour)
}

func (p *Projector) projectAuthors(ctx context.Context, prs []*types.PullRequest) error {
	seen := make(map[string]bool)
	var rows []mart.Author
	for _, pr := range prs {
		if pr.AuthorID == "" || seen[pr.AuthorID] {
			continue
		}
		seen[pr.AuthorID] = true
		rows = append(rows, mart.Author{Username: pr.AuthorID, DisplayName: pr.AuthorName})
	}
	return p.store.UpsertAuthors(ctx, rows)
}

// projectDaily pre-populates every (author, day) pair in range with a zero
// row before folding in observed activity, so downstream charts plot a
// continuous series (spec §4.6 "must pre-populate zero rows").
func (p *Projector) projectDaily(repoName string, prs []*types.PullRequest, start, end time.Time) []mart.DailyMetric {
	authors := make(map[string]bool)
	for _, pr := range prs {
		if pr.AuthorID != "" {
			authors[pr.AuthorID] = true
		}
	}

	index := make(map[string]int)
	var rows []mart.DailyMetric
	for author := range authors {
		for d := dayOf(start.Unix()); !d.After(dayOf(end.Unix())); d = d.AddDate(0, 0, 1) {
			row := mart.DailyMetric{Username: author, RepoName: repoName, Day: d}
			rows = append(rows, row)
			index[author+"|"+d.Format("2006-01-02")] = len(rows) - 1
		}
	}

	for _, pr := range prs {
		if pr.AuthorID == "" {
			continue
		}
		submittedDay := dayOf(pr.CreatedAt)
		if i, ok := index[pr.AuthorID+"|"+submittedDay.Format("2006-01-02")]; ok {
			row := &rows[i]
			row.PRsSubmitted++
			row.LinesChanged += pr.Additions + pr.Deletions
			if pr.HighRisk {
				row.HighRiskPRs++
			}
		}
		if pr.IsMerged && pr.MergedAt > 0 {
			mergedDay := dayOf(pr.MergedAt)
			if i, ok := index[pr.AuthorID+"|"+mergedDay.Format("2006-01-02")]; ok {
				row := &rows[i]
				row.PRsMerged++
				if pr.Feature != "" {
					row.FeaturesMerged++
				}
			}
		}
	}

	return rows
}

// projectWindows aggregates each author's PR records directly (not the daily
// rows) over each fixed window ending today (spec §3 window_days enum).
func (p *Projector) projectWindows(repoName string, prs []*types.PullRequest, today time.Time) []mart.WindowMetric {
	byAuthor := make(map[string][]*types.PullRequest)
	for _, pr := range prs {
		if pr.AuthorID != "" {
			byAuthor[pr.AuthorID] = append(byAuthor[pr.AuthorID], pr)
		}
	}

	end := dayOf(today.Unix())
	var rows []mart.WindowMetric
	for author, authorPRs := range byAuthor {
		for _, wd := range windowDays {
			var start time.Time
			if wd == 999 {
				start = time.Unix(0, 0).UTC()
			} else {
				start = end.AddDate(0, 0, -(wd - 1))
			}

			var submitted, merged, highRisk, lowRiskOwned, lines int
			for _, pr := range authorPRs {
				createdDay := dayOf(pr.CreatedAt)
				if !createdDay.Before(start) && !createdDay.After(end) {
					submitted++
					lines += pr.Additions + pr.Deletions
					if pr.HighRisk {
						highRisk++
					}
				}
				if pr.IsMerged && pr.MergedAt > 0 {
					mergedDay := dayOf(pr.MergedAt)
					if !mergedDay.Before(start) && !mergedDay.After(end) {
						merged++
						if pr.RiskBand == types.RiskBandLow {
							lowRiskOwned++
						}
					}
				}
			}

			rate := 0.0
			if merged > 0 {
				rate = 100 * float64(highRisk) / float64(merged)
			}

			rows = append(rows, mart.WindowMetric{
				Username:            author,
				RepoName:            repoName,
				WindowDays:          wd,
				StartDate:           start,
				EndDate:             end,
				PRsSubmitted:        submitted,
				PRsMerged:           merged,
				HighRiskPRs:         highRisk,
				HighRiskRate:        rate,
				LinesChanged:        lines,
				OwnershipLowRiskPRs: lowRiskOwned,
			})
		}
	}
	return rows
}

// projectOwnership accumulates per-author lines touched per file, over
// merged PRs whose merged_at falls within each window (spec §4.6).
func (p *Projector) projectOwnership(repoName string, prs []*types.PullRequest, today time.Time) []mart.FileOwnership {
	end := dayOf(today.Unix())

	type key struct {
		file   string
		author string
	}

	var rows []mart.FileOwnership
	for _, wd := range windowDays {
		var start time.Time
		if wd == 999 {
			start = time.Unix(0, 0).UTC()
		} else {
			start = end.AddDate(0, 0, -(wd - 1))
		}

		authorLines := map[key]int{}
		totalLines := map[string]int{}
		lastTouched := map[string]int64{}

		for _, pr := range prs {
			if !pr.IsMerged || pr.MergedAt == 0 {
				continue
			}
			mergedDay := dayOf(pr.MergedAt)
			if mergedDay.Before(start) || mergedDay.After(end) {
				continue
			}
			for _, f := range pr.Files {
				lc := f.LinesChanged
				authorLines[key{f.FileID, pr.AuthorID}] += lc
				totalLines[f.FileID] += lc
				if pr.MergedAt > lastTouched[f.FileID] {
					lastTouched[f.FileID] = pr.MergedAt
				}
			}
		}

		for k, lines := range authorLines {
			total := totalLines[k.file]
			pct := 0.0
			if total > 0 {
				pct = 100 * float64(lines) / float64(total)
			}
			rows = append(rows, mart.FileOwnership{
				Username:     k.author,
				RepoName:     repoName,
				WindowDays:   wd,
				StartDate:    start,
				EndDate:      end,
				FileID:       k.file,
				FilePath:     k.file,
				OwnershipPct: pct,
				AuthorLines:  lines,
				TotalLines:   total,
				LastTouched:  lastTouched[k.file],
			})
		}
	}
	return rows
}

func (p *Projector) projectAuthorPRs(repoName string, prs []*types.PullRequest, today time.Time) []mart.AuthorPR {
	end := dayOf(today.Unix())
	var rows []mart.AuthorPR
	for _, wd := range windowDays {
		var start time.Time
		if wd == 999 {
			start = time.Unix(0, 0).UTC()
		} else {
			start = end.AddDate(0, 0, -(wd - 1))
		}

		for _, pr := range prs {
			if pr.AuthorID == "" || !pr.IsMerged || pr.MergedAt == 0 {
				continue
			}
			mergedDay := dayOf(pr.MergedAt)
			if mergedDay.Before(start) || mergedDay.After(end) {
				continue
			}
			rows = append(rows, mart.AuthorPR{
				Username:          pr.AuthorID,
				RepoName:          repoName,
				WindowDays:        wd,
				StartDate:         start,
				EndDate:           end,
				PRNumber:          pr.PRNumber,
				Title:             pr.Title,
				PRSummary:         pr.PRSummary,
				MergedAt:          pr.MergedAt,
				RiskScore:         pr.RiskScore,
				HighRisk:          pr.HighRisk,
				FeatureRule:       pr.Feature,
				FeatureConfidence: featureConfidence(pr),
			})
		}
	}
	return rows
}

func featureConfidence(pr *types.PullRequest) float64 {
	if pr.Feature != "" {
		return 1.0
	}
	return 0.0
}

// projectRepoPRs builds one repo_prs row per PR regardless of merge status.
func (p *Projector) projectRepoPRs(repoName string, prs []*types.PullRequest) []mart.RepoPR {
	rows := make([]mart.RepoPR, 0, len(prs))
	for _, pr := range prs {
		rows = append(rows, mart.RepoPR{
			RepoName:          repoName,
			PRNumber:          pr.PRNumber,
			Title:             pr.Title,
			PRSummary:         pr.PRSummary,
			Author:            pr.AuthorID,
			CreatedAt:         pr.CreatedAt,
			MergedAt:          pr.MergedAt,
			IsMerged:          pr.IsMerged,
			Additions:         pr.Additions,
			Deletions:         pr.Deletions,
			ChangedFiles:      pr.ChangedFiles,
			LabelsFull:        encodeLabels(pr.LabelsFull),
			FeatureRule:       pr.Feature,
			FeatureConfidence: featureConfidence(pr),
			RiskScore:         pr.RiskScore,
			HighRisk:          pr.HighRisk,
			RiskReasons:       encodeStrings(pr.RiskReasons),
			TopRiskyFiles:     encodeRiskyFiles(topRiskyFiles(pr.Files)),
		})
	}
	return rows
}

// topRiskyFiles ranks files by (risk_score_file, lines_changed) descending,
// keeping only positive scores, capped at 5 (spec §4.6 "Shipped PRs").
func topRiskyFiles(files []*types.File) []mart.RiskyFile {
	candidates := make([]*types.File, 0, len(files))
	for _, f := range files {
		if f.RiskScoreFile > 0 {
			candidates = append(candidates, f)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].RiskScoreFile != candidates[j].RiskScoreFile {
			return candidates[i].RiskScoreFile > candidates[j].RiskScoreFile
		}
		return candidates[i].LinesChanged > candidates[j].LinesChanged
	})
	if len(candidates) > 5 {
		candidates = candidates[:5]
	}

	out := make([]mart.RiskyFile, len(candidates))
	for i, f := range candidates {
		out[i] = mart.RiskyFile{FilePath: f.FileID, RiskScoreFile: f.RiskScoreFile, LinesChanged: f.LinesChanged}
	}
	return out
}
