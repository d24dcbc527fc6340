// Package forge wraps the remote code-forge REST API (GitHub) behind the
// narrow contract the ingestion pipeline needs: paginated PR listing, PR
// detail, file lists, and raw content fetches, all under rate-limit
// discipline. The client is stateless beyond its authentication token.
package forge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/time/rate"

	apperrors "github.com/riskline/riskline/internal/errors"
)

// Client talks to the forge API under a per-process rate budget.
type Client struct {
	gh      *github.Client
	limiter *rate.Limiter
	pacing  time.Duration
}

// NewClient builds a forge client authenticated with token, allowing
// rateLimit requests/sec and sleeping pacing between requests on top of
// that (spec: "between requests, sleep >= 100ms").
func NewClient(token string, rateLimit int, pacing time.Duration) *Client {
	if rateLimit <= 0 {
		rateLimit = 10
	}
	if pacing <= 0 {
		pacing = 100 * time.Millisecond
	}
	return &Client{
		gh:      github.NewClient(nil).WithAuthToken(token),
		limiter: rate.NewLimiter(rate.Limit(rateLimit), 1),
		pacing:  pacing,
	}
}

func (c *Client) throttle(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return apperrors.TransientRemoteError(err, "forge rate limiter wait failed")
	}
	time.Sleep(c.pacing)
	return nil
}

// Repo is the minimal repository identity the rest of the pipeline needs.
type Repo struct {
	RepoID   string
	FullName string
	Owner    string
	Name     string
}

// GetRepo resolves owner/name into {repo_id, full_name}.
func (c *Client) GetRepo(ctx context.Context, owner, name string) (*Repo, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}
	repo, _, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, apperrors.TransientRemoteError(err, fmt.Sprintf("get repo %s/%s", owner, name))
	}
	return &Repo{
		RepoID:   fmt.Sprintf("%d", repo.GetID()),
		FullName: repo.GetFullName(),
		Owner:    owner,
		Name:     name,
	}, nil
}

// PRSummary is one page item from ListPullRequests.
type PRSummary struct {
	Number    int
	Title     string
	State     string
	Author    string
	CreatedAt time.Time
	MergedAt  time.Time
	ClosedAt  time.Time
}

// ListPullRequests lazily paginates PRs ordered by created descending, 100
// per page, invoking yield for each summary. It stops when a page comes
// back short of a full page or max items have been yielded (max <= 0 means
// unbounded). yield returning false stops iteration early.
func (c *Client) ListPullRequests(ctx context.Context, owner, name, state string, max int, yield func(PRSummary) bool) error {
	opts := &github.PullRequestListOptions{
		State:     state,
		Sort:      "created",
		Direction: "desc",
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	}

	yielded := 0
	for {
		if err := c.throttle(ctx); err != nil {
			return err
		}

		prs, resp, err := c.gh.PullRequests.List(ctx, owner, name, opts)
		if err != nil {
			return apperrors.TransientRemoteError(err, "list pull requests")
		}

		for _, pr := range prs {
			summary := PRSummary{
				Number:    pr.GetNumber(),
				Title:     pr.GetTitle(),
				State:     pr.GetState(),
				Author:    pr.GetUser().GetLogin(),
				CreatedAt: pr.GetCreatedAt().Time,
			}
			if pr.MergedAt != nil {
				summary.MergedAt = pr.MergedAt.Time
			}
			if pr.ClosedAt != nil {
				summary.ClosedAt = pr.ClosedAt.Time
			}

			if !yield(summary) {
				return nil
			}
			yielded++
			if max > 0 && yielded >= max {
				return nil
			}
		}

		if len(prs) < opts.PerPage || resp.NextPage == 0 {
			return nil
		}
		opts.Page = resp.NextPage
	}
}

// PRDetail is the full PR record including counts and mergeability.
type PRDetail struct {
	ID           int64
	Number       int
	Title        string
	Body         string
	State        string
	Author       string
	CreatedAt    time.Time
	MergedAt     time.Time
	ClosedAt     time.Time
	IsMerged     bool
	Comments     int
	Commits      int
	Additions    int
	Deletions    int
	ChangedFiles int
	Mergeable    bool
	Labels       []Label
}

// Label is a forge-reported PR label.
type Label struct {
	Name  string
	Color string
}

// GetPullRequest fetches full PR detail including counts and mergeability.
func (c *Client) GetPullRequest(ctx context.Context, owner, name string, number int) (*PRDetail, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}
	pr, _, err := c.gh.PullRequests.Get(ctx, owner, name, number)
	if err != nil {
		return nil, apperrors.TransientRemoteError(err, fmt.Sprintf("get pull request #%d", number))
	}

	detail := &PRDetail{
		ID:           pr.GetID(),
		Number:       pr.GetNumber(),
		Title:        pr.GetTitle(),
		Body:         pr.GetBody(),
		State:        pr.GetState(),
		Author:       pr.GetUser().GetLogin(),
		CreatedAt:    pr.GetCreatedAt().Time,
		IsMerged:     pr.GetMerged(),
		Comments:     pr.GetComments(),
		Commits:      pr.GetCommits(),
		Additions:    pr.GetAdditions(),
		Deletions:    pr.GetDeletions(),
		ChangedFiles: pr.GetChangedFiles(),
		Mergeable:    pr.GetMergeable(),
	}
	if pr.MergedAt != nil {
		detail.MergedAt = pr.MergedAt.Time
	}
	if pr.ClosedAt != nil {
		detail.ClosedAt = pr.ClosedAt.Time
	}
	for _, l := range pr.Labels {
		detail.Labels = append(detail.Labels, Label{Name: l.GetName(), Color: l.GetColor()})
	}

	return detail, nil
}

// FileChange is one file entry from ListFiles.
type FileChange struct {
	Path       string
	Status     string
	Additions  int
	Deletions  int
	Changes    int
	Patch      string
	PrevPath   string
}

const maxFilesPerPR = 100

// ListFiles returns the changed files for a PR, capped at 100 entries;
// this loop stops at the cap and drops the files beyond it without logging
// a warning.
func (c *Client) ListFiles(ctx context.Context, owner, name string, number int) ([]FileChange, error) {
	opts := &github.ListOptions{PerPage: 100}

	var files []FileChange
	for {
		if err := c.throttle(ctx); err != nil {
			return nil, err
		}
		page, resp, err := c.gh.PullRequests.ListFiles(ctx, owner, name, number, opts)
		if err != nil {
			return nil, apperrors.TransientRemoteError(err, fmt.Sprintf("list files for pr #%d", number))
		}

		for _, f := range page {
			files = append(files, FileChange{
				Path:      f.GetFilename(),
				Status:    f.GetStatus(),
				Additions: f.GetAdditions(),
				Deletions: f.GetDeletions(),
				Changes:   f.GetChanges(),
				Patch:     f.GetPatch(),
				PrevPath:  f.GetPreviousFilename(),
			})
			if len(files) >= maxFilesPerPR {
				return files, nil
			}
		}

		if resp.NextPage == 0 {
			return files, nil
		}
		opts.Page = resp.NextPage
	}
}

// ErrNotFound is returned by GetContents when the path does not exist at ref.
var ErrNotFound = apperrors.New(apperrors.ErrorTypeExternal, apperrors.SeverityLow, "content not found")

// Contents is the raw file body at a ref.
type Contents struct {
	Content  string
	Encoding string
	SHA      string
	Size     int
}

// binaryExtensions are never fetched for content (spec §4.1).
var binaryExtensions = map[string]bool{
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".bin": true,
	".dat": true, ".zip": true, ".tar": true, ".gz": true, ".rar": true,
	".7z": true, ".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".ico": true, ".pdf": true, ".doc": true, ".docx": true,
	".xls": true, ".xlsx": true, ".ppt": true, ".pptx": true, ".mp3": true,
	".mp4": true, ".avi": true, ".mov": true,
}

// IsBinaryPath reports whether path is classified binary by extension.
func IsBinaryPath(path string) bool {
	ext := strings.ToLower(extOf(path))
	return binaryExtensions[ext]
}

func extOf(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return ""
	}
	return path[idx:]
}

// GetContents fetches the raw body of path at ref. Binary paths are
// rejected by the caller before this is invoked; GetContents itself only
// distinguishes not-found from other failures.
func (c *Client) GetContents(ctx context.Context, owner, name, path, ref string) (*Contents, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	opts := &github.RepositoryContentGetOptions{Ref: ref}
	file, _, resp, err := c.gh.Repositories.GetContents(ctx, owner, name, path, opts)
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return nil, ErrNotFound
		}
		return nil, apperrors.TransientRemoteError(err, fmt.Sprintf("get contents %s@%s", path, ref))
	}
	if file == nil {
		return nil, ErrNotFound
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, apperrors.ParseError(err, fmt.Sprintf("decode contents %s@%s", path, ref))
	}

	return &Contents{
		Content:  content,
		Encoding: file.GetEncoding(),
		SHA:      file.GetSHA(),
		Size:     file.GetSize(),
	}, nil
}

// IssueComment is one comment on a PR's conversation, the unit the
// commenter-role classifier weighs label trust against.
type IssueComment struct {
	Author string
	IsBot  bool
}

// ListIssueComments returns every comment on PR/issue number. GitHub treats
// a PR's conversation tab as an issue thread, so this rides Issues.ListComments
// rather than a pull-request-specific endpoint.
func (c *Client) ListIssueComments(ctx context.Context, owner, name string, number int) ([]IssueComment, error) {
	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}

	var out []IssueComment
	for {
		if err := c.throttle(ctx); err != nil {
			return nil, err
		}
		comments, resp, err := c.gh.Issues.ListComments(ctx, owner, name, number, opts)
		if err != nil {
			return nil, apperrors.TransientRemoteError(err, fmt.Sprintf("list comments for #%d", number))
		}
		for _, cm := range comments {
			out = append(out, IssueComment{
				Author: cm.GetUser().GetLogin(),
				IsBot:  cm.GetUser().GetType() == "Bot",
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// ListCollaboratorLogins returns every user with push access to the repo, the
// "collaborator" tier the commenter-role classifier distinguishes from a
// bare "contributor".
func (c *Client) ListCollaboratorLogins(ctx context.Context, owner, name string) ([]string, error) {
	opts := &github.ListCollaboratorsOptions{ListOptions: github.ListOptions{PerPage: 100}}

	var out []string
	for {
		if err := c.throttle(ctx); err != nil {
			return nil, err
		}
		collabs, resp, err := c.gh.Repositories.ListCollaborators(ctx, owner, name, opts)
		if err != nil {
			return nil, apperrors.TransientRemoteError(err, fmt.Sprintf("list collaborators for %s/%s", owner, name))
		}
		for _, u := range collabs {
			out = append(out, u.GetLogin())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}
