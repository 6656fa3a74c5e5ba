package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/phrazzld/gitsong/internal/callcache"
	"github.com/phrazzld/gitsong/internal/domain"
	"github.com/phrazzld/gitsong/internal/gateway"
)

// ServiceName is the service key used for caching and rate limits.
const ServiceName = "github"

const (
	perPage     = 100
	apiVersion  = "2022-11-28"
	acceptMedia = "application/vnd.github+json"
)

// ErrRepositoryNotFound is returned when GitHub answers 404 for a repository.
var ErrRepositoryNotFound = errors.New("repository not found")

// errEmptyRepository marks the 409 GitHub returns for a repository with no commits.
var errEmptyRepository = errors.New("repository is empty")

// NewHTTPClient returns an HTTP client that authenticates with token.
// An empty token yields an unauthenticated client.
func NewHTTPClient(ctx context.Context, token string) *http.Client {
	if token == "" {
		return &http.Client{Timeout: gateway.DefaultTimeout}
	}
	c := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	c.Timeout = gateway.DefaultTimeout
	return c
}

// GatewayConfig returns the gateway configuration for the GitHub API.
func GatewayConfig(baseURL string) gateway.Config {
	return gateway.Config{
		Service: ServiceName,
		BaseURL: baseURL,
		Headers: map[string]string{
			"Accept":               acceptMedia,
			"X-GitHub-Api-Version": apiVersion,
		},
	}
}

// Client lists and reads commits.
type Client struct {
	gw     *gateway.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewClient creates a Client. Commit listings are cached for ttl; commit
// details are immutable and cached without expiry.
func NewClient(gw *gateway.Client, ttl time.Duration, logger *slog.Logger) *Client {
	return &Client{
		gw:     gw,
		ttl:    ttl,
		logger: logger.With("component", "github_client"),
	}
}

type apiCommit struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Name  string    `json:"name"`
			Email string    `json:"email"`
			Date  time.Time `json:"date"`
		} `json:"author"`
		Committer struct {
			Name string    `json:"name"`
			Date time.Time `json:"date"`
		} `json:"committer"`
	} `json:"commit"`
	Author *struct {
		Login string `json:"login"`
	} `json:"author"`
	Stats *struct {
		Additions int `json:"additions"`
		Deletions int `json:"deletions"`
	} `json:"stats"`
	Files []domain.CommitFile `json:"files"`
}

func (a apiCommit) toDomain() domain.Commit {
	c := domain.Commit{
		SHA:         a.SHA,
		Author:      a.Commit.Author.Name,
		AuthorEmail: a.Commit.Author.Email,
		Committer:   a.Commit.Committer.Name,
		Date:        a.Commit.Author.Date.UTC(),
		Message:     a.Commit.Message,
		URL:         a.HTMLURL,
		Files:       a.Files,
	}
	if a.Author != nil && a.Author.Login != "" {
		c.Author = a.Author.Login
	}
	if c.Date.IsZero() {
		c.Date = a.Commit.Committer.Date.UTC()
	}
	if a.Stats != nil {
		c.TotalAdditions = a.Stats.Additions
		c.TotalDeletions = a.Stats.Deletions
	} else {
		for _, f := range a.Files {
			c.TotalAdditions += f.Additions
			c.TotalDeletions += f.Deletions
		}
	}
	return c
}

// ListCommits returns up to limit commits on the default branch authored in
// [since, until], newest first. A limit <= 0 means no limit.
func (c *Client) ListCommits(
	ctx context.Context,
	repo domain.Repository,
	since, until time.Time,
	limit int,
) ([]domain.Commit, error) {
	path := fmt.Sprintf("/repos/%s/%s/commits", repo.Owner, repo.Name)

	var commits []domain.Commit
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("per_page", strconv.Itoa(perPage))
		q.Set("page", strconv.Itoa(page))
		if !since.IsZero() {
			q.Set("since", since.UTC().Format(time.RFC3339))
		}
		if !until.IsZero() {
			q.Set("until", until.UTC().Format(time.RFC3339))
		}

		var batch []apiCommit
		err := c.get(ctx, repo, path, q, c.ttl, &batch)
		if errors.Is(err, errEmptyRepository) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		for _, a := range batch {
			commits = append(commits, a.toDomain())
			if limit > 0 && len(commits) >= limit {
				return commits, nil
			}
		}
		if len(batch) < perPage {
			break
		}
	}

	c.logger.DebugContext(ctx, "listed commits",
		"repository", repo.String(),
		"count", len(commits))
	return commits, nil
}

// LatestCommit returns the most recent commit of the default branch, or nil
// when the repository has no commits. It is never served from cache.
func (c *Client) LatestCommit(ctx context.Context, repo domain.Repository) (*domain.Commit, error) {
	path := fmt.Sprintf("/repos/%s/%s/commits", repo.Owner, repo.Name)
	q := url.Values{"per_page": {"1"}}

	var batch []apiCommit
	err := c.get(ctx, repo, path, q, callcache.NoCache, &batch)
	if errors.Is(err, errEmptyRepository) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return nil, nil
	}
	commit := batch[0].toDomain()
	return &commit, nil
}

// GetCommit returns a commit with its changed files and patches.
func (c *Client) GetCommit(ctx context.Context, repo domain.Repository, sha string) (*domain.Commit, error) {
	if sha == "" {
		return nil, fmt.Errorf("%w: commit sha is empty", domain.ErrValidation)
	}
	path := fmt.Sprintf("/repos/%s/%s/commits/%s", repo.Owner, repo.Name, url.PathEscape(sha))

	var detail apiCommit
	if err := c.get(ctx, repo, path, nil, callcache.NoExpiry, &detail); err != nil {
		return nil, err
	}
	commit := detail.toDomain()
	return &commit, nil
}

func (c *Client) get(
	ctx context.Context,
	repo domain.Repository,
	path string,
	query url.Values,
	ttl time.Duration,
	out any,
) error {
	resp, err := c.gw.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  query,
		TTL:    ttl,
	})
	if err != nil {
		if gateway.IsStatus(err, http.StatusNotFound) {
			return fmt.Errorf("%w: %s: %w", ErrRepositoryNotFound, repo, err)
		}
		if gateway.IsStatus(err, http.StatusConflict) {
			return errEmptyRepository
		}
		return fmt.Errorf("github request %s failed: %w", path, err)
	}
	return gateway.DecodeJSON(resp, out)
}
