package contentrepo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"

	"eventintake/internal/config"
	"eventintake/pkg/metrics"
)

// GitHubRepository talks to the GitHub REST API (or a compatible endpoint
// configured through base_url).
type GitHubRepository struct {
	client        *github.Client
	owner         string
	name          string
	defaultBranch string
}

func NewGitHubRepository(cfg config.RepositoryConfig, httpClient *http.Client) (*GitHubRepository, error) {
	client := github.NewClient(httpClient)
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}
	if cfg.BaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid repository base_url: %w", err)
		}
		client.BaseURL = base
	}

	defaultBranch := cfg.DefaultBranch
	if defaultBranch == "" {
		defaultBranch = "main"
	}

	return &GitHubRepository{
		client:        client,
		owner:         cfg.Owner,
		name:          cfg.Name,
		defaultBranch: defaultBranch,
	}, nil
}

func (r *GitHubRepository) DefaultBranch() string {
	return r.defaultBranch
}

func (r *GitHubRepository) Exists(ctx context.Context, path, ref string) (bool, error) {
	start := time.Now()
	opts := &github.RepositoryContentGetOptions{Ref: ref}
	_, _, resp, err := r.client.Repositories.GetContents(ctx, r.owner, r.name, path, opts)
	if err != nil {
		if isNotFound(resp, err) {
			metrics.ObserveRepositoryRequest("exists", "not_found", time.Since(start))
			return false, nil
		}
		metrics.ObserveRepositoryRequest("exists", "error", time.Since(start))
		return false, fmt.Errorf("get contents %s@%s: %w", path, ref, err)
	}

	metrics.ObserveRepositoryRequest("exists", "found", time.Since(start))
	return true, nil
}

func (r *GitHubRepository) PutFile(ctx context.Context, change FileChange) (string, error) {
	start := time.Now()
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(change.Message),
		Content: change.Content,
		Branch:  github.String(change.Branch),
	}

	res, _, err := r.client.Repositories.CreateFile(ctx, r.owner, r.name, change.Path, opts)
	if err != nil {
		metrics.ObserveRepositoryRequest("put_file", "error", time.Since(start))
		return "", fmt.Errorf("put file %s on %s: %w", change.Path, change.Branch, err)
	}

	metrics.ObserveRepositoryRequest("put_file", "ok", time.Since(start))
	return res.Commit.GetSHA(), nil
}

func (r *GitHubRepository) CreateBranch(ctx context.Context, name, base string) error {
	start := time.Now()
	baseRef, resp, err := r.client.Git.GetRef(ctx, r.owner, r.name, "refs/heads/"+base)
	if err != nil {
		metrics.ObserveRepositoryRequest("create_branch", "error", time.Since(start))
		if isNotFound(resp, err) {
			return fmt.Errorf("base branch %s: %w", base, ErrNotFound)
		}
		return fmt.Errorf("get ref %s: %w", base, err)
	}

	ref := &github.Reference{
		Ref:    github.String("refs/heads/" + name),
		Object: &github.GitObject{SHA: github.String(baseRef.GetObject().GetSHA())},
	}
	if _, _, err := r.client.Git.CreateRef(ctx, r.owner, r.name, ref); err != nil {
		metrics.ObserveRepositoryRequest("create_branch", "error", time.Since(start))
		return fmt.Errorf("create ref %s: %w", name, err)
	}

	metrics.ObserveRepositoryRequest("create_branch", "ok", time.Since(start))
	return nil
}

func (r *GitHubRepository) OpenPullRequest(ctx context.Context, pr PullRequest) (string, error) {
	start := time.Now()
	created, _, err := r.client.PullRequests.Create(ctx, r.owner, r.name, &github.NewPullRequest{
		Title:               github.String(pr.Title),
		Head:                github.String(pr.Head),
		Base:                github.String(pr.Base),
		Body:                github.String(pr.Body),
		MaintainerCanModify: github.Bool(true),
	})
	if err != nil {
		metrics.ObserveRepositoryRequest("open_pull_request", "error", time.Since(start))
		return "", fmt.Errorf("open pull request %s -> %s: %w", pr.Head, pr.Base, err)
	}

	metrics.ObserveRepositoryRequest("open_pull_request", "ok", time.Since(start))
	return created.GetHTMLURL(), nil
}

func isNotFound(resp *github.Response, err error) bool {
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return true
	}
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}
