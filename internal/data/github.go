package data

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v68/github"

	"github.com/DevRickLin/feishu-realname-sync/internal/biz/domain"
	"github.com/DevRickLin/feishu-realname-sync/internal/biz/repo"
)

// GitHubConfig locates the names file in a GitHub repository
type GitHubConfig struct {
	Token   string
	Repo    string // owner/name
	Path    string // file path inside the repository
	Branch  string
	BaseURL string // API root, defaults to https://api.github.com
}

// GitHubSnapshotRepo keeps the snapshot in a file via the GitHub contents
// API. The version token is the file's blob SHA.
type GitHubSnapshotRepo struct {
	client *github.Client
	owner  string
	name   string
	path   string
	branch string
}

// NewGitHubSnapshotRepo creates a GitHub-backed snapshot repository
func NewGitHubSnapshotRepo(cfg GitHubConfig) (*GitHubSnapshotRepo, error) {
	owner, name, ok := strings.Cut(cfg.Repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("github repository %q is not owner/name", cfg.Repo)
	}
	path := strings.Trim(cfg.Path, "/")
	if path == "" {
		return nil, fmt.Errorf("github backend needs a file path")
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}

	client := github.NewClient(&http.Client{Timeout: 15 * time.Second})
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}
	if cfg.BaseURL != "" {
		base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("github base url: %w", err)
		}
		client.BaseURL = base
	}

	return &GitHubSnapshotRepo{
		client: client,
		owner:  owner,
		name:   name,
		path:   path,
		branch: cfg.Branch,
	}, nil
}

var _ repo.SnapshotRepo = (*GitHubSnapshotRepo)(nil)

// Fetch downloads the file and its blob SHA
func (r *GitHubSnapshotRepo) Fetch(ctx context.Context) (*domain.Snapshot, error) {
	file, _, _, err := r.client.Repositories.GetContents(ctx, r.owner, r.name, r.path,
		&github.RepositoryContentGetOptions{Ref: r.branch})
	if err != nil {
		if statusCode(err) == http.StatusNotFound {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("github get contents: %w", err)
	}
	if file == nil {
		return nil, fmt.Errorf("github get contents: %s is a directory", r.path)
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	return &domain.Snapshot{Content: []byte(content), Version: file.GetSHA()}, nil
}

// Write commits content. GitHub rejects a stale or missing SHA with 409
// (or 422 on some endpoints), reported as domain.ErrConflict.
func (r *GitHubSnapshotRepo) Write(ctx context.Context, content []byte, expectedVersion string) error {
	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr("Update real names"),
		Content: content,
		Branch:  github.Ptr(r.branch),
	}

	var err error
	if expectedVersion == "" {
		_, _, err = r.client.Repositories.CreateFile(ctx, r.owner, r.name, r.path, opts)
	} else {
		opts.SHA = github.Ptr(expectedVersion)
		_, _, err = r.client.Repositories.UpdateFile(ctx, r.owner, r.name, r.path, opts)
	}
	if err == nil {
		return nil
	}

	switch statusCode(err) {
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return fmt.Errorf("github put contents: %w: %w", err, domain.ErrConflict)
	default:
		return fmt.Errorf("github put contents: %w", err)
	}
}

// statusCode extracts the HTTP status of a GitHub API error, 0 when none
func statusCode(err error) int {
	var apiErr *github.ErrorResponse
	if errors.As(err, &apiErr) && apiErr.Response != nil {
		return apiErr.Response.StatusCode
	}
	return 0
}
