package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v66/github"

	"events_syncer/internal/domain"
)

// Config holds repository coordinates for the events document.
type Config struct {
	BaseURL       string
	Token         string
	Owner         string
	Repo          string
	Branch        string
	Path          string
	CommitMessage string
	Timeout       time.Duration
}

// DocumentStore reads and writes a single file on a single branch, guarding
// writes with the blob sha returned by Read.
type DocumentStore struct {
	client  *gh.Client
	owner   string
	repo    string
	branch  string
	path    string
	message string
	logger  *slog.Logger
}

func NewDocumentStore(cfg Config, logger *slog.Logger) (*DocumentStore, error) {
	client := gh.NewClient(&http.Client{Timeout: cfg.Timeout}).WithAuthToken(cfg.Token)

	if cfg.BaseURL != "" {
		base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		client.BaseURL = base
	}

	return &DocumentStore{
		client:  client,
		owner:   cfg.Owner,
		repo:    cfg.Repo,
		branch:  cfg.Branch,
		path:    cfg.Path,
		message: cfg.CommitMessage,
		logger:  logger.With("repo", cfg.Owner+"/"+cfg.Repo, "path", cfg.Path),
	}, nil
}

// Read returns the document text and its version token (blob sha).
func (s *DocumentStore) Read(ctx context.Context) (string, string, error) {
	file, _, resp, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, s.path,
		&gh.RepositoryContentGetOptions{Ref: s.branch})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", "", fmt.Errorf("%w: %s@%s", domain.ErrDocumentNotFound, s.path, s.branch)
		}
		return "", "", fmt.Errorf("get contents: %w", err)
	}
	if file == nil {
		return "", "", fmt.Errorf("%w: %s is a directory", domain.ErrDocumentNotFound, s.path)
	}

	content, err := file.GetContent()
	if err != nil {
		return "", "", fmt.Errorf("decode contents: %w", err)
	}

	s.logger.Debug("read document", "sha", file.GetSHA(), "bytes", len(content))

	return content, file.GetSHA(), nil
}

// Write commits content if the remote file is still at version. It returns
// the new commit sha.
func (s *DocumentStore) Write(ctx context.Context, content, version string) (string, error) {
	opts := &gh.RepositoryContentFileOptions{
		Message: gh.String(s.message),
		Content: []byte(content),
		SHA:     gh.String(version),
		Branch:  gh.String(s.branch),
	}

	res, resp, err := s.client.Repositories.UpdateFile(ctx, s.owner, s.repo, s.path, opts)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return "", fmt.Errorf("%w: %s", domain.ErrWriteConflict, s.path)
		}
		var ghErr *gh.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("%w: %s@%s", domain.ErrDocumentNotFound, s.path, s.branch)
		}
		return "", fmt.Errorf("update file: %w", err)
	}

	sha := res.Commit.GetSHA()
	s.logger.Debug("wrote document", "commit", sha)

	return sha, nil
}
