package catalog

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/leapstack-labs/datarade/pkg/core"
)

const (
	githubRawURL = "https://raw.githubusercontent.com"
	githubAPIURL = "https://api.github.com"
)

// GitHubStore reads artifacts from the raw content endpoint and writes them
// through the contents API.
type GitHubStore struct {
	rawBase string
	apiBase string
	owner   string
	repo    string
	branch  string
	client  *httpClient
}

// NewGitHubStore builds a GitHub backed store. RepositoryURL, when set, is the
// raw content base (for example https://raw.githubusercontent.com/org/repo/main).
// Otherwise Organization and Repository are required and Branch defaults to
// the repository's default branch.
func NewGitHubStore(src Source) (*GitHubStore, error) {
	s := &GitHubStore{
		apiBase: strings.TrimRight(src.APIURL, "/"),
		owner:   src.Organization,
		repo:    src.Repository,
		branch:  src.Branch,
	}
	if s.apiBase == "" {
		s.apiBase = githubAPIURL
	}

	switch {
	case src.RepositoryURL != "":
		s.rawBase = strings.TrimRight(src.RepositoryURL, "/")
	case src.Organization != "" && src.Repository != "":
		ref := src.Branch
		if ref == "" {
			ref = "HEAD"
		}
		s.rawBase = strings.Join([]string{githubRawURL, src.Organization, src.Repository, ref}, "/")
	default:
		return nil, &core.ValidationError{
			Source:  "catalog",
			Field:   "repository",
			Message: "github needs repository_url or organization and repository",
		}
	}

	token := src.Password
	s.client = newHTTPClient(src, s.rawBase, func(r *http.Request) {
		if token != "" {
			r.Header.Set("Authorization", "token "+token)
		}
	})
	return s, nil
}

// Location returns the raw content base URL.
func (s *GitHubStore) Location() string { return s.rawBase }

// Fetch reads one file from the raw endpoint.
func (s *GitHubStore) Fetch(ctx context.Context, path string) ([]byte, error) {
	return s.client.do(ctx, http.MethodGet, s.rawBase+"/"+escapePath(path), path, nil, nil)
}

type githubContent struct {
	SHA string `json:"sha"`
}

type githubPut struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

// Put writes each file with the contents API. GitHub has no multi-file
// endpoint there, so every file becomes its own commit.
func (s *GitHubStore) Put(ctx context.Context, files []File, message string) error {
	if s.owner == "" || s.repo == "" {
		return &core.ValidationError{
			Source:  "catalog",
			Field:   "repository",
			Message: "writing to github needs organization and repository",
		}
	}
	for _, f := range files {
		if err := s.putOne(ctx, f, message); err != nil {
			return err
		}
	}
	return nil
}

func (s *GitHubStore) putOne(ctx context.Context, f File, message string) error {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s", s.apiBase, s.owner, s.repo, escapePath(f.Path))
	header := http.Header{"Accept": {"application/vnd.github+json"}}

	getURL := endpoint
	if s.branch != "" {
		getURL += "?ref=" + url.QueryEscape(s.branch)
	}

	var existing githubContent
	data, err := s.client.do(ctx, http.MethodGet, getURL, f.Path, nil, header)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &existing); err != nil {
			return &core.TransportError{Op: "decode", URL: getURL, Err: err}
		}
	case errors.Is(err, core.ErrNotFound):
	default:
		return err
	}

	body, err := json.Marshal(githubPut{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(f.Data),
		SHA:     existing.SHA,
		Branch:  s.branch,
	})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	header.Set("Content-Type", "application/json")
	_, err = s.client.do(ctx, http.MethodPut, endpoint, f.Path, bytes.NewReader(body), header)
	return err
}

// escapePath escapes each segment of a slash separated path.
func escapePath(p string) string {
	parts := strings.Split(strings.TrimLeft(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

var (
	_ FileStore  = (*GitHubStore)(nil)
	_ FileWriter = (*GitHubStore)(nil)
)
