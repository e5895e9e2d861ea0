package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/leapstack-labs/datarade/pkg/core"
)

const (
	azureBaseURL    = "https://dev.azure.com"
	azureAPIVersion = "6.0"
)

// AzureDevOpsStore reads and writes artifacts through the Azure DevOps Git
// REST API.
type AzureDevOpsStore struct {
	repoURL string
	branch  string
	client  *httpClient
}

// NewAzureDevOpsStore builds an Azure DevOps backed store. RepositoryURL, when
// set, is the repository API URL ending in /_apis/git/repositories/<repo>.
// Otherwise Organization, Project and Repository are required.
func NewAzureDevOpsStore(src Source) (*AzureDevOpsStore, error) {
	s := &AzureDevOpsStore{branch: src.Branch}

	switch {
	case src.RepositoryURL != "":
		s.repoURL = strings.TrimRight(src.RepositoryURL, "/")
	case src.Organization != "" && src.Project != "" && src.Repository != "":
		s.repoURL = fmt.Sprintf("%s/%s/%s/_apis/git/repositories/%s", azureBaseURL,
			url.PathEscape(src.Organization), url.PathEscape(src.Project), url.PathEscape(src.Repository))
	default:
		return nil, &core.ValidationError{
			Source:  "catalog",
			Field:   "repository",
			Message: "azure-devops needs repository_url or organization, project and repository",
		}
	}

	username, password := src.Username, src.Password
	s.client = newHTTPClient(src, s.repoURL, func(r *http.Request) {
		if username != "" || password != "" {
			r.SetBasicAuth(username, password)
		}
	})
	return s, nil
}

// Location returns the repository API URL.
func (s *AzureDevOpsStore) Location() string { return s.repoURL }

// Fetch downloads one file from the items endpoint.
func (s *AzureDevOpsStore) Fetch(ctx context.Context, path string) ([]byte, error) {
	q := url.Values{}
	q.Set("path", "/"+strings.TrimLeft(path, "/"))
	q.Set("api-version", azureAPIVersion)
	q.Set("$format", "octetStream")
	if s.branch != "" {
		q.Set("versionDescriptor.version", s.branch)
		q.Set("versionDescriptor.versionType", "branch")
	}
	return s.client.do(ctx, http.MethodGet, s.repoURL+"/items?"+q.Encode(), path, nil, nil)
}

type azureRepository struct {
	DefaultBranch string `json:"defaultBranch"`
}

type azureRefs struct {
	Value []struct {
		Name     string `json:"name"`
		ObjectID string `json:"objectId"`
	} `json:"value"`
}

type azurePush struct {
	RefUpdates []azureRefUpdate `json:"refUpdates"`
	Commits    []azureCommit    `json:"commits"`
}

type azureRefUpdate struct {
	Name        string `json:"name"`
	OldObjectID string `json:"oldObjectId"`
}

type azureCommit struct {
	Comment string        `json:"comment"`
	Changes []azureChange `json:"changes"`
}

type azureChange struct {
	ChangeType string          `json:"changeType"`
	Item       azureItem       `json:"item"`
	NewContent azureNewContent `json:"newContent"`
}

type azureItem struct {
	Path string `json:"path"`
}

type azureNewContent struct {
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
}

// Put pushes all files as a single commit on the configured branch.
func (s *AzureDevOpsStore) Put(ctx context.Context, files []File, message string) error {
	ref, err := s.resolveRef(ctx)
	if err != nil {
		return err
	}

	commit := azureCommit{Comment: message}
	for _, f := range files {
		changeType := "edit"
		if _, err := s.Fetch(ctx, f.Path); err != nil {
			if !errors.Is(err, core.ErrNotFound) {
				return err
			}
			changeType = "add"
		}
		commit.Changes = append(commit.Changes, azureChange{
			ChangeType: changeType,
			Item:       azureItem{Path: "/" + strings.TrimLeft(f.Path, "/")},
			NewContent: azureNewContent{Content: string(f.Data), ContentType: "rawtext"},
		})
	}

	body, err := json.Marshal(azurePush{
		RefUpdates: []azureRefUpdate{ref},
		Commits:    []azureCommit{commit},
	})
	if err != nil {
		return fmt.Errorf("failed to encode push: %w", err)
	}
	pushURL := s.repoURL + "/pushes?api-version=" + azureAPIVersion
	header := http.Header{"Content-Type": {"application/json"}}
	_, err = s.client.do(ctx, http.MethodPost, pushURL, "pushes", bytes.NewReader(body), header)
	return err
}

// resolveRef finds the branch head the push is based on.
func (s *AzureDevOpsStore) resolveRef(ctx context.Context) (azureRefUpdate, error) {
	branch := s.branch
	if branch == "" {
		repoURL := s.repoURL + "?api-version=" + azureAPIVersion
		data, err := s.client.do(ctx, http.MethodGet, repoURL, "repository", nil, nil)
		if err != nil {
			return azureRefUpdate{}, err
		}
		var repo azureRepository
		if err := json.Unmarshal(data, &repo); err != nil {
			return azureRefUpdate{}, &core.TransportError{Op: "decode", URL: repoURL, Err: err}
		}
		branch = repo.DefaultBranch
	}
	name := "refs/heads/" + strings.TrimPrefix(branch, "refs/heads/")

	q := url.Values{}
	q.Set("filter", strings.TrimPrefix(name, "refs/"))
	q.Set("api-version", azureAPIVersion)
	refsURL := s.repoURL + "/refs?" + q.Encode()
	data, err := s.client.do(ctx, http.MethodGet, refsURL, name, nil, nil)
	if err != nil {
		return azureRefUpdate{}, err
	}
	var refs azureRefs
	if err := json.Unmarshal(data, &refs); err != nil {
		return azureRefUpdate{}, &core.TransportError{Op: "decode", URL: refsURL, Err: err}
	}
	for _, r := range refs.Value {
		if r.Name == name {
			return azureRefUpdate{Name: name, OldObjectID: r.ObjectID}, nil
		}
	}
	return azureRefUpdate{}, &core.NotFoundError{Kind: "branch", Key: name}
}

var (
	_ FileStore  = (*AzureDevOpsStore)(nil)
	_ FileWriter = (*AzureDevOpsStore)(nil)
)
