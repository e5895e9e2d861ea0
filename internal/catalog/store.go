package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/leapstack-labs/datarade/pkg/core"
)

// Platform selects the CatalogFileStore backend.
type Platform string

// Supported platforms.
const (
	PlatformGitHub      Platform = "github"
	PlatformAzureDevOps Platform = "azure-devops"
	PlatformLocal       Platform = "local"
	PlatformMemory      Platform = "memory"
)

// DefaultPath is the catalog directory inside the repository when none is
// configured.
const DefaultPath = "catalog"

// FileStore fetches catalog artifacts by repository-relative path.
type FileStore interface {
	// Fetch returns the bytes at path. A missing file is a core.NotFoundError.
	Fetch(ctx context.Context, path string) ([]byte, error)

	// Location identifies the store in events and logs.
	Location() string
}

// File is one artifact to write.
type File struct {
	Path string
	Data []byte
}

// FileWriter is implemented by stores that accept new catalog entries.
// All files of one call land in a single change where the backend allows it.
type FileWriter interface {
	Put(ctx context.Context, files []File, message string) error
}

// Source holds the coordinates of a catalog.
type Source struct {
	Platform      Platform
	RepositoryURL string
	APIURL        string
	Organization  string
	Project       string
	Repository    string
	Branch        string
	Path          string
	Username      string
	Password      string
	RateLimit     float64

	// HTTPClient overrides the client used by hosted backends.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// CatalogPath returns the configured catalog path or DefaultPath.
func (s Source) CatalogPath() string {
	p := strings.Trim(s.Path, "/")
	if p == "" {
		return DefaultPath
	}
	return p
}

// NewFileStore builds the backend selected by src.Platform.
func NewFileStore(src Source) (FileStore, error) {
	if src.Logger == nil {
		src.Logger = slog.New(slog.DiscardHandler)
	}
	switch Platform(strings.ToLower(string(src.Platform))) {
	case PlatformGitHub:
		return NewGitHubStore(src)
	case PlatformAzureDevOps:
		return NewAzureDevOpsStore(src)
	case PlatformLocal:
		return NewLocalStore(src.RepositoryURL)
	case PlatformMemory:
		return NewMemoryStore(nil), nil
	default:
		return nil, &UnknownPlatformError{Platform: string(src.Platform)}
	}
}

// UnknownPlatformError is returned for an unsupported platform tag.
type UnknownPlatformError struct {
	Platform string
}

func (e *UnknownPlatformError) Error() string {
	return fmt.Sprintf("unknown catalog platform %q (expected github, azure-devops, local or memory)", e.Platform)
}

// Unwrap returns core.ErrValidation.
func (e *UnknownPlatformError) Unwrap() error { return core.ErrValidation }
