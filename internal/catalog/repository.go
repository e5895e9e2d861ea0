// Package catalog resolves datasets from a version-controlled catalog.
//
// A catalog keeps one directory per dataset under its catalog path:
//
//	<catalog_path>/<name>/config.yaml
//	<catalog_path>/<name>/definition.sql
//
// The files are read through a FileStore chosen by platform tag (GitHub raw
// endpoint, Azure DevOps Git REST API, a local directory or memory).
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/leapstack-labs/datarade/pkg/core"
)

// Repository resolves datasets against one catalog. The catalog coordinates
// are bound when the repository is built.
type Repository struct {
	store       FileStore
	catalogPath string
	logger      *slog.Logger
}

// NewRepository creates a repository over store. An empty catalogPath uses
// DefaultPath. If logger is nil, a discard logger is used.
func NewRepository(store FileStore, catalogPath string, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if catalogPath == "" {
		catalogPath = DefaultPath
	}
	return &Repository{store: store, catalogPath: catalogPath, logger: logger}
}

// Open builds the store selected by src and a repository over it.
func Open(src Source) (*Repository, error) {
	store, err := NewFileStore(src)
	if err != nil {
		return nil, err
	}
	return NewRepository(store, src.CatalogPath(), src.Logger), nil
}

// Location returns the store location.
func (r *Repository) Location() string { return r.store.Location() }

// CatalogPath returns the directory holding dataset entries.
func (r *Repository) CatalogPath() string { return r.catalogPath }

// ConfigPath returns the config.yaml path of a dataset.
func (r *Repository) ConfigPath(name string) string {
	return path.Join(r.catalogPath, name, ConfigFile)
}

// DefinitionPath returns the definition.sql path of a dataset.
func (r *Repository) DefinitionPath(name string) string {
	return path.Join(r.catalogPath, name, DefinitionFile)
}

// Session opens a repository session for one unit of work.
func (r *Repository) Session(_ context.Context) (*Session, error) {
	return &Session{repo: r}, nil
}

// Session tracks the datasets read or added during one unit of work.
// Additions are written to the store on Commit.
type Session struct {
	repo    *Repository
	seen    []*core.Dataset
	pending []*core.Dataset
}

// Get resolves a dataset by name. Datasets added earlier in the session are
// returned without touching the store.
func (s *Session) Get(ctx context.Context, name string) (*core.Dataset, error) {
	ds := s.findPending(name)
	if ds == nil {
		spec, err := s.repo.load(ctx, name)
		if err != nil {
			return nil, err
		}
		ds = core.NewDataset(spec)
		s.seen = append(s.seen, ds)
	}

	ds.Record(core.DatasetRequested{
		EventMeta:     core.NewEventMeta(),
		Name:          ds.Name(),
		RepositoryURL: s.repo.Location(),
		CatalogPath:   s.repo.catalogPath,
	})
	s.repo.logger.Debug("dataset resolved",
		slog.String("dataset", ds.Name()),
		slog.String("location", s.repo.Location()))
	return ds, nil
}

// Add stages a new catalog entry. It is written on Commit.
func (s *Session) Add(_ context.Context, spec core.DatasetSpec) (*core.Dataset, error) {
	if err := ValidateSpec(spec); err != nil {
		return nil, err
	}
	if _, ok := s.repo.store.(FileWriter); !ok {
		return nil, &core.ValidationError{
			Source:  s.repo.Location(),
			Message: "catalog store is read-only",
		}
	}

	ds := core.NewDataset(spec)
	ds.Record(core.DatasetAdded{
		EventMeta:     core.NewEventMeta(),
		Name:          ds.Name(),
		RepositoryURL: s.repo.Location(),
		CatalogPath:   s.repo.catalogPath,
	})
	s.pending = append(s.pending, ds)
	s.seen = append(s.seen, ds)
	return ds, nil
}

// Seen returns every dataset read or added in this session, in order.
func (s *Session) Seen() []core.Aggregate {
	out := make([]core.Aggregate, len(s.seen))
	for i, ds := range s.seen {
		out[i] = ds
	}
	return out
}

// Commit writes pending additions, one change per dataset.
func (s *Session) Commit(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	writer := s.repo.store.(FileWriter)
	for _, ds := range s.pending {
		files, err := s.repo.files(ds)
		if err != nil {
			return err
		}
		if err := writer.Put(ctx, files, fmt.Sprintf("Add dataset %s", ds.Name())); err != nil {
			return fmt.Errorf("failed to write dataset %s: %w", ds.Name(), err)
		}
		s.repo.logger.Info("dataset written", slog.String("dataset", ds.Name()))
	}
	s.pending = nil
	return nil
}

// Rollback discards pending additions.
func (s *Session) Rollback(_ context.Context) error {
	s.pending = nil
	return nil
}

func (s *Session) findPending(name string) *core.Dataset {
	for _, ds := range s.pending {
		if ds.Name() == name {
			return ds
		}
	}
	return nil
}

// load fetches both artifacts. Either one missing means the dataset does
// not exist.
func (r *Repository) load(ctx context.Context, name string) (core.DatasetSpec, error) {
	configPath := r.ConfigPath(name)
	config, err := r.store.Fetch(ctx, configPath)
	if err != nil {
		return core.DatasetSpec{}, r.fetchErr(name, err)
	}
	definition, err := r.store.Fetch(ctx, r.DefinitionPath(name))
	if err != nil {
		return core.DatasetSpec{}, r.fetchErr(name, err)
	}

	spec, err := DecodeConfig(configPath, config)
	if err != nil {
		return core.DatasetSpec{}, err
	}
	spec.Definition = string(definition)
	return spec, nil
}

func (r *Repository) fetchErr(name string, err error) error {
	if errors.Is(err, core.ErrNotFound) {
		return &core.NotFoundError{Kind: "dataset", Key: name}
	}
	return err
}

func (r *Repository) files(ds *core.Dataset) ([]File, error) {
	config, err := EncodeConfig(ds.Spec())
	if err != nil {
		return nil, err
	}
	return []File{
		{Path: r.ConfigPath(ds.Name()), Data: config},
		{Path: r.DefinitionPath(ds.Name()), Data: []byte(ds.Definition())},
	}, nil
}
