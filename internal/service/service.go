// Package service implements the datarade use cases. Every operation runs in
// exactly one unit of work, so its events reach the message bus only after
// the work committed.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/leapstack-labs/datarade/internal/bus"
	"github.com/leapstack-labs/datarade/internal/catalog"
	"github.com/leapstack-labs/datarade/internal/container"
	"github.com/leapstack-labs/datarade/internal/transfer"
	"github.com/leapstack-labs/datarade/internal/uow"
	"github.com/leapstack-labs/datarade/pkg/core"
)

// Config holds the collaborators of a Service.
type Config struct {
	Catalog    *catalog.Repository
	Containers container.Repository
	Pipeline   *transfer.Pipeline

	// Bus defaults to a new bus.
	Bus *bus.Bus

	// History receives completed refreshes. Optional.
	History core.Store

	Logger *slog.Logger
}

// Service exposes the datarade operations.
type Service struct {
	catalog    *catalog.Repository
	containers container.Repository
	pipeline   *transfer.Pipeline
	bus        *bus.Bus
	history    core.Store
	logger     *slog.Logger

	datasetUoW   *uow.UnitOfWork[*catalog.Session]
	containerUoW *uow.UnitOfWork[container.Session]
}

// New creates a service and registers its handlers on the bus.
func New(cfg Config) (*Service, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("service: catalog repository is required")
	}
	if cfg.Containers == nil {
		return nil, errors.New("service: container repository is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	b := cfg.Bus
	if b == nil {
		b = bus.New(logger)
	}
	pipeline := cfg.Pipeline
	if pipeline == nil {
		pipeline = transfer.New(transfer.Config{Logger: logger})
	}

	s := &Service{
		catalog:      cfg.Catalog,
		containers:   cfg.Containers,
		pipeline:     pipeline,
		bus:          b,
		history:      cfg.History,
		logger:       logger,
		datasetUoW:   uow.New(cfg.Catalog.Session, b, logger),
		containerUoW: uow.New(cfg.Containers.Session, b, logger),
	}
	s.bootstrap()
	return s, nil
}

// Bus returns the message bus the service dispatches to.
func (s *Service) Bus() *bus.Bus { return s.bus }

// Catalog returns the catalog repository.
func (s *Service) Catalog() *catalog.Repository { return s.catalog }

// Handle dispatches a command through the bus.
func (s *Service) Handle(ctx context.Context, cmd core.Command) error {
	return s.bus.Dispatch(ctx, cmd)
}

// GetDataset resolves a dataset from the catalog.
func (s *Service) GetDataset(ctx context.Context, name string) (*core.Dataset, error) {
	var ds *core.Dataset
	err := s.datasetUoW.Run(ctx, func(ctx context.Context, scope *uow.Scope[*catalog.Session]) error {
		var err error
		ds, err = scope.Repo.Get(ctx, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// AddDataset writes a new dataset to the catalog.
func (s *Service) AddDataset(ctx context.Context, spec core.DatasetSpec) (*core.Dataset, error) {
	var ds *core.Dataset
	err := s.datasetUoW.Run(ctx, func(ctx context.Context, scope *uow.Scope[*catalog.Session]) error {
		var err error
		ds, err = scope.Repo.Add(ctx, spec)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// RegisterDatasetContainer registers or replaces a container.
func (s *Service) RegisterDatasetContainer(ctx context.Context, spec core.ContainerSpec) (*core.DatasetContainer, error) {
	var c *core.DatasetContainer
	err := s.containerUoW.Run(ctx, func(ctx context.Context, scope *uow.Scope[container.Session]) error {
		var err error
		c, err = scope.Repo.Register(ctx, spec)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetDatasetContainer returns a registered container.
func (s *Service) GetDatasetContainer(ctx context.Context, id string) (*core.DatasetContainer, error) {
	var c *core.DatasetContainer
	err := s.containerUoW.Run(ctx, func(ctx context.Context, scope *uow.Scope[container.Session]) error {
		var err error
		c, err = scope.Repo.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListContainers returns every registered container ordered by id.
func (s *Service) ListContainers(ctx context.Context) ([]core.ContainerSpec, error) {
	return s.containers.List(ctx)
}

// RefreshDataset resolves the dataset and the container, then loads the
// dataset into the container. The dataset's DatasetRequested and
// DatasetRefreshed events are published once the load succeeded.
func (s *Service) RefreshDataset(ctx context.Context, cmd core.RefreshDataset) (*transfer.Result, error) {
	var res *transfer.Result
	err := s.containerUoW.Run(ctx, func(ctx context.Context, scope *uow.Scope[container.Session]) error {
		c, err := scope.Repo.Get(ctx, cmd.ContainerID)
		if err != nil {
			return err
		}

		cat, err := s.catalog.Session(ctx)
		if err != nil {
			return err
		}
		ds, err := cat.Get(ctx, cmd.DatasetName)
		if err != nil {
			return err
		}
		scope.Track(ds)

		res, err = s.pipeline.Refresh(ctx, ds, c, cmd.Table)
		if err != nil {
			return err
		}
		ds.Record(core.DatasetRefreshed{
			EventMeta:   core.NewEventMeta(),
			DatasetName: ds.Name(),
			ContainerID: c.ID(),
			Table:       res.FullName,
			Rows:        res.Rows,
			StartedAt:   res.StartedAt,
			Duration:    res.Duration,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// History returns the most recent refreshes, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]*core.RefreshRun, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.ListRefreshes(ctx, limit)
}

// recordRefresh stores a completed refresh in the history.
func (s *Service) recordRefresh(ctx context.Context, e core.DatasetRefreshed) error {
	if s.history == nil {
		return nil
	}
	return s.history.RecordRefresh(ctx, &core.RefreshRun{
		DatasetName: e.DatasetName,
		ContainerID: e.ContainerID,
		Table:       e.Table,
		Rows:        e.Rows,
		StartedAt:   e.StartedAt,
		CompletedAt: e.StartedAt.Add(e.Duration),
	})
}
