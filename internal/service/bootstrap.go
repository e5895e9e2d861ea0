package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/datarade/internal/bus"
	"github.com/leapstack-labs/datarade/pkg/core"
)

// bootstrap registers the command handlers and the built-in event handlers.
func (s *Service) bootstrap() {
	s.bus.Handle(core.CommandRegisterDatasetContainer, func(ctx context.Context, msg core.Command) ([]core.Event, error) {
		cmd := msg.(core.RegisterDatasetContainer)
		_, err := s.RegisterDatasetContainer(ctx, cmd.Container)
		return nil, err
	})
	s.bus.Handle(core.CommandAddDataset, func(ctx context.Context, msg core.Command) ([]core.Event, error) {
		cmd := msg.(core.AddDataset)
		_, err := s.AddDataset(ctx, cmd.Dataset)
		return nil, err
	})
	s.bus.Handle(core.CommandRefreshDataset, func(ctx context.Context, msg core.Command) ([]core.Event, error) {
		_, err := s.RefreshDataset(ctx, msg.(core.RefreshDataset))
		return nil, err
	})

	s.SubscribeAll(s.logEvent)
	s.bus.Subscribe(core.EventDatasetRefreshed, func(ctx context.Context, e core.Event) ([]core.Event, error) {
		return nil, s.recordRefresh(ctx, e.(core.DatasetRefreshed))
	})
}

// SubscribeAll registers h for every event type.
func (s *Service) SubscribeAll(h bus.EventHandler) {
	for _, name := range core.EventNames() {
		s.bus.Subscribe(name, h)
	}
}

func (s *Service) logEvent(_ context.Context, e core.Event) ([]core.Event, error) {
	switch e := e.(type) {
	case core.DatasetRequested:
		s.logger.Info("dataset requested", "dataset", e.Name, "location", e.RepositoryURL, "path", e.CatalogPath)
	case core.DatasetAdded:
		s.logger.Info("dataset added", "dataset", e.Name, "location", e.RepositoryURL, "path", e.CatalogPath)
	case core.DatasetContainerRegistered:
		s.logger.Info("container registered", "container", e.ContainerID, "driver", e.Driver, "database", e.DatabaseName, "schema", e.Schema)
	case core.DatasetRefreshed:
		s.logger.Info("dataset refreshed",
			"dataset", e.DatasetName,
			"container", e.ContainerID,
			"table", e.Table,
			"rows", e.Rows,
			slog.Duration("elapsed", e.Duration))
	}
	return nil, nil
}

// RegisterContainers registers each spec in its own unit of work, stopping
// at the first failure.
func (s *Service) RegisterContainers(ctx context.Context, specs []core.ContainerSpec) error {
	start := time.Now()
	for _, spec := range specs {
		if _, err := s.RegisterDatasetContainer(ctx, spec); err != nil {
			return fmt.Errorf("failed to register container %s: %w", spec.ID, err)
		}
	}
	if len(specs) > 0 {
		s.logger.Debug("registered configured containers", "count", len(specs), "elapsed", since(start))
	}
	return nil
}

func since(t time.Time) time.Duration { return time.Since(t).Round(time.Millisecond) }
