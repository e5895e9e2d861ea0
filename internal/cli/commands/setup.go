package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/datarade/internal/catalog"
	"github.com/leapstack-labs/datarade/internal/cli/config"
	"github.com/leapstack-labs/datarade/internal/cli/output"
	"github.com/leapstack-labs/datarade/internal/container"
	"github.com/leapstack-labs/datarade/internal/service"
	"github.com/leapstack-labs/datarade/internal/state"
	"github.com/leapstack-labs/datarade/internal/transfer"
	"github.com/leapstack-labs/datarade/pkg/core"
	"github.com/spf13/cobra"

	// Engines reachable from catalog and container descriptors.
	_ "github.com/leapstack-labs/datarade/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/datarade/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/datarade/pkg/adapters/sqlite"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Service  *service.Service
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with a wired service and renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := config.GetConfig(cmd.Context())
	if cfg == nil {
		return nil, nil, errors.New("configuration not loaded")
	}
	logger := config.GetLogger(cmd.Context())

	svc, closeState, err := createService(cmd, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Service:  svc,
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}, closeState, nil
}

// createService opens the catalog and state database and registers the
// configured containers.
func createService(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) (*service.Service, func(), error) {
	repo, err := catalog.Open(cfg.Source(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	var (
		containers container.Repository
		history    core.Store
		cleanup    = func() {}
	)
	if cfg.StatePath == "" {
		containers = container.NewRegistry()
	} else {
		st := state.NewSQLiteStore(logger)
		if err := st.Open(cfg.StatePath); err != nil {
			return nil, nil, fmt.Errorf("failed to open state database: %w", err)
		}
		containers = container.NewStore(st, logger)
		history = st
		cleanup = func() {
			if err := st.Close(); err != nil {
				logger.Warn("failed to close state database", "error", err)
			}
		}
	}

	svc, err := service.New(service.Config{
		Catalog:    repo,
		Containers: containers,
		Pipeline: transfer.New(transfer.Config{
			StagingDir:  cfg.StagingDir,
			Credentials: cfg.TransferCredentials(),
			Logger:      logger,
		}),
		History: history,
		Logger:  logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	if err := svc.RegisterContainers(cmd.Context(), cfg.ContainerSpecs()); err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}
