package commands

import (
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/datarade/internal/api"
	"github.com/leapstack-labs/datarade/internal/notify"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the dataset and container operations over HTTP until interrupted.

Endpoints:
  GET  /healthz
  POST /datasets
  GET  /datasets/{name}
  GET  /containers
  GET  /containers/{id}
  PUT  /containers/{id}
  POST /containers/{id}/refresh/{dataset}
  GET  /refreshes
  GET  /events      (server-sent events)`,
		Example: `  datarade serve --addr :9090`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			events := notify.New()
			cmdCtx.Service.SubscribeAll(events.Handle)

			srv := api.NewServer(api.Config{
				Service: cmdCtx.Service,
				Addr:    addr,
				Events:  events,
				Logger:  cmdCtx.Logger,
			})
			cmdCtx.Logger.Info("serving API", "addr", addr, "catalog", cmdCtx.Service.Catalog().Location())
			return srv.Serve(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Address to listen on")
	return cmd
}
