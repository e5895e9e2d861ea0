package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/leapstack-labs/datarade/internal/api"
	"github.com/leapstack-labs/datarade/internal/cli/output"
	"github.com/leapstack-labs/datarade/internal/transfer"
	"github.com/leapstack-labs/datarade/pkg/core"
	"github.com/spf13/cobra"
)

// NewRefreshCommand creates the refresh command.
func NewRefreshCommand() *cobra.Command {
	var (
		containerID string
		table       string
		watch       bool
	)

	cmd := &cobra.Command{
		Use:   "refresh <dataset>",
		Short: "Refresh a dataset into a container",
		Long: `Run the dataset's query against its source database and replace the
target table in the container with the result.

With --watch the refresh is repeated whenever the dataset's config or
definition changes in a local catalog.`,
		Example: `  # Refresh numbers into the sandbox container
  datarade refresh numbers --container sandbox

  # Write to a differently named table
  datarade refresh numbers --container sandbox --table numbers_v2

  # Re-run on every catalog edit
  datarade refresh numbers --container sandbox --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			req := core.RefreshDataset{DatasetName: args[0], ContainerID: containerID, Table: table}
			if err := runRefresh(cmd.Context(), cmdCtx, req); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watchRefresh(ctx, cmdCtx, req)
		},
	}

	cmd.Flags().StringVarP(&containerID, "container", "c", "", "Container to refresh into")
	cmd.Flags().StringVar(&table, "table", "", "Target table name (default: the dataset name)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Refresh again when the local catalog changes")
	_ = cmd.MarkFlagRequired("container")

	return cmd
}

func runRefresh(ctx context.Context, cmdCtx *CommandContext, req core.RefreshDataset) error {
	res, err := cmdCtx.Service.RefreshDataset(ctx, req)
	if err != nil {
		return err
	}
	return renderRefresh(cmdCtx.Renderer, req, res)
}

// watchRefresh blocks until ctx is done, refreshing on every change.
// Failed refreshes are reported and watching continues.
func watchRefresh(ctx context.Context, cmdCtx *CommandContext, req core.RefreshDataset) error {
	changed := make(chan struct{}, 1)
	errc := make(chan error, 1)
	go func() {
		errc <- cmdCtx.Service.Catalog().Watch(ctx, func(name string) {
			if name != req.DatasetName {
				return
			}
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}()

	cmdCtx.Logger.Info("watching catalog", "dataset", req.DatasetName, "location", cmdCtx.Service.Catalog().Location())
	for {
		select {
		case err := <-errc:
			return err
		case <-changed:
			if err := runRefresh(ctx, cmdCtx, req); err != nil {
				cmdCtx.Renderer.Error(err.Error())
			}
		}
	}
}

func renderRefresh(r *output.Renderer, req core.RefreshDataset, res *transfer.Result) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(api.NewRefreshView(req.DatasetName, req.ContainerID, res))
	case output.ModeMarkdown:
		r.Header(1, "Refreshed "+req.DatasetName)
		r.KeyValue("Container", req.ContainerID)
		r.KeyValue("Table", res.FullName)
		r.KeyValue("Rows", strconv.FormatInt(res.Rows, 10))
		r.KeyValue("Swapped", strconv.FormatBool(res.Swapped))
		r.KeyValue("Duration", res.Duration.String())
	default:
		r.Success(fmt.Sprintf("Refreshed %s into %s (%d rows, %s)", req.DatasetName, res.FullName, res.Rows, res.Duration))
	}
	return nil
}
