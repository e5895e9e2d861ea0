package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/leapstack-labs/datarade/internal/api"
	"github.com/leapstack-labs/datarade/internal/cli/output"
	"github.com/leapstack-labs/datarade/pkg/core"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List completed refreshes",
		Long: `List completed refreshes recorded in the state database, newest first.
Nothing is recorded when state_path is empty.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			runs, err := cmdCtx.Service.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return renderHistory(cmdCtx.Renderer, runs)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	return cmd
}

func renderHistory(r *output.Renderer, runs []*core.RefreshRun) error {
	if r.EffectiveMode() == output.ModeJSON {
		views := make([]api.RunView, 0, len(runs))
		for _, run := range runs {
			views = append(views, api.NewRunView(run))
		}
		return r.JSON(views)
	}

	r.Header(1, fmt.Sprintf("Refreshes (%d)", len(runs)))
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.StartedAt.Local().Format(time.DateTime),
			run.DatasetName,
			run.ContainerID,
			run.Table,
			strconv.FormatInt(run.Rows, 10),
			run.Duration().Round(time.Millisecond).String(),
		})
	}
	r.Table([]string{"Started", "Dataset", "Container", "Table", "Rows", "Duration"}, rows)
	return nil
}
