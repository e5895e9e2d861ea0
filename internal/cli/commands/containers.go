package commands

import (
	"fmt"

	"github.com/leapstack-labs/datarade/internal/api"
	"github.com/leapstack-labs/datarade/internal/cli/output"
	"github.com/leapstack-labs/datarade/pkg/core"
	"github.com/spf13/cobra"
)

// NewContainersCommand creates the containers command.
func NewContainersCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "containers",
		Aliases: []string{"ls"},
		Short:   "List registered dataset containers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			specs, err := cmdCtx.Service.ListContainers(cmd.Context())
			if err != nil {
				return err
			}
			return renderContainers(cmdCtx.Renderer, specs)
		},
	}
}

func renderContainers(r *output.Renderer, specs []core.ContainerSpec) error {
	if r.EffectiveMode() == output.ModeJSON {
		views := make([]api.ContainerView, 0, len(specs))
		for _, s := range specs {
			views = append(views, api.NewContainerView(s))
		}
		return r.JSON(views)
	}

	r.Header(1, fmt.Sprintf("Containers (%d total)", len(specs)))
	rows := make([][]string, 0, len(specs))
	for _, s := range specs {
		user := ""
		if s.User != nil {
			user = s.User.Username
		}
		rows = append(rows, []string{s.ID, s.Database.Driver, endpoint(s.Database), s.Schema, user})
	}
	r.Table([]string{"ID", "Driver", "Database", "Schema", "User"}, rows)
	return nil
}
