package commands

import (
	"fmt"

	"github.com/leapstack-labs/datarade/internal/api"
	"github.com/leapstack-labs/datarade/internal/cli/output"
	"github.com/leapstack-labs/datarade/pkg/core"
	"github.com/spf13/cobra"
)

// NewRegisterCommand creates the register command.
func NewRegisterCommand() *cobra.Command {
	var (
		spec     core.ContainerSpec
		username string
	)

	cmd := &cobra.Command{
		Use:   "register <id>",
		Short: "Register a dataset container",
		Long: `Register a database schema that datasets can be refreshed into.
Registering an existing id replaces it.`,
		Example: `  datarade register sandbox --driver postgres --host localhost --port 5432 \
    --database SANDBOX --schema pytest --username loader`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			spec.ID = args[0]
			if username != "" {
				spec.User = &core.User{Username: username}
			}
			c, err := cmdCtx.Service.RegisterDatasetContainer(cmd.Context(), spec)
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(api.NewContainerView(c.Spec()))
			}
			r.Success(fmt.Sprintf("Registered %s (%s)", c.ID(), c.Database().Driver))
			return nil
		},
	}

	cmd.Flags().StringVar(&spec.Database.Driver, "driver", "", "Database driver (postgres, duckdb, sqlite)")
	cmd.Flags().StringVar(&spec.Database.Host, "host", "", "Database host")
	cmd.Flags().IntVar(&spec.Database.Port, "port", 0, "Database port")
	cmd.Flags().StringVar(&spec.Database.DatabaseName, "database", "", "Database name or file")
	cmd.Flags().StringVar(&spec.Schema, "schema", "", "Schema datasets are refreshed into")
	cmd.Flags().StringVar(&username, "username", "", "Login used for the container")
	_ = cmd.MarkFlagRequired("driver")

	return cmd
}
