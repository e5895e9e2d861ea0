package commands

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/datarade/internal/api"
	"github.com/leapstack-labs/datarade/internal/cli/output"
	"github.com/leapstack-labs/datarade/pkg/core"
	"github.com/spf13/cobra"
)

// NewGetCommand creates the get command.
func NewGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <dataset>",
		Short: "Show a dataset from the catalog",
		Long: `Fetch a dataset's config and definition from the catalog and show its
fields, source database and query.`,
		Example: `  # Show a dataset
  datarade get numbers

  # As JSON
  datarade get numbers --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ds, err := cmdCtx.Service.GetDataset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return renderDataset(cmdCtx.Renderer, ds)
		},
	}
}

func renderDataset(r *output.Renderer, ds *core.Dataset) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(api.NewDatasetView(ds))
	}

	r.Header(1, ds.Name())
	if ds.Description() != "" {
		r.KeyValue("Description", ds.Description())
	}
	if db := ds.Database(); db != nil {
		r.KeyValue("Driver", db.Driver)
		r.KeyValue("Database", endpoint(*db))
	}
	if u := ds.User(); u != nil {
		r.KeyValue("User", u.Username)
	}
	r.Println("")

	rows := make([][]string, 0, len(ds.Fields()))
	for _, f := range ds.Fields() {
		rows = append(rows, []string{f.Name, string(f.Type), f.Description})
	}
	r.Table([]string{"Field", "Type", "Description"}, rows)
	r.Println("")

	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println("```sql")
		r.Println(ds.Definition())
		r.Println("```")
		return nil
	}
	r.Println(r.Styles.Muted.Render(ds.Definition()))
	return nil
}

// endpoint formats host:port/database for display.
func endpoint(db core.Database) string {
	s := db.Host
	if db.Port > 0 {
		s += ":" + strconv.Itoa(db.Port)
	}
	if s != "" {
		s += "/"
	}
	s += db.DatabaseName
	if db.SchemaName != "" {
		s = fmt.Sprintf("%s (%s)", s, db.SchemaName)
	}
	return s
}
