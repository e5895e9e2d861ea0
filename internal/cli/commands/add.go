package commands

import (
	"fmt"
	"os"

	"github.com/leapstack-labs/datarade/internal/api"
	"github.com/leapstack-labs/datarade/internal/catalog"
	"github.com/leapstack-labs/datarade/internal/cli/output"
	"github.com/leapstack-labs/datarade/pkg/core"
	"github.com/spf13/cobra"
)

// NewAddCommand creates the add command.
func NewAddCommand() *cobra.Command {
	var configFile, definitionFile string

	cmd := &cobra.Command{
		Use:   "add <dataset>",
		Short: "Add a dataset to the catalog",
		Long: `Write a dataset's config.yaml and definition.sql into the catalog.

The name inside the config file must match the dataset argument.`,
		Example: `  datarade add numbers --config-file numbers.yaml --definition-file numbers.sql`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := readDatasetFiles(args[0], configFile, definitionFile)
			if err != nil {
				return err
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ds, err := cmdCtx.Service.AddDataset(cmd.Context(), spec)
			if err != nil {
				return err
			}
			if cmdCtx.Renderer.EffectiveMode() == output.ModeJSON {
				return cmdCtx.Renderer.JSON(api.NewDatasetView(ds))
			}
			cmdCtx.Renderer.Success(fmt.Sprintf("Added %s to %s", ds.Name(), cmdCtx.Service.Catalog().Location()))
			return nil
		},
	}

	cmd.Flags().StringVar(&configFile, "config-file", "", "Path to the dataset config.yaml")
	cmd.Flags().StringVar(&definitionFile, "definition-file", "", "Path to the dataset definition.sql")
	_ = cmd.MarkFlagRequired("config-file")
	_ = cmd.MarkFlagRequired("definition-file")

	return cmd
}

// readDatasetFiles builds a dataset spec from local files.
func readDatasetFiles(name, configFile, definitionFile string) (core.DatasetSpec, error) {
	raw, err := os.ReadFile(configFile) //nolint:gosec // user-supplied path
	if err != nil {
		return core.DatasetSpec{}, fmt.Errorf("failed to read config file: %w", err)
	}
	definition, err := os.ReadFile(definitionFile) //nolint:gosec // user-supplied path
	if err != nil {
		return core.DatasetSpec{}, fmt.Errorf("failed to read definition file: %w", err)
	}

	spec, err := catalog.DecodeConfig(configFile, raw)
	if err != nil {
		return core.DatasetSpec{}, err
	}
	if spec.Name != name {
		return core.DatasetSpec{}, &core.ValidationError{
			Source:  configFile,
			Field:   "name",
			Message: fmt.Sprintf("config names %q, expected %q", spec.Name, name),
		}
	}
	spec.Definition = string(definition)
	return spec, nil
}
