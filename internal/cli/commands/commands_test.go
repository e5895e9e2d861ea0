package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/datarade/internal/cli/testutil"
	"github.com/leapstack-labs/datarade/internal/transfer"
	"github.com/leapstack-labs/datarade/pkg/core"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		name  string
		use   string
		flags []string
	}{
		{"get", "get <dataset>", nil},
		{"add", "add <dataset>", []string{"config-file", "definition-file"}},
		{"register", "register <id>", []string{"driver", "host", "port", "database", "schema", "username"}},
		{"refresh", "refresh <dataset>", []string{"container", "table", "watch"}},
		{"containers", "containers", nil},
		{"history", "history", []string{"limit"}},
		{"serve", "serve", []string{"addr"}},
	}
	cmds := map[string]*cobra.Command{
		"get":        NewGetCommand(),
		"add":        NewAddCommand(),
		"register":   NewRegisterCommand(),
		"refresh":    NewRefreshCommand(),
		"containers": NewContainersCommand(),
		"history":    NewHistoryCommand(),
		"serve":      NewServeCommand(),
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := cmds[tt.name]
			assert.Equal(t, tt.use, cmd.Use)
			assert.NotEmpty(t, cmd.Short, "Short should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func TestNewVersionCommand(t *testing.T) {
	cmd := NewVersionCommand("1.2.3", "abc123", "2024-05-01")
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "datarade v1.2.3")
	assert.Contains(t, buf.String(), "commit abc123, built 2024-05-01")
}

func TestReadDatasetFiles(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	defPath := filepath.Join(dir, "definition.sql")
	require.NoError(t, os.WriteFile(cfgPath, []byte(testutil.NumbersConfig), 0o600))
	require.NoError(t, os.WriteFile(defPath, []byte(testutil.NumbersDefinition), 0o600))

	spec, err := readDatasetFiles("numbers", cfgPath, defPath)
	require.NoError(t, err)
	assert.Equal(t, "numbers", spec.Name)
	assert.Equal(t, testutil.NumbersDefinition, spec.Definition)
	require.NotNil(t, spec.Database)
	assert.Equal(t, "duckdb", spec.Database.Driver)

	_, err = readDatasetFiles("other", cfgPath, defPath)
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = readDatasetFiles("numbers", cfgPath, filepath.Join(dir, "missing.sql"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		db   core.Database
		want string
	}{
		{core.Database{DatabaseName: "warehouse.duckdb"}, "warehouse.duckdb"},
		{core.Database{Host: "db", Port: 5432, DatabaseName: "SANDBOX"}, "db:5432/SANDBOX"},
		{core.Database{Host: "db", DatabaseName: "SANDBOX", SchemaName: "pytest"}, "db/SANDBOX (pytest)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, endpoint(tt.db))
	}
}

func TestRenderDataset(t *testing.T) {
	ds := core.NewDataset(core.DatasetSpec{
		Name:        "numbers",
		Description: "Five integers",
		Definition:  testutil.NumbersDefinition,
		Fields:      []core.Field{{Name: "n", Type: core.FieldInteger}},
		Database:    &core.Database{Driver: "duckdb", DatabaseName: ":memory:"},
		User:        &core.User{Username: "reader"},
	})

	tr := testutil.NewTestRendererMarkdown()
	require.NoError(t, renderDataset(tr.Renderer, ds))
	out := tr.Output()
	assert.Contains(t, out, "# numbers")
	assert.Contains(t, out, "- **Description:** Five integers")
	assert.Contains(t, out, "- **User:** reader")
	assert.Contains(t, out, "```sql\n"+testutil.NumbersDefinition+"\n```")
	testutil.AssertValidMarkdown(t, out)

	tr = testutil.NewTestRenderer("text", false)
	require.NoError(t, renderDataset(tr.Renderer, ds))
	testutil.AssertNoANSI(t, tr.Output())
	assert.Contains(t, tr.Output(), testutil.NumbersDefinition)
}

func TestRenderRefresh(t *testing.T) {
	req := core.RefreshDataset{DatasetName: "numbers", ContainerID: "sandbox"}
	res := &transfer.Result{
		FullName:  "SANDBOX.pytest.numbers",
		Rows:      5,
		Swapped:   true,
		StartedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
	}

	tr := testutil.NewTestRendererJSON()
	require.NoError(t, renderRefresh(tr.Renderer, req, res))
	var got map[string]any
	require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &got))
	assert.Equal(t, "SANDBOX.pytest.numbers", got["table"])
	assert.EqualValues(t, 5, got["rows"])
	assert.EqualValues(t, 1500, got["duration_ms"])

	tr = testutil.NewTestRenderer("text", false)
	require.NoError(t, renderRefresh(tr.Renderer, req, res))
	assert.Contains(t, tr.Output(), "Refreshed numbers into SANDBOX.pytest.numbers (5 rows, 1.5s)")
}

func TestRenderHistory(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	runs := []*core.RefreshRun{{
		ID:          "r1",
		DatasetName: "numbers",
		ContainerID: "sandbox",
		Table:       "SANDBOX.pytest.numbers",
		Rows:        5,
		StartedAt:   start,
		CompletedAt: start.Add(2 * time.Second),
	}}

	tr := testutil.NewTestRendererMarkdown()
	require.NoError(t, renderHistory(tr.Renderer, runs))
	assert.Contains(t, tr.Output(), "# Refreshes (1)")
	assert.Contains(t, tr.Output(), "| numbers | sandbox | SANDBOX.pytest.numbers | 5 | 2s |")

	tr = testutil.NewTestRendererJSON()
	require.NoError(t, renderHistory(tr.Renderer, nil))
	assert.JSONEq(t, "[]", tr.Output())
}

func TestRenderContainers(t *testing.T) {
	specs := []core.ContainerSpec{{
		ID:       "sandbox",
		Database: core.Database{Driver: "postgres", Host: "db", Port: 5432, DatabaseName: "SANDBOX"},
		Schema:   "pytest",
		User:     &core.User{Username: "loader"},
	}}

	tr := testutil.NewTestRendererMarkdown()
	require.NoError(t, renderContainers(tr.Renderer, specs))
	assert.Contains(t, tr.Output(), "| sandbox | postgres | db:5432/SANDBOX | pytest | loader |")
}
