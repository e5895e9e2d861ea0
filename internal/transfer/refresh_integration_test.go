package transfer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/datarade/internal/testutil"
	"github.com/leapstack-labs/datarade/pkg/adapter"
	"github.com/leapstack-labs/datarade/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/leapstack-labs/datarade/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/datarade/pkg/adapters/sqlite"
)

func seedSource(t *testing.T, path string) {
	t.Helper()
	ctx := context.Background()
	cfg := core.AdapterConfig{Type: "sqlite", Path: path}
	a, err := adapter.NewAdapter(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, a.Connect(ctx, cfg))
	defer func() { _ = a.Close() }()

	require.NoError(t, a.Exec(ctx, `CREATE TABLE catalog_tables (schema_name TEXT, table_name TEXT, loaded_at TEXT)`))
	require.NoError(t, a.Exec(ctx, `INSERT INTO catalog_tables VALUES
		('main', 'orders', '2024-01-02'),
		('main', 'customers', NULL),
		('audit', 'log, "quoted"', '2024-03-04')`))
}

func TestRefresh_SQLiteToDuckDB(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Chdir(t.TempDir())
	seedSource(t, "source.db")

	ds := core.NewDataset(core.DatasetSpec{
		Name:       "list_of_tables",
		Definition: "SELECT schema_name, table_name, loaded_at FROM catalog_tables;",
		Fields: []core.Field{
			{Name: "schema_name", Type: core.FieldString},
			{Name: "table_name", Type: core.FieldText},
			{Name: "loaded_at", Type: core.FieldDate},
		},
		Database: &core.Database{Driver: "sqlite", DatabaseName: "source.db"},
	})
	c := core.NewDatasetContainer(core.ContainerSpec{
		ID:       "sandbox",
		Database: core.Database{Driver: "duckdb", DatabaseName: "SANDBOX", SchemaName: "pytest"},
	})

	stagingDir := t.TempDir()
	p := New(Config{StagingDir: stagingDir, Logger: testutil.NewTestLogger(t)})

	for run := 1; run <= 2; run++ {
		res, err := p.Refresh(context.Background(), ds, c, "")
		require.NoError(t, err, "run %d", run)
		assert.Equal(t, "SANDBOX.pytest.list_of_tables", res.FullName)
		assert.Equal(t, int64(3), res.Rows, "run %d does not duplicate rows", run)
		assert.True(t, res.Swapped)

		entries, err := os.ReadDir(stagingDir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	}

	cfg := c.Connection("")
	target, err := adapter.NewAdapter(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, target.Connect(context.Background(), cfg))
	defer func() { _ = target.Close() }()

	rows, err := target.Query(context.Background(),
		`SELECT table_name, loaded_at IS NULL FROM "pytest"."list_of_tables" WHERE schema_name = 'audit' OR table_name = 'customers' ORDER BY table_name`)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	type row struct {
		name   string
		isNull bool
	}
	var got []row
	for rows.Next() {
		var r row
		require.NoError(t, rows.Scan(&r.name, &r.isNull))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []row{{"customers", true}, {`log, "quoted"`, false}}, got)

	staged, err := adapter.CountRows(context.Background(), target, c.Table("list_of_tables"+StagedSuffix))
	assert.Error(t, err, "staged table does not survive the swap")
	assert.Zero(t, staged)
}

func TestRefresh_SingleNullableColumn(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "source.db")

	cfg := core.AdapterConfig{Type: "sqlite", Path: srcPath}
	src, err := adapter.NewAdapter(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, src.Connect(ctx, cfg))
	require.NoError(t, src.Exec(ctx, `CREATE TABLE t (note TEXT)`))
	require.NoError(t, src.Exec(ctx, `INSERT INTO t VALUES ('a'), (NULL), (''), ('b')`))
	require.NoError(t, src.Close())

	ds := core.NewDataset(core.DatasetSpec{
		Name:       "notes",
		Definition: "SELECT note FROM t",
		Fields:     []core.Field{{Name: "note", Type: core.FieldText}},
		Database:   &core.Database{Driver: "sqlite", DatabaseName: srcPath},
	})
	c := core.NewDatasetContainer(core.ContainerSpec{
		ID:       "local",
		Database: core.Database{Driver: "sqlite", DatabaseName: filepath.Join(dir, "target.db")},
	})

	p := New(Config{StagingDir: t.TempDir(), Logger: testutil.NewTestLogger(t)})
	res, err := p.Refresh(ctx, ds, c, "")
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Exported)
	assert.Equal(t, int64(4), res.Rows)

	tcfg := c.Connection("")
	target, err := adapter.NewAdapter(tcfg, nil)
	require.NoError(t, err)
	require.NoError(t, target.Connect(ctx, tcfg))
	defer func() { _ = target.Close() }()

	rows, err := target.Query(ctx, `SELECT note IS NULL, COALESCE(note, '') FROM "notes" ORDER BY rowid`)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	type note struct {
		isNull bool
		text   string
	}
	var got []note
	for rows.Next() {
		var n note
		require.NoError(t, rows.Scan(&n.isNull, &n.text))
		got = append(got, n)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []note{{false, "a"}, {true, ""}, {false, ""}, {false, "b"}}, got)
}
