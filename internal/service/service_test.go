package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/leapstack-labs/datarade/internal/catalog"
	"github.com/leapstack-labs/datarade/internal/container"
	"github.com/leapstack-labs/datarade/internal/state"
	"github.com/leapstack-labs/datarade/internal/testutil"
	"github.com/leapstack-labs/datarade/internal/transfer"
	"github.com/leapstack-labs/datarade/pkg/adapter"
	"github.com/leapstack-labs/datarade/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/leapstack-labs/datarade/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/datarade/pkg/adapters/sqlite"
)

const numbersConfig = `name: numbers
description: Five integers
fields:
  - name: n
    type: Integer
database:
  driver: duckdb
  host: ""
  database_name: ":memory:"
`

const listOfTablesConfig = `name: list_of_tables
fields:
  - name: schema_name
    type: String
  - name: table_name
    type: String
database:
  driver: sqlite
  host: ""
  database_name: source.db
`

// recorder collects every event delivered by the bus.
type recorder struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *recorder) handle(_ context.Context, e core.Event) ([]core.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil, nil
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.MessageName()
	}
	return out
}

type fixture struct {
	svc   *Service
	store *catalog.MemoryStore
	rec   *recorder
}

func newFixture(t *testing.T, history core.Store) *fixture {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	store := catalog.NewMemoryStore(map[string]string{
		"catalog/numbers/config.yaml":           numbersConfig,
		"catalog/numbers/definition.sql":        "SELECT i AS n FROM range(5) t(i)",
		"catalog/list_of_tables/config.yaml":    listOfTablesConfig,
		"catalog/list_of_tables/definition.sql": "SELECT schema_name, table_name FROM catalog_tables",
	})
	svc, err := New(Config{
		Catalog:    catalog.NewRepository(store, "", logger),
		Containers: container.NewRegistry(),
		Pipeline:   transfer.New(transfer.Config{StagingDir: t.TempDir(), Logger: logger}),
		History:    history,
		Logger:     logger,
	})
	require.NoError(t, err)

	rec := &recorder{}
	svc.SubscribeAll(rec.handle)
	return &fixture{svc: svc, store: store, rec: rec}
}

func memoryContainer(id string) core.ContainerSpec {
	return core.ContainerSpec{ID: id, Database: core.Database{Driver: "duckdb", DatabaseName: ":memory:"}}
}

func TestNew_RequiresRepositories(t *testing.T) {
	_, err := New(Config{Containers: container.NewRegistry()})
	assert.Error(t, err)
	_, err = New(Config{Catalog: catalog.NewRepository(catalog.NewMemoryStore(nil), "", nil)})
	assert.Error(t, err)
}

func TestService_GetDataset(t *testing.T) {
	f := newFixture(t, nil)

	ds, err := f.svc.GetDataset(context.Background(), "numbers")
	require.NoError(t, err)
	assert.Equal(t, "Five integers", ds.Description())
	assert.Equal(t, []string{"n"}, ds.ColumnNames())

	require.Equal(t, []string{core.EventDatasetRequested}, f.rec.names())
	req := f.rec.events[0].(core.DatasetRequested)
	assert.Equal(t, "numbers", req.Name)
	assert.Equal(t, "memory://catalog", req.RepositoryURL)
	assert.Equal(t, "catalog", req.CatalogPath)
	assert.Empty(t, ds.Events(), "events are drained exactly once")
}

func TestService_GetDatasetMissing(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.GetDataset(context.Background(), "absent")
	var nf *core.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "dataset", nf.Kind)
	assert.Equal(t, "absent", nf.Key)
	assert.Empty(t, f.rec.names())
}

func TestService_AddDatasetOrdering(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	names := []string{"alpha", "beta", "gamma"}
	for _, name := range names {
		_, err := f.svc.AddDataset(ctx, core.DatasetSpec{
			Name:       name,
			Definition: "select 1 as x",
			Fields:     []core.Field{{Name: "x", Type: core.FieldInteger}},
		})
		require.NoError(t, err)
	}

	require.Len(t, f.rec.events, len(names))
	for i, e := range f.rec.events {
		added, ok := e.(core.DatasetAdded)
		require.True(t, ok)
		assert.Equal(t, names[i], added.Name)
	}
	assert.Equal(t, len(names), f.store.Puts())
}

func TestService_AddDatasetRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	spec := core.DatasetSpec{
		Name:        "sales",
		Description: "Daily sales",
		Definition:  "select region, amount from sales\n",
		Fields: []core.Field{
			{Name: "region", Type: core.FieldString, Description: "Sales region"},
			{Name: "amount", Type: core.FieldNumeric},
		},
		Database: &core.Database{Driver: "postgres", Host: "db", Port: 5432, DatabaseName: "shop", SchemaName: "public"},
		User:     &core.User{Username: "reader"},
	}

	_, err := f.svc.AddDataset(ctx, spec)
	require.NoError(t, err)

	got, err := f.svc.GetDataset(ctx, "sales")
	require.NoError(t, err)
	assert.Equal(t, spec, got.Spec())
	assert.Equal(t, []string{core.EventDatasetAdded, core.EventDatasetRequested}, f.rec.names())
}

func TestService_AddDatasetInvalid(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.AddDataset(context.Background(), core.DatasetSpec{Name: "nodef"})
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Zero(t, f.store.Puts())
	assert.Empty(t, f.rec.names())
}

func TestService_RegisterDatasetContainer(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.RegisterDatasetContainer(ctx, memoryContainer("scratch"))
	require.NoError(t, err)
	require.Equal(t, []string{core.EventDatasetContainerRegistered}, f.rec.names())

	c, err := f.svc.GetDatasetContainer(ctx, "scratch")
	require.NoError(t, err)
	assert.Equal(t, "duckdb", c.Database().Driver)

	_, err = f.svc.GetDatasetContainer(ctx, "unknown")
	assert.ErrorIs(t, err, core.ErrNotFound)

	list, err := f.svc.ListContainers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "scratch", list[0].ID)
}

func TestService_RefreshDataset(t *testing.T) {
	db := state.NewSQLiteStore(nil)
	require.NoError(t, db.Open(filepath.Join(t.TempDir(), "state.db")))
	defer func() { _ = db.Close() }()

	f := newFixture(t, db)
	ctx := context.Background()
	_, err := f.svc.RegisterDatasetContainer(ctx, memoryContainer("scratch"))
	require.NoError(t, err)

	res, err := f.svc.RefreshDataset(ctx, core.RefreshDataset{DatasetName: "numbers", ContainerID: "scratch"})
	require.NoError(t, err)
	assert.Equal(t, "numbers", res.FullName)
	assert.Equal(t, int64(5), res.Rows)

	assert.Equal(t, []string{
		core.EventDatasetContainerRegistered,
		core.EventDatasetRequested,
		core.EventDatasetRefreshed,
	}, f.rec.names())
	refreshed := f.rec.events[2].(core.DatasetRefreshed)
	assert.Equal(t, "scratch", refreshed.ContainerID)
	assert.Equal(t, int64(5), refreshed.Rows)

	runs, err := f.svc.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "numbers", runs[0].DatasetName)
	assert.Equal(t, "numbers", runs[0].Table)
	assert.Equal(t, int64(5), runs[0].Rows)
	assert.Empty(t, f.svc.Bus().Failures())
}

func TestService_RefreshDatasetFailures(t *testing.T) {
	tests := []struct {
		name    string
		cmd     core.RefreshDataset
		wantErr error
	}{
		{"unknown container", core.RefreshDataset{DatasetName: "numbers", ContainerID: "nope"}, core.ErrNotFound},
		{"unknown dataset", core.RefreshDataset{DatasetName: "nope", ContainerID: "scratch"}, core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			ctx := context.Background()
			_, err := f.svc.RegisterDatasetContainer(ctx, memoryContainer("scratch"))
			require.NoError(t, err)

			_, err = f.svc.RefreshDataset(ctx, tt.cmd)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, []string{core.EventDatasetContainerRegistered}, f.rec.names(), "failed refreshes publish nothing")
		})
	}
}

type failingHistory struct{}

func (failingHistory) Close() error { return nil }
func (failingHistory) RecordRefresh(context.Context, *core.RefreshRun) error {
	return errors.New("disk full")
}
func (failingHistory) ListRefreshes(context.Context, int) ([]*core.RefreshRun, error) {
	return nil, nil
}

func TestService_HistoryFailureIsolated(t *testing.T) {
	f := newFixture(t, failingHistory{})
	ctx := context.Background()
	_, err := f.svc.RegisterDatasetContainer(ctx, memoryContainer("scratch"))
	require.NoError(t, err)

	_, err = f.svc.RefreshDataset(ctx, core.RefreshDataset{DatasetName: "numbers", ContainerID: "scratch"})
	require.NoError(t, err)

	failures := f.svc.Bus().Failures()
	require.Len(t, failures, 1)
	assert.ErrorContains(t, failures[0].Err, "disk full")
	assert.Contains(t, f.rec.names(), core.EventDatasetRefreshed, "later handlers still run")
}

func TestService_Commands(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.svc.Handle(ctx, core.RegisterDatasetContainer{Container: memoryContainer("scratch")}))
	require.NoError(t, f.svc.Handle(ctx, core.RefreshDataset{DatasetName: "numbers", ContainerID: "scratch", Table: "n5"}))

	err := f.svc.Handle(ctx, core.RegisterDatasetContainer{Container: core.ContainerSpec{ID: "bad"}})
	assert.ErrorIs(t, err, core.ErrValidation)

	err = f.svc.Handle(ctx, core.AddDataset{Dataset: core.DatasetSpec{Name: "x"}})
	assert.ErrorIs(t, err, core.ErrValidation)

	assert.Equal(t, []string{
		core.EventDatasetContainerRegistered,
		core.EventDatasetRequested,
		core.EventDatasetRefreshed,
	}, f.rec.names())
}

func TestService_RegisterContainers(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	err := f.svc.RegisterContainers(ctx, []core.ContainerSpec{memoryContainer("a"), {ID: "b"}, memoryContainer("c")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "container b")

	list, err := f.svc.ListContainers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].ID)
}

func TestService_ListOfTablesScenario(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	t.Chdir(t.TempDir())
	ctx := context.Background()

	srcCfg := core.AdapterConfig{Type: "sqlite", Path: "source.db"}
	src, err := adapter.NewAdapter(srcCfg, nil)
	require.NoError(t, err)
	require.NoError(t, src.Connect(ctx, srcCfg))
	require.NoError(t, src.Exec(ctx, `CREATE TABLE catalog_tables (schema_name TEXT, table_name TEXT)`))
	require.NoError(t, src.Exec(ctx, `INSERT INTO catalog_tables VALUES ('main','a'), ('main','b'), ('audit','c'), ('audit','d')`))
	require.NoError(t, src.Close())

	f := newFixture(t, nil)
	_, err = f.svc.RegisterDatasetContainer(ctx, core.ContainerSpec{
		ID:       "sandbox",
		Database: core.Database{Driver: "duckdb", DatabaseName: "SANDBOX", SchemaName: "pytest"},
	})
	require.NoError(t, err)

	for range 2 {
		res, err := f.svc.RefreshDataset(ctx, core.RefreshDataset{DatasetName: "list_of_tables", ContainerID: "sandbox"})
		require.NoError(t, err)
		assert.Equal(t, "SANDBOX.pytest.list_of_tables", res.FullName)
		assert.Equal(t, int64(4), res.Rows)
	}
}
