package api

import (
	"time"

	"github.com/leapstack-labs/datarade/internal/transfer"
	"github.com/leapstack-labs/datarade/pkg/core"
)

// FieldView is the JSON form of a field.
type FieldView struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// DatabaseView is the JSON form of a database endpoint.
type DatabaseView struct {
	Driver       string `json:"driver"`
	Host         string `json:"host"`
	Port         int    `json:"port,omitempty"`
	DatabaseName string `json:"database_name"`
	SchemaName   string `json:"schema_name,omitempty"`
}

// DatasetView is the JSON form of a dataset.
type DatasetView struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Definition  string        `json:"definition"`
	Fields      []FieldView   `json:"fields"`
	Database    *DatabaseView `json:"database,omitempty"`
	Username    string        `json:"username,omitempty"`
}

// ContainerView is the JSON form of a dataset container.
type ContainerView struct {
	ID       string       `json:"id"`
	Database DatabaseView `json:"database"`
	Schema   string       `json:"schema,omitempty"`
	Username string       `json:"username,omitempty"`
}

// RefreshView is the JSON form of a completed refresh.
type RefreshView struct {
	Dataset    string    `json:"dataset"`
	Container  string    `json:"container"`
	Table      string    `json:"table"`
	Rows       int64     `json:"rows"`
	Exported   int64     `json:"exported"`
	Swapped    bool      `json:"swapped"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
}

// RunView is the JSON form of a history entry.
type RunView struct {
	ID          string    `json:"id"`
	Dataset     string    `json:"dataset"`
	Container   string    `json:"container"`
	Table       string    `json:"table"`
	Rows        int64     `json:"rows"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// NewDatasetView converts a dataset.
func NewDatasetView(ds *core.Dataset) DatasetView {
	v := DatasetView{
		Name:        ds.Name(),
		Description: ds.Description(),
		Definition:  ds.Definition(),
		Fields:      make([]FieldView, 0, len(ds.Fields())),
	}
	for _, f := range ds.Fields() {
		v.Fields = append(v.Fields, FieldView{Name: f.Name, Type: string(f.Type), Description: f.Description})
	}
	if db := ds.Database(); db != nil {
		dv := newDatabaseView(*db)
		v.Database = &dv
	}
	if u := ds.User(); u != nil {
		v.Username = u.Username
	}
	return v
}

// Spec converts the view back into a dataset spec.
func (v DatasetView) Spec() core.DatasetSpec {
	spec := core.DatasetSpec{
		Name:        v.Name,
		Description: v.Description,
		Definition:  v.Definition,
		Fields:      make([]core.Field, 0, len(v.Fields)),
	}
	for _, f := range v.Fields {
		spec.Fields = append(spec.Fields, core.Field{Name: f.Name, Type: core.FieldType(f.Type), Description: f.Description})
	}
	if v.Database != nil {
		db := v.Database.database()
		spec.Database = &db
	}
	if v.Username != "" {
		spec.User = &core.User{Username: v.Username}
	}
	return spec
}

func newDatabaseView(db core.Database) DatabaseView {
	return DatabaseView{
		Driver:       db.Driver,
		Host:         db.Host,
		Port:         db.Port,
		DatabaseName: db.DatabaseName,
		SchemaName:   db.SchemaName,
	}
}

func (v DatabaseView) database() core.Database {
	return core.Database{
		Driver:       v.Driver,
		Host:         v.Host,
		Port:         v.Port,
		DatabaseName: v.DatabaseName,
		SchemaName:   v.SchemaName,
	}
}

// NewContainerView converts a container spec.
func NewContainerView(spec core.ContainerSpec) ContainerView {
	v := ContainerView{ID: spec.ID, Database: newDatabaseView(spec.Database), Schema: spec.Schema}
	if spec.User != nil {
		v.Username = spec.User.Username
	}
	return v
}

// Spec converts the view back into a container spec.
func (v ContainerView) Spec() core.ContainerSpec {
	spec := core.ContainerSpec{ID: v.ID, Database: v.Database.database(), Schema: v.Schema}
	if v.Username != "" {
		spec.User = &core.User{Username: v.Username}
	}
	return spec
}

// NewRefreshView converts a pipeline result.
func NewRefreshView(dataset, containerID string, res *transfer.Result) RefreshView {
	return RefreshView{
		Dataset:    dataset,
		Container:  containerID,
		Table:      res.FullName,
		Rows:       res.Rows,
		Exported:   res.Exported,
		Swapped:    res.Swapped,
		StartedAt:  res.StartedAt,
		DurationMS: res.Duration.Milliseconds(),
	}
}

// NewRunView converts a history entry.
func NewRunView(run *core.RefreshRun) RunView {
	return RunView{
		ID:          run.ID,
		Dataset:     run.DatasetName,
		Container:   run.ContainerID,
		Table:       run.Table,
		Rows:        run.Rows,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
	}
}

// EventView is the JSON form of a domain event on the event stream.
type EventView struct {
	Event        string    `json:"event"`
	OccurredAt   time.Time `json:"occurred_at"`
	Dataset      string    `json:"dataset,omitempty"`
	Container    string    `json:"container,omitempty"`
	Location     string    `json:"location,omitempty"`
	CatalogPath  string    `json:"catalog_path,omitempty"`
	Driver       string    `json:"driver,omitempty"`
	Host         string    `json:"host,omitempty"`
	DatabaseName string    `json:"database_name,omitempty"`
	Schema       string    `json:"schema,omitempty"`
	Table        string    `json:"table,omitempty"`
	Rows         int64     `json:"rows,omitempty"`
	DurationMS   int64     `json:"duration_ms,omitempty"`
}

// NewEventView converts an event. at is used when the event carries no
// timestamp of its own.
func NewEventView(e core.Event, at time.Time) EventView {
	v := EventView{Event: e.MessageName(), OccurredAt: at}
	var meta core.EventMeta
	switch e := e.(type) {
	case core.DatasetRequested:
		meta = e.EventMeta
		v.Dataset, v.Location, v.CatalogPath = e.Name, e.RepositoryURL, e.CatalogPath
	case core.DatasetAdded:
		meta = e.EventMeta
		v.Dataset, v.Location, v.CatalogPath = e.Name, e.RepositoryURL, e.CatalogPath
	case core.DatasetContainerRegistered:
		meta = e.EventMeta
		v.Container, v.Driver, v.Host = e.ContainerID, e.Driver, e.Host
		v.DatabaseName, v.Schema = e.DatabaseName, e.Schema
	case core.DatasetRefreshed:
		meta = e.EventMeta
		v.Dataset, v.Container, v.Table = e.DatasetName, e.ContainerID, e.Table
		v.Rows, v.DurationMS = e.Rows, e.Duration.Milliseconds()
	}
	if !meta.OccurredAt.IsZero() {
		v.OccurredAt = meta.OccurredAt
	}
	return v
}
