package core

import (
	"context"
	"database/sql"
	"strings"
)

// Adapter defines the interface that all relational engines must implement.
type Adapter interface {
	// Connect establishes a connection to the database.
	Connect(ctx context.Context, cfg AdapterConfig) error

	// Close closes the database connection.
	Close() error

	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// Query executes a SQL statement that returns rows.
	Query(ctx context.Context, sql string) (*Rows, error)

	// DialectName returns the engine name used for logging and registry lookups.
	DialectName() string

	// ColumnType maps a semantic field type to the engine's native column type.
	ColumnType(t FieldType) (string, error)

	// QuoteTable renders a table reference as the engine expects it in SQL.
	QuoteTable(ref TableRef) string

	// QuoteIdent quotes a single identifier.
	QuoteIdent(name string) string

	// ExportCSV bulk-copies the result of query into a headerless CSV file.
	ExportCSV(ctx context.Context, query, filePath string) (int64, error)

	// ImportCSV bulk-copies a headerless CSV file into an existing table.
	ImportCSV(ctx context.Context, ref TableRef, columns []string, filePath string) (int64, error)
}

// TableSwapper is implemented by engines that can replace a table with a
// freshly loaded one inside a single transaction.
type TableSwapper interface {
	SwapTable(ctx context.Context, staged, target TableRef) error
}

// AdapterConfig holds configuration for connecting to a database.
type AdapterConfig struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schema   string
	Options  map[string]string
}

// Rows wraps sql.Rows to provide a consistent interface.
type Rows struct {
	*sql.Rows
}

// TableRef names a table inside a target store.
type TableRef struct {
	Database string
	Schema   string
	Name     string
}

// String returns database.schema.table when both database and schema are
// known, otherwise the bare table name.
func (r TableRef) String() string {
	if r.Database != "" && r.Schema != "" {
		return strings.Join([]string{r.Database, r.Schema, r.Name}, ".")
	}
	return r.Name
}

// WithName returns a copy of the reference pointing at another table in the
// same database and schema.
func (r TableRef) WithName(name string) TableRef {
	r.Name = name
	return r
}
