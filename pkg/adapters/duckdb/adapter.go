// Package duckdb provides a DuckDB database adapter for datarade.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/datarade/pkg/adapter"
	"github.com/leapstack-labs/datarade/pkg/core"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

var columnTypes = adapter.TypeMap{
	core.FieldBoolean:  "BOOLEAN",
	core.FieldDate:     "DATE",
	core.FieldDateTime: "TIMESTAMP",
	core.FieldFloat:    "DOUBLE",
	core.FieldInteger:  "INTEGER",
	core.FieldNumeric:  "DECIMAL(18,2)",
	core.FieldString:   "VARCHAR",
	core.FieldText:     "VARCHAR",
	core.FieldTime:     "TIME",
}

// Adapter implements the core.Adapter interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// DialectName returns the SQL dialect for this adapter.
func (a *Adapter) DialectName() string {
	return "duckdb"
}

// Connect establishes a connection to DuckDB.
// Use ":memory:" or an empty path for an in-memory database. Options are
// applied as session settings and a configured schema is created when missing.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	a.Logger.Debug("connecting to duckdb", slog.String("path", path))

	db, err := sql.Open("duckdb", dsnPath(path))
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.DB = db
	a.Cfg = cfg

	if err := a.applySettings(ctx, cfg.Options); err != nil {
		_ = a.Close()
		return err
	}

	if cfg.Schema != "" {
		if err := a.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+a.QuoteIdent(cfg.Schema)); err != nil {
			_ = a.Close()
			return fmt.Errorf("failed to create schema %s: %w", cfg.Schema, err)
		}
	}

	return nil
}

func dsnPath(path string) string {
	if path == ":memory:" {
		return ""
	}
	return path
}

func (a *Adapter) applySettings(ctx context.Context, settings map[string]string) error {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		stmt := fmt.Sprintf("SET %s = %s", k, quoteLiteral(settings[k]))
		if err := a.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply setting %s: %w", k, err)
		}
		a.Logger.Debug("applied duckdb setting", slog.String("name", k))
	}
	return nil
}

// ColumnType maps a field type to a DuckDB column type.
func (a *Adapter) ColumnType(t core.FieldType) (string, error) {
	return columnTypes.Lookup(t)
}

// QuoteIdent quotes an identifier.
func (a *Adapter) QuoteIdent(name string) string {
	return adapter.QuoteIdent(name)
}

// QuoteTable renders schema.table. The database is the file that was opened.
func (a *Adapter) QuoteTable(ref core.TableRef) string {
	return adapter.QuoteQualified(ref.Schema, ref.Name)
}

// copyOptions matches the staging file format of adapter.WriteRowsCSV.
var copyOptions = fmt.Sprintf("(FORMAT csv, HEADER false, NULLSTR '%s')", adapter.NullMarker)

// ExportCSV writes the query result to filePath with COPY TO.
func (a *Adapter) ExportCSV(ctx context.Context, query, filePath string) (int64, error) {
	if a.DB == nil {
		return 0, adapter.ErrNotConnected
	}
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to get absolute path: %w", err)
	}

	stmt := fmt.Sprintf("COPY (%s) TO %s %s",
		strings.TrimRight(strings.TrimSpace(query), "; \n\t"), quoteLiteral(absPath), copyOptions)
	res, err := a.DB.ExecContext(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("failed to export query: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ImportCSV loads a headerless CSV file into ref with COPY FROM.
func (a *Adapter) ImportCSV(ctx context.Context, ref core.TableRef, columns []string, filePath string) (int64, error) {
	if a.DB == nil {
		return 0, adapter.ErrNotConnected
	}
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to get absolute path: %w", err)
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = a.QuoteIdent(c)
	}
	stmt := fmt.Sprintf("COPY %s (%s) FROM %s %s",
		a.QuoteTable(ref), strings.Join(quoted, ", "), quoteLiteral(absPath), copyOptions)
	res, err := a.DB.ExecContext(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("failed to load CSV into %s: %w", ref, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// SwapTable replaces target with staged in one transaction.
func (a *Adapter) SwapTable(ctx context.Context, staged, target core.TableRef) error {
	return a.SwapTableCommon(ctx, a.QuoteTable(staged), a.QuoteTable(target), a.QuoteIdent(target.Name))
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

var (
	_ core.Adapter      = (*Adapter)(nil)
	_ core.TableSwapper = (*Adapter)(nil)
)
