// Package sqlite provides a SQLite database adapter for datarade backed by
// the pure Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/datarade/pkg/adapter"
	"github.com/leapstack-labs/datarade/pkg/core"

	_ "modernc.org/sqlite" // sqlite driver
)

// insertBatch is the number of rows committed per import transaction.
const insertBatch = 5000

var columnTypes = adapter.TypeMap{
	core.FieldBoolean:  "BOOLEAN",
	core.FieldDate:     "DATE",
	core.FieldDateTime: "DATETIME",
	core.FieldFloat:    "REAL",
	core.FieldInteger:  "INTEGER",
	core.FieldNumeric:  "NUMERIC(18,2)",
	core.FieldString:   "VARCHAR",
	core.FieldText:     "TEXT",
	core.FieldTime:     "TIME",
}

// Adapter implements the core.Adapter interface for SQLite.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new SQLite adapter instance.
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
	return "sqlite"
}

// Connect opens the database file named by cfg.Path, or an in-memory
// database when the path is empty or ":memory:".
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	dsn := buildDSN(cfg.Path)

	a.Logger.Debug("connecting to sqlite", slog.String("path", cfg.Path))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite connection: %w", err)
	}
	// one connection keeps in-memory databases and transactions coherent
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

func buildDSN(path string) string {
	if path == "" || path == ":memory:" {
		return ":memory:"
	}
	return filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// ColumnType maps a field type to a SQLite column type.
func (a *Adapter) ColumnType(t core.FieldType) (string, error) {
	return columnTypes.Lookup(t)
}

// QuoteIdent quotes an identifier.
func (a *Adapter) QuoteIdent(name string) string {
	return adapter.QuoteIdent(name)
}

// QuoteTable renders the bare table name. SQLite has a single schema per
// database file.
func (a *Adapter) QuoteTable(ref core.TableRef) string {
	return adapter.QuoteIdent(ref.Name)
}

// ExportCSV runs query and streams every row into filePath.
func (a *Adapter) ExportCSV(ctx context.Context, query, filePath string) (int64, error) {
	if a.DB == nil {
		return 0, adapter.ErrNotConnected
	}

	file, err := os.Create(filePath) //nolint:gosec // staging path is built by the pipeline
	if err != nil {
		return 0, fmt.Errorf("failed to create export file: %w", err)
	}
	defer func() { _ = file.Close() }()

	rows, err := a.DB.QueryContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to export query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	n, err := adapter.WriteRowsCSV(rows, file)
	if err != nil {
		return n, fmt.Errorf("failed to export query: %w", err)
	}
	return n, file.Sync()
}

// ImportCSV inserts every record of filePath into ref using batched
// prepared statements.
func (a *Adapter) ImportCSV(ctx context.Context, ref core.TableRef, columns []string, filePath string) (int64, error) {
	if a.DB == nil {
		return 0, adapter.ErrNotConnected
	}

	file, err := os.Open(filePath) //nolint:gosec // staging path is built by the pipeline
	if err != nil {
		return 0, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = file.Close() }()

	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = a.QuoteIdent(c)
		marks[i] = "?"
	}
	//nolint:gosec // identifiers are quoted
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		a.QuoteTable(ref), strings.Join(quoted, ", "), strings.Join(marks, ", "))

	b := &batchInserter{ctx: ctx, db: a.DB, sql: insertSQL}
	defer b.abort()

	n, err := adapter.ReadCSV(file, len(columns), b.insert)
	if err != nil {
		return 0, fmt.Errorf("failed to load CSV into %s: %w", ref, err)
	}
	if err := b.flush(); err != nil {
		return 0, fmt.Errorf("failed to load CSV into %s: %w", ref, err)
	}
	return n, nil
}

// SwapTable replaces target with staged in one transaction.
func (a *Adapter) SwapTable(ctx context.Context, staged, target core.TableRef) error {
	return a.SwapTableCommon(ctx, a.QuoteTable(staged), a.QuoteTable(target), a.QuoteIdent(target.Name))
}

// batchInserter commits inserts every insertBatch rows.
type batchInserter struct {
	ctx     context.Context
	db      *sql.DB
	sql     string
	tx      *sql.Tx
	stmt    *sql.Stmt
	pending int
}

func (b *batchInserter) insert(args []any) error {
	if b.tx == nil {
		tx, err := b.db.BeginTx(b.ctx, nil)
		if err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(b.ctx, b.sql)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		b.tx, b.stmt = tx, stmt
	}
	if _, err := b.stmt.ExecContext(b.ctx, args...); err != nil {
		return err
	}
	b.pending++
	if b.pending >= insertBatch {
		return b.flush()
	}
	return nil
}

func (b *batchInserter) flush() error {
	if b.tx == nil {
		return nil
	}
	_ = b.stmt.Close()
	err := b.tx.Commit()
	b.tx, b.stmt, b.pending = nil, nil, 0
	return err
}

func (b *batchInserter) abort() {
	if b.tx != nil {
		_ = b.stmt.Close()
		_ = b.tx.Rollback()
		b.tx, b.stmt = nil, nil
	}
}

var (
	_ core.Adapter      = (*Adapter)(nil)
	_ core.TableSwapper = (*Adapter)(nil)
)
