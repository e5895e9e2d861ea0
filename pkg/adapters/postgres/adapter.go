// Package postgres provides a PostgreSQL database adapter for datarade.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/leapstack-labs/datarade/pkg/adapter"
	"github.com/leapstack-labs/datarade/pkg/core"
)

// columnTypes follows the numeric precision datasets are published with.
var columnTypes = adapter.TypeMap{
	core.FieldBoolean:  "BOOLEAN",
	core.FieldDate:     "DATE",
	core.FieldDateTime: "TIMESTAMP",
	core.FieldFloat:    "DOUBLE PRECISION",
	core.FieldInteger:  "INTEGER",
	core.FieldNumeric:  "NUMERIC(18,2)",
	core.FieldString:   "VARCHAR",
	core.FieldText:     "TEXT",
	core.FieldTime:     "TIME",
}

// Adapter implements the core.Adapter interface for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
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
	return "postgres"
}

// Connect establishes a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	dsn := buildPostgresDSN(cfg)

	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// buildPostgresDSN constructs a PostgreSQL connection string.
func buildPostgresDSN(cfg adapter.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, dsnValue(cfg.Database), sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", dsnValue(cfg.Username))
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", dsnValue(cfg.Password))
	}

	return dsn
}

// dsnValue single-quotes values containing spaces or quotes.
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// ColumnType maps a field type to a PostgreSQL column type.
func (a *Adapter) ColumnType(t core.FieldType) (string, error) {
	return columnTypes.Lookup(t)
}

// QuoteIdent quotes an identifier.
func (a *Adapter) QuoteIdent(name string) string {
	return adapter.QuoteIdent(name)
}

// QuoteTable renders schema.table. The database is the connection itself.
func (a *Adapter) QuoteTable(ref core.TableRef) string {
	return adapter.QuoteQualified(ref.Schema, ref.Name)
}

// copyOptions matches the staging file format of adapter.WriteRowsCSV.
var copyOptions = fmt.Sprintf("(FORMAT csv, NULL '%s')", adapter.NullMarker)

// ExportCSV streams the query result into filePath using COPY TO STDOUT.
func (a *Adapter) ExportCSV(ctx context.Context, query, filePath string) (int64, error) {
	if a.DB == nil {
		return 0, adapter.ErrNotConnected
	}

	file, err := os.Create(filePath) //nolint:gosec // staging path is built by the pipeline
	if err != nil {
		return 0, fmt.Errorf("failed to create export file: %w", err)
	}
	defer func() { _ = file.Close() }()

	copySQL := fmt.Sprintf("COPY (%s) TO STDOUT WITH %s", trimStatement(query), copyOptions)

	var rows int64
	err = a.withPgConn(ctx, func(conn *stdlib.Conn) error {
		tag, err := conn.Conn().PgConn().CopyTo(ctx, file, copySQL)
		if err != nil {
			return err
		}
		rows = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to export query: %w", err)
	}
	if err := file.Sync(); err != nil {
		return 0, fmt.Errorf("failed to flush export file: %w", err)
	}
	return rows, nil
}

// ImportCSV loads a headerless CSV file into ref using COPY FROM STDIN.
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
	for i, c := range columns {
		quoted[i] = a.QuoteIdent(c)
	}
	copySQL := fmt.Sprintf("COPY %s (%s) FROM STDIN WITH %s",
		a.QuoteTable(ref), strings.Join(quoted, ", "), copyOptions)

	var rows int64
	err = a.withPgConn(ctx, func(conn *stdlib.Conn) error {
		tag, err := conn.Conn().PgConn().CopyFrom(ctx, file, copySQL)
		if err != nil {
			return err
		}
		rows = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to copy data into %s: %w", ref, err)
	}
	return rows, nil
}

// SwapTable replaces target with staged in one transaction.
func (a *Adapter) SwapTable(ctx context.Context, staged, target core.TableRef) error {
	return a.SwapTableCommon(ctx, a.QuoteTable(staged), a.QuoteTable(target), a.QuoteIdent(target.Name))
}

// withPgConn runs fn on the raw pgx connection for COPY support.
func (a *Adapter) withPgConn(ctx context.Context, fn func(*stdlib.Conn) error) error {
	conn, err := a.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	return conn.Raw(func(driverConn any) error {
		pgxConn, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		return fn(pgxConn)
	})
}

// trimStatement drops trailing semicolons so a definition can be wrapped.
func trimStatement(query string) string {
	return strings.TrimRight(strings.TrimSpace(query), "; \n\t")
}

var (
	_ core.Adapter      = (*Adapter)(nil)
	_ core.TableSwapper = (*Adapter)(nil)
)
