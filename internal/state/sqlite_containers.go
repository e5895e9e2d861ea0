package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/datarade/pkg/core"
)

const containerColumns = `id, driver, host, port, database_name, schema_name, target_schema, username, registered_at`

// SaveContainer inserts or replaces a container row. Re-registering an id
// overwrites the previous registration.
func SaveContainer(ctx context.Context, q DBTX, spec core.ContainerSpec, at time.Time) error {
	var username sql.NullString
	if spec.User != nil {
		username = sql.NullString{String: spec.User.Username, Valid: true}
	}
	db := spec.Database
	_, err := q.ExecContext(ctx,
		`INSERT INTO dataset_containers (`+containerColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   driver = excluded.driver,
		   host = excluded.host,
		   port = excluded.port,
		   database_name = excluded.database_name,
		   schema_name = excluded.schema_name,
		   target_schema = excluded.target_schema,
		   username = excluded.username,
		   registered_at = excluded.registered_at`,
		spec.ID, db.Driver, db.Host, db.Port, db.DatabaseName, db.SchemaName,
		spec.Schema, username, formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("failed to save container %s: %w", spec.ID, err)
	}
	return nil
}

// LoadContainer reads a container row. A missing id is a core.NotFoundError.
func LoadContainer(ctx context.Context, q DBTX, id string) (*ContainerRecord, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+containerColumns+` FROM dataset_containers WHERE id = ?`, id)
	rec, err := scanContainer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &core.NotFoundError{Kind: "container", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load container %s: %w", id, err)
	}
	return rec, nil
}

// ListContainers returns every registered container ordered by id.
func (s *SQLiteStore) ListContainers(ctx context.Context) ([]*ContainerRecord, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+containerColumns+` FROM dataset_containers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*ContainerRecord
	for rows.Next() {
		rec, err := scanContainer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan container: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContainer(sc scanner) (*ContainerRecord, error) {
	var (
		rec        ContainerRecord
		username   sql.NullString
		registered string
	)
	db := &rec.Spec.Database
	if err := sc.Scan(&rec.Spec.ID, &db.Driver, &db.Host, &db.Port, &db.DatabaseName,
		&db.SchemaName, &rec.Spec.Schema, &username, &registered); err != nil {
		return nil, err
	}
	if username.Valid {
		rec.Spec.User = &core.User{Username: username.String}
	}
	t, err := parseTime(registered)
	if err != nil {
		return nil, err
	}
	rec.RegisteredAt = t
	return &rec, nil
}
