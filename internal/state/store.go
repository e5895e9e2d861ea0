// Package state provides the datarade state database using SQLite.
// It persists registered dataset containers and the refresh history.
package state

import (
	"context"
	"database/sql"
	"time"

	"github.com/leapstack-labs/datarade/pkg/core"
)

// Store is an alias for core.Store.
type Store = core.Store

// DBTX is satisfied by *sql.DB and *sql.Tx so container rows can be written
// inside a caller's transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ContainerRecord is the persisted form of a registered container.
type ContainerRecord struct {
	Spec         core.ContainerSpec
	RegisteredAt time.Time
}
