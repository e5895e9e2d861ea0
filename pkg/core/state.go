package core

import (
	"context"
	"time"
)

// RefreshRun records one completed dataset refresh.
type RefreshRun struct {
	ID          string
	DatasetName string
	ContainerID string
	Table       string
	Rows        int64
	StartedAt   time.Time
	CompletedAt time.Time
}

// Duration returns how long the refresh took.
func (r *RefreshRun) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Store defines the refresh history operations of the state database.
type Store interface {
	Close() error
	RecordRefresh(ctx context.Context, run *RefreshRun) error
	ListRefreshes(ctx context.Context, limit int) ([]*RefreshRun, error)
}
