package state

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/datarade/pkg/core"
)

// defaultHistoryLimit caps ListRefreshes when no limit is given.
const defaultHistoryLimit = 50

// RecordRefresh stores a completed refresh. An empty run ID is filled in.
func (s *SQLiteStore) RecordRefresh(ctx context.Context, run *core.RefreshRun) error {
	if s.db == nil {
		return ErrNotOpen
	}
	if run.ID == "" {
		run.ID = generateID()
	}

	s.logger.Debug("recording refresh",
		slog.String("id", run.ID),
		slog.String("dataset", run.DatasetName),
		slog.String("container", run.ContainerID))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO refresh_runs (id, dataset_name, container_id, table_name, row_count, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.DatasetName, run.ContainerID, run.Table, run.Rows,
		formatTime(run.StartedAt), formatTime(run.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record refresh: %w", err)
	}
	return nil
}

// ListRefreshes returns the most recent refreshes, newest first.
func (s *SQLiteStore) ListRefreshes(ctx context.Context, limit int) ([]*core.RefreshRun, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, dataset_name, container_id, table_name, row_count, started_at, completed_at
		 FROM refresh_runs ORDER BY completed_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list refreshes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*core.RefreshRun
	for rows.Next() {
		var (
			run                core.RefreshRun
			started, completed string
		)
		if err := rows.Scan(&run.ID, &run.DatasetName, &run.ContainerID, &run.Table,
			&run.Rows, &started, &completed); err != nil {
			return nil, fmt.Errorf("failed to scan refresh: %w", err)
		}
		if run.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if run.CompletedAt, err = parseTime(completed); err != nil {
			return nil, err
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

var _ core.Store = (*SQLiteStore)(nil)
