package container

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/datarade/internal/state"
	"github.com/leapstack-labs/datarade/pkg/core"
)

// Store keeps registrations in the state database.
type Store struct {
	db     *state.SQLiteStore
	logger *slog.Logger
}

// NewStore creates a store over an opened state database.
func NewStore(db *state.SQLiteStore, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{db: db, logger: logger}
}

// Session opens a session. Reads go straight to the database; registrations
// are written in one transaction at Commit.
func (s *Store) Session(_ context.Context) (Session, error) {
	if s.db.DB() == nil {
		return nil, state.ErrNotOpen
	}
	return &storeSession{store: s}, nil
}

// List returns the registered containers ordered by id.
func (s *Store) List(ctx context.Context) ([]core.ContainerSpec, error) {
	recs, err := s.db.ListContainers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.ContainerSpec, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Spec)
	}
	return out, nil
}

type storeSession struct {
	store *Store
	pending
}

func (s *storeSession) Register(_ context.Context, spec core.ContainerSpec) (*core.DatasetContainer, error) {
	if err := Validate(spec); err != nil {
		return nil, err
	}
	c := register(spec)
	s.add(c)
	return c, nil
}

func (s *storeSession) Get(ctx context.Context, id string) (*core.DatasetContainer, error) {
	if c, ok := s.get(id); ok {
		return c, nil
	}
	rec, err := state.LoadContainer(ctx, s.store.db.DB(), id)
	if err != nil {
		return nil, err
	}
	c := core.NewDatasetContainer(rec.Spec)
	s.touch(c)
	return c, nil
}

func (s *storeSession) Seen() []core.Aggregate { return s.seen }

func (s *storeSession) Commit(ctx context.Context) (err error) {
	specs := s.specs()
	if len(specs) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now()
	for _, spec := range specs {
		if err := state.SaveContainer(ctx, tx, spec, now); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit registrations: %w", err)
	}
	for _, spec := range specs {
		s.store.logger.Debug("container registered",
			slog.String("id", spec.ID),
			slog.String("driver", spec.Database.Driver))
	}
	s.reset()
	return nil
}

func (s *storeSession) Rollback(_ context.Context) error {
	s.reset()
	return nil
}
