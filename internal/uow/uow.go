// Package uow implements the Unit of Work used by every service operation.
//
// A Unit of Work opens one repository session, runs the caller's work in it,
// and on success commits the session, drains the events buffered by every
// aggregate the scope touched and forwards them to the message bus. On error
// or panic the session is rolled back and no event leaves the scope.
package uow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/datarade/pkg/core"
)

// Session is a repository session scoped to one unit of work.
type Session interface {
	// Seen returns the aggregates loaded or added during the session, in
	// the order the repository first saw them.
	Seen() []core.Aggregate
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Dispatcher receives the drained events.
type Dispatcher interface {
	Dispatch(ctx context.Context, msgs ...core.Message) error
}

// Opener opens a new repository session.
type Opener[S Session] func(ctx context.Context) (S, error)

// UnitOfWork opens scopes over sessions of type S.
type UnitOfWork[S Session] struct {
	open   Opener[S]
	bus    Dispatcher
	logger *slog.Logger
}

// New creates a unit of work. bus may be nil, in which case drained events
// are discarded.
func New[S Session](open Opener[S], bus Dispatcher, logger *slog.Logger) *UnitOfWork[S] {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &UnitOfWork[S]{open: open, bus: bus, logger: logger}
}

// Scope is handed to the work function.
type Scope[S Session] struct {
	Repo    S
	tracked []core.Aggregate
}

// Track adds aggregates that are not owned by Repo but whose events belong
// to this scope. Their events are drained after those of Repo.Seen().
func (s *Scope[S]) Track(aggs ...core.Aggregate) {
	s.tracked = append(s.tracked, aggs...)
}

// Run executes fn inside a new scope.
func (u *UnitOfWork[S]) Run(ctx context.Context, fn func(ctx context.Context, scope *Scope[S]) error) (err error) {
	repo, err := u.open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	scope := &Scope[S]{Repo: repo}

	committed := false
	defer func() {
		if committed {
			return
		}
		if r := recover(); r != nil {
			u.rollback(ctx, repo)
			panic(r)
		}
		if rbErr := u.rollback(ctx, repo); rbErr != nil {
			err = errors.Join(err, rbErr)
		}
	}()

	if err := fn(ctx, scope); err != nil {
		return err
	}

	if err := repo.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	committed = true

	events := collect(repo.Seen(), scope.tracked)
	if len(events) == 0 || u.bus == nil {
		return nil
	}
	u.logger.Debug("dispatching events", slog.Int("count", len(events)))
	return u.bus.Dispatch(ctx, events...)
}

func (u *UnitOfWork[S]) rollback(ctx context.Context, repo S) error {
	if err := repo.Rollback(ctx); err != nil {
		u.logger.Warn("rollback failed", slog.String("error", err.Error()))
		return fmt.Errorf("failed to roll back: %w", err)
	}
	return nil
}

// collect drains every aggregate once, in the given order.
func collect(groups ...[]core.Aggregate) []core.Message {
	seen := make(map[core.Aggregate]struct{})
	var msgs []core.Message
	for _, group := range groups {
		for _, agg := range group {
			if _, dup := seen[agg]; dup {
				continue
			}
			seen[agg] = struct{}{}
			for _, e := range agg.PullEvents() {
				msgs = append(msgs, e)
			}
		}
	}
	return msgs
}
