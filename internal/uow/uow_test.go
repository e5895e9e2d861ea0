package uow

import (
	"context"
	"errors"
	"testing"

	"github.com/leapstack-labs/datarade/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	seen       []core.Aggregate
	committed  bool
	rolledBack bool
	commitErr  error
}

func (s *fakeSession) Seen() []core.Aggregate { return s.seen }

func (s *fakeSession) Commit(context.Context) error {
	if s.commitErr != nil {
		return s.commitErr
	}
	s.committed = true
	return nil
}

func (s *fakeSession) Rollback(context.Context) error {
	s.rolledBack = true
	return nil
}

type recordingBus struct {
	msgs []core.Message
}

func (b *recordingBus) Dispatch(_ context.Context, msgs ...core.Message) error {
	b.msgs = append(b.msgs, msgs...)
	return nil
}

func names(msgs []core.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		switch e := m.(type) {
		case core.DatasetAdded:
			out[i] = "added:" + e.Name
		case core.DatasetRequested:
			out[i] = "requested:" + e.Name
		default:
			out[i] = m.MessageName()
		}
	}
	return out
}

func newUoW(s *fakeSession, b Dispatcher) *UnitOfWork[*fakeSession] {
	return New(func(context.Context) (*fakeSession, error) { return s, nil }, b, nil)
}

func TestRun_CommitsAndDrainsInOrder(t *testing.T) {
	a := core.NewDataset(core.DatasetSpec{Name: "a"})
	b := core.NewDataset(core.DatasetSpec{Name: "b"})
	tracked := core.NewDataset(core.DatasetSpec{Name: "t"})

	session := &fakeSession{}
	bus := &recordingBus{}

	err := newUoW(session, bus).Run(context.Background(), func(_ context.Context, s *Scope[*fakeSession]) error {
		a.Record(core.DatasetAdded{Name: "a"})
		b.Record(core.DatasetAdded{Name: "b"})
		a.Record(core.DatasetRequested{Name: "a"})
		tracked.Record(core.DatasetRequested{Name: "t"})
		s.Repo.seen = append(s.Repo.seen, a, b)
		s.Track(tracked, a)
		return nil
	})
	require.NoError(t, err)

	assert.True(t, session.committed)
	assert.False(t, session.rolledBack)
	assert.Equal(t, []string{"added:a", "requested:a", "added:b", "requested:t"}, names(bus.msgs))

	assert.Empty(t, a.Events(), "events are drained exactly once")
	assert.Empty(t, tracked.Events())
}

func TestRun_ErrorRollsBackWithoutDrain(t *testing.T) {
	a := core.NewDataset(core.DatasetSpec{Name: "a"})
	session := &fakeSession{seen: []core.Aggregate{a}}
	bus := &recordingBus{}
	wantErr := &core.NotFoundError{Kind: "dataset", Key: "missing"}

	err := newUoW(session, bus).Run(context.Background(), func(context.Context, *Scope[*fakeSession]) error {
		a.Record(core.DatasetAdded{Name: "a"})
		return wantErr
	})

	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.True(t, session.rolledBack)
	assert.False(t, session.committed)
	assert.Empty(t, bus.msgs)
}

func TestRun_PanicRollsBack(t *testing.T) {
	session := &fakeSession{}
	bus := &recordingBus{}

	assert.PanicsWithValue(t, "boom", func() {
		_ = newUoW(session, bus).Run(context.Background(), func(context.Context, *Scope[*fakeSession]) error {
			panic("boom")
		})
	})
	assert.True(t, session.rolledBack)
	assert.Empty(t, bus.msgs)
}

func TestRun_CommitFailure(t *testing.T) {
	a := core.NewDataset(core.DatasetSpec{Name: "a"})
	a.Record(core.DatasetAdded{Name: "a"})
	session := &fakeSession{seen: []core.Aggregate{a}, commitErr: errors.New("disk full")}
	bus := &recordingBus{}

	err := newUoW(session, bus).Run(context.Background(), func(context.Context, *Scope[*fakeSession]) error {
		return nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.True(t, session.rolledBack)
	assert.Empty(t, bus.msgs)
}

func TestRun_OpenFailure(t *testing.T) {
	u := New(func(context.Context) (*fakeSession, error) {
		return nil, errors.New("no state db")
	}, nil, nil)

	called := false
	err := u.Run(context.Background(), func(context.Context, *Scope[*fakeSession]) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
}

func TestRun_NilBus(t *testing.T) {
	a := core.NewDataset(core.DatasetSpec{Name: "a"})
	session := &fakeSession{seen: []core.Aggregate{a}}

	err := newUoW(session, nil).Run(context.Background(), func(context.Context, *Scope[*fakeSession]) error {
		a.Record(core.DatasetAdded{Name: "a"})
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, a.Events())
}
