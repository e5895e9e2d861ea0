package bus

import (
	"context"
	"errors"
	"testing"

	"github.com/leapstack-labs/datarade/internal/testutil"
	"github.com/leapstack-labs/datarade/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requested(name string) core.Event {
	return core.DatasetRequested{EventMeta: core.NewEventMeta(), Name: name}
}

func TestDispatch_NoHandlers(t *testing.T) {
	b := New(nil)
	require.NoError(t, b.Dispatch(context.Background(),
		requested("a"),
		core.RefreshDataset{DatasetName: "a"},
	))
	assert.Empty(t, b.Failures())
}

func TestDispatch_FIFOWithProducedEvents(t *testing.T) {
	b := New(testutil.NewTestLogger(t))
	var seen []string

	b.Subscribe(core.EventDatasetRequested, func(_ context.Context, e core.Event) ([]core.Event, error) {
		ev := e.(core.DatasetRequested)
		seen = append(seen, "requested:"+ev.Name)
		if ev.Name == "a" {
			return []core.Event{core.DatasetAdded{Name: "a-child"}}, nil
		}
		return nil, nil
	})
	b.Subscribe(core.EventDatasetAdded, func(_ context.Context, e core.Event) ([]core.Event, error) {
		seen = append(seen, "added:"+e.(core.DatasetAdded).Name)
		return nil, nil
	})

	require.NoError(t, b.Dispatch(context.Background(), requested("a"), requested("b")))

	// the produced event goes to the tail, after "b"
	assert.Equal(t, []string{"requested:a", "requested:b", "added:a-child"}, seen)
}

func TestDispatch_HandlersRunInRegistrationOrder(t *testing.T) {
	b := New(nil)
	var order []int
	for i := range 3 {
		b.Subscribe(core.EventDatasetAdded, func(context.Context, core.Event) ([]core.Event, error) {
			order = append(order, i)
			return nil, nil
		})
	}

	require.NoError(t, b.Dispatch(context.Background(), core.DatasetAdded{Name: "x"}))
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestDispatch_EventHandlerFailuresAreIsolated(t *testing.T) {
	tests := []struct {
		name    string
		handler EventHandler
		errMsg  string
	}{
		{
			name: "error",
			handler: func(context.Context, core.Event) ([]core.Event, error) {
				return nil, errors.New("observer down")
			},
			errMsg: "observer down",
		},
		{
			name: "panic",
			handler: func(context.Context, core.Event) ([]core.Event, error) {
				panic("boom")
			},
			errMsg: "handler panic: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(testutil.NewTestLogger(t))
			delivered := 0
			b.Subscribe(core.EventDatasetAdded, tt.handler)
			b.Subscribe(core.EventDatasetAdded, func(context.Context, core.Event) ([]core.Event, error) {
				delivered++
				return nil, nil
			})

			err := b.Dispatch(context.Background(), core.DatasetAdded{Name: "1"}, core.DatasetAdded{Name: "2"})
			require.NoError(t, err)
			assert.Equal(t, 2, delivered, "later handlers and later events still run")

			failures := b.Failures()
			require.Len(t, failures, 2)
			assert.Equal(t, 0, failures[0].Handler)
			assert.Contains(t, failures[0].Err.Error(), tt.errMsg)
			assert.Equal(t, "1", failures[0].Event.(core.DatasetAdded).Name)

			assert.ErrorContains(t, b.FailureErr(), tt.errMsg)
		})
	}
}

func TestFailures_KeepsMostRecent(t *testing.T) {
	b := New(nil)
	b.Subscribe(core.EventDatasetAdded, func(_ context.Context, e core.Event) ([]core.Event, error) {
		return nil, errors.New("history unavailable for " + e.(core.DatasetAdded).Name)
	})

	for _, name := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, b.Dispatch(context.Background(), core.DatasetAdded{Name: name}))
	}
	assert.Len(t, b.Failures(), 5)

	b.SetMaxFailures(3)
	require.NoError(t, b.Dispatch(context.Background(), core.DatasetAdded{Name: "f"}))

	var names []string
	for _, f := range b.Failures() {
		names = append(names, f.Event.(core.DatasetAdded).Name)
	}
	assert.Equal(t, []string{"d", "e", "f"}, names)

	b.SetMaxFailures(0)
	require.Len(t, b.Failures(), 1)
	assert.ErrorContains(t, b.FailureErr(), "history unavailable for f")
}

func TestDispatch_CommandFailurePropagates(t *testing.T) {
	b := New(nil)
	eventRan := false
	b.Handle(core.CommandRefreshDataset, func(context.Context, core.Command) ([]core.Event, error) {
		return nil, &core.NotFoundError{Kind: "container", Key: "nope"}
	})
	b.Subscribe(core.EventDatasetAdded, func(context.Context, core.Event) ([]core.Event, error) {
		eventRan = true
		return nil, nil
	})

	err := b.Dispatch(context.Background(),
		core.RefreshDataset{DatasetName: "a", ContainerID: "nope"},
		core.DatasetAdded{Name: "after"},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Contains(t, err.Error(), core.CommandRefreshDataset)
	assert.False(t, eventRan, "dispatch aborts on command failure")
	assert.NoError(t, b.FailureErr())
}

func TestDispatch_CommandProducesEvents(t *testing.T) {
	b := New(nil)
	var got []string
	b.Handle(core.CommandAddDataset, func(_ context.Context, c core.Command) ([]core.Event, error) {
		name := c.(core.AddDataset).Dataset.Name
		return []core.Event{core.DatasetAdded{Name: name}}, nil
	})
	b.Subscribe(core.EventDatasetAdded, func(_ context.Context, e core.Event) ([]core.Event, error) {
		got = append(got, e.(core.DatasetAdded).Name)
		return nil, nil
	})

	require.NoError(t, b.Dispatch(context.Background(), core.AddDataset{Dataset: core.DatasetSpec{Name: "sales"}}))
	assert.Equal(t, []string{"sales"}, got)
}

func TestDispatch_Reentrant(t *testing.T) {
	b := New(nil)
	var got []string
	b.Subscribe(core.EventDatasetRequested, func(ctx context.Context, e core.Event) ([]core.Event, error) {
		got = append(got, "outer")
		return nil, b.Dispatch(ctx, core.DatasetAdded{Name: "inner"})
	})
	b.Subscribe(core.EventDatasetAdded, func(context.Context, core.Event) ([]core.Event, error) {
		got = append(got, "inner")
		return nil, nil
	})

	require.NoError(t, b.Dispatch(context.Background(), requested("x")))
	assert.Equal(t, []string{"outer", "inner"}, got)
}
