// Package bus delivers domain events and commands to registered handlers.
//
// Dispatch drains a FIFO queue seeded with the dispatched messages. Events
// produced by handlers are appended to the tail of the same queue. Event
// handler failures are recorded and logged; command handler failures abort
// the dispatch and are returned.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/leapstack-labs/datarade/pkg/core"
)

// EventHandler observes an event. Returned events are queued behind the
// current message.
type EventHandler func(ctx context.Context, event core.Event) ([]core.Event, error)

// CommandHandler executes a command. Returned events are queued behind the
// current message.
type CommandHandler func(ctx context.Context, cmd core.Command) ([]core.Event, error)

// Failure records an event handler that returned an error or panicked.
type Failure struct {
	Event   core.Event
	Handler int
	Err     error
	At      time.Time
}

// DefaultMaxFailures is the number of recent failures a Bus keeps.
const DefaultMaxFailures = 100

// Bus is a registry of message name -> ordered handler list.
type Bus struct {
	mu          sync.RWMutex
	events      map[string][]EventHandler
	commands    map[string][]CommandHandler
	failures    []Failure
	maxFailures int
	logger      *slog.Logger
}

// New creates an empty bus.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bus{
		events:      make(map[string][]EventHandler),
		commands:    make(map[string][]CommandHandler),
		maxFailures: DefaultMaxFailures,
		logger:      logger,
	}
}

// SetMaxFailures bounds the failure log to the n most recent entries.
// Values below one keep a single entry.
func (b *Bus) SetMaxFailures(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maxFailures = max(n, 1)
	b.trimFailures()
}

func (b *Bus) trimFailures() {
	if over := len(b.failures) - b.maxFailures; over > 0 {
		b.failures = slices.Delete(b.failures, 0, over)
	}
}

// Subscribe appends an event handler for the named event.
func (b *Bus) Subscribe(name string, h EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[name] = append(b.events[name], h)
}

// Handle appends a command handler for the named command.
func (b *Bus) Handle(name string, h CommandHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands[name] = append(b.commands[name], h)
}

// Dispatch delivers msgs and every event they produce, in FIFO order.
// Dispatch is reentrant: a handler may call Dispatch on the same bus.
func (b *Bus) Dispatch(ctx context.Context, msgs ...core.Message) error {
	queue := append([]core.Message(nil), msgs...)

	for len(queue) > 0 {
		msg := queue[0]
		queue = queue[1:]

		var (
			produced []core.Event
			err      error
		)
		switch m := msg.(type) {
		case core.Command:
			produced, err = b.handleCommand(ctx, m)
			if err != nil {
				return err
			}
		case core.Event:
			produced = b.handleEvent(ctx, m)
		default:
			return fmt.Errorf("bus: unsupported message %T", msg)
		}

		for _, e := range produced {
			queue = append(queue, e)
		}
	}
	return nil
}

func (b *Bus) handleCommand(ctx context.Context, cmd core.Command) ([]core.Event, error) {
	b.mu.RLock()
	handlers := b.commands[cmd.MessageName()]
	b.mu.RUnlock()

	var produced []core.Event
	for _, h := range handlers {
		b.logger.Debug("handling command", slog.String("command", cmd.MessageName()))
		events, err := h(ctx, cmd)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cmd.MessageName(), err)
		}
		produced = append(produced, events...)
	}
	return produced, nil
}

func (b *Bus) handleEvent(ctx context.Context, event core.Event) []core.Event {
	b.mu.RLock()
	handlers := b.events[event.MessageName()]
	b.mu.RUnlock()

	var produced []core.Event
	for i, h := range handlers {
		events, err := safeCall(ctx, h, event)
		if err != nil {
			b.recordFailure(event, i, err)
			continue
		}
		produced = append(produced, events...)
	}
	return produced
}

func safeCall(ctx context.Context, h EventHandler, event core.Event) (events []core.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, event)
}

func (b *Bus) recordFailure(event core.Event, handler int, err error) {
	b.logger.Error("event handler failed",
		slog.String("event", event.MessageName()),
		slog.Int("handler", handler),
		slog.String("error", err.Error()))

	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = append(b.failures, Failure{
		Event:   event,
		Handler: handler,
		Err:     err,
		At:      time.Now().UTC(),
	})
	b.trimFailures()
}

// Failures returns the most recent event handler failures, oldest first.
func (b *Bus) Failures() []Failure {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Failure(nil), b.failures...)
}

// FailureErr joins the recorded failures into one error, or nil.
func (b *Bus) FailureErr() error {
	failures := b.Failures()
	errs := make([]error, len(failures))
	for i, f := range failures {
		errs[i] = fmt.Errorf("%s handler %d: %w", f.Event.MessageName(), f.Handler, f.Err)
	}
	return errors.Join(errs...)
}
