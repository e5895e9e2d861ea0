package core

import (
	"slices"
	"time"
)

// Message is anything the message bus can deliver.
type Message interface {
	MessageName() string
}

// Event is a fact that already happened. Handler failures for events are
// isolated by the bus.
type Event interface {
	Message
	isEvent()
}

// Command is a request for the system to do something. Handler failures for
// commands propagate to the dispatcher.
type Command interface {
	Message
	isCommand()
}

// EventMeta is embedded by every event.
type EventMeta struct {
	OccurredAt time.Time
}

func (EventMeta) isEvent() {}

// NewEventMeta stamps an event with the current time.
func NewEventMeta() EventMeta {
	return EventMeta{OccurredAt: time.Now().UTC()}
}

// Aggregate is an entity that buffers the events it raises.
type Aggregate interface {
	PullEvents() []Event
}

// EventLog is an append-only event buffer embedded in aggregates.
type EventLog struct {
	events []Event
}

// Record appends an event.
func (l *EventLog) Record(e Event) {
	l.events = append(l.events, e)
}

// PullEvents returns the buffered events in append order and clears the log.
func (l *EventLog) PullEvents() []Event {
	events := l.events
	l.events = nil
	return events
}

// Events returns a copy of the buffered events without clearing them.
func (l *EventLog) Events() []Event {
	return slices.Clone(l.events)
}

// Event names.
const (
	EventDatasetRequested           = "DatasetRequested"
	EventDatasetAdded               = "DatasetAdded"
	EventDatasetContainerRegistered = "DatasetContainerRegistered"
	EventDatasetRefreshed           = "DatasetRefreshed"
)

// EventNames returns the name of every event type.
func EventNames() []string {
	return []string{
		EventDatasetRequested,
		EventDatasetAdded,
		EventDatasetContainerRegistered,
		EventDatasetRefreshed,
	}
}

// DatasetRequested is recorded when a dataset is resolved from a catalog.
type DatasetRequested struct {
	EventMeta
	Name          string
	RepositoryURL string
	CatalogPath   string
}

// MessageName implements Message.
func (DatasetRequested) MessageName() string { return EventDatasetRequested }

// DatasetAdded is recorded when a dataset is written to a catalog.
type DatasetAdded struct {
	EventMeta
	Name          string
	RepositoryURL string
	CatalogPath   string
}

// MessageName implements Message.
func (DatasetAdded) MessageName() string { return EventDatasetAdded }

// DatasetContainerRegistered is recorded when a container is registered.
type DatasetContainerRegistered struct {
	EventMeta
	ContainerID  string
	Driver       string
	Host         string
	DatabaseName string
	Schema       string
}

// MessageName implements Message.
func (DatasetContainerRegistered) MessageName() string { return EventDatasetContainerRegistered }

// DatasetRefreshed is recorded when a dataset was loaded into a container.
type DatasetRefreshed struct {
	EventMeta
	DatasetName string
	ContainerID string
	Table       string
	Rows        int64
	StartedAt   time.Time
	Duration    time.Duration
}

// MessageName implements Message.
func (DatasetRefreshed) MessageName() string { return EventDatasetRefreshed }
