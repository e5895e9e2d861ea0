// Package container is the DatasetContainer repository. Registrations live
// either in a process-scoped Registry or in the state database; both hand out
// sessions that buffer registrations until the unit of work commits.
package container

import (
	"context"
	"strings"

	"github.com/leapstack-labs/datarade/internal/uow"
	"github.com/leapstack-labs/datarade/pkg/core"
)

// Session is a container repository session.
type Session interface {
	uow.Session

	// Register records a container, replacing any earlier registration of
	// the same id once the session commits.
	Register(ctx context.Context, spec core.ContainerSpec) (*core.DatasetContainer, error)

	// Get returns a registered container. An unknown id is a core.NotFoundError.
	Get(ctx context.Context, id string) (*core.DatasetContainer, error)
}

// Repository opens sessions and lists registrations.
type Repository interface {
	Session(ctx context.Context) (Session, error)
	List(ctx context.Context) ([]core.ContainerSpec, error)
}

var (
	_ Repository = (*Registry)(nil)
	_ Repository = (*Store)(nil)
)

// Validate checks the attributes a registration needs.
func Validate(spec core.ContainerSpec) error {
	switch {
	case strings.TrimSpace(spec.ID) == "":
		return &core.ValidationError{Source: "container", Field: "id", Message: "required"}
	case spec.Database.DriverName() == "":
		return &core.ValidationError{Source: spec.ID, Field: "driver", Message: "required"}
	case spec.Database.Port < 0:
		return &core.ValidationError{Source: spec.ID, Field: "port", Message: "must not be negative"}
	}
	return nil
}

// register builds the aggregate and records its registration event.
func register(spec core.ContainerSpec) *core.DatasetContainer {
	c := core.NewDatasetContainer(spec)
	db := c.Database()
	c.Record(core.DatasetContainerRegistered{
		EventMeta:    core.NewEventMeta(),
		ContainerID:  c.ID(),
		Driver:       db.Driver,
		Host:         db.Host,
		DatabaseName: db.DatabaseName,
		Schema:       c.Schema(),
	})
	return c
}

// pending is the per-session write buffer shared by both backends.
type pending struct {
	seen  []core.Aggregate
	order []string
	byID  map[string]*core.DatasetContainer
}

func (p *pending) add(c *core.DatasetContainer) {
	if p.byID == nil {
		p.byID = make(map[string]*core.DatasetContainer)
	}
	if _, ok := p.byID[c.ID()]; !ok {
		p.order = append(p.order, c.ID())
	}
	p.byID[c.ID()] = c
	p.seen = append(p.seen, c)
}

func (p *pending) get(id string) (*core.DatasetContainer, bool) {
	c, ok := p.byID[id]
	return c, ok
}

func (p *pending) touch(c *core.DatasetContainer) {
	p.seen = append(p.seen, c)
}

// specs returns the buffered registrations in first-registration order.
func (p *pending) specs() []core.ContainerSpec {
	out := make([]core.ContainerSpec, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.byID[id].Spec())
	}
	return out
}

func (p *pending) reset() {
	p.order = nil
	p.byID = nil
}
