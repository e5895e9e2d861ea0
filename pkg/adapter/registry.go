package adapter

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/leapstack-labs/datarade/pkg/core"
)

// Factory builds an unconnected adapter. A nil logger means discard.
type Factory func(*slog.Logger) Adapter

// drivers maps normalised driver ids to factories. Adapter packages fill it
// from init.
var drivers = struct {
	sync.RWMutex
	m map[string]Factory
}{m: make(map[string]Factory)}

// Register binds a driver id to a factory, replacing any previous binding.
func Register(name string, factory Factory) {
	drivers.Lock()
	defer drivers.Unlock()
	drivers.m[strings.ToLower(name)] = factory
}

func lookup(name string) (Factory, bool) {
	drivers.RLock()
	defer drivers.RUnlock()
	f, ok := drivers.m[name]
	return f, ok
}

// NewAdapter returns an unconnected adapter for cfg.Type. Driver ids such as
// "mssql+pymssql" resolve on the part before the "+".
func NewAdapter(cfg core.AdapterConfig, logger *slog.Logger) (Adapter, error) {
	name := core.Database{Driver: cfg.Type}.DriverName()
	if name == "" {
		return nil, &core.ValidationError{Field: "driver", Message: "adapter type not specified"}
	}
	factory, ok := lookup(name)
	if !ok {
		return nil, &UnknownAdapterError{Type: name, Available: ListAdapters()}
	}
	return factory(logger), nil
}

// ListAdapters returns the registered driver ids in sorted order.
func ListAdapters() []string {
	drivers.RLock()
	defer drivers.RUnlock()
	return slices.Sorted(maps.Keys(drivers.m))
}

// IsRegistered reports whether name resolves to a factory.
func IsRegistered(name string) bool {
	_, ok := lookup(core.Database{Driver: name}.DriverName())
	return ok
}

// UnknownAdapterError reports a driver id with no registered factory.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter type %q (available: %s); check the driver of the catalog entry or container",
		e.Type, strings.Join(e.Available, ", "))
}

// Unwrap returns core.ErrValidation.
func (e *UnknownAdapterError) Unwrap() error { return core.ErrValidation }
