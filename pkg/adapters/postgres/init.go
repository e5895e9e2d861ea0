// Package postgres provides a PostgreSQL database adapter for datarade.
//
// This file registers the PostgreSQL adapter with the adapter registry.
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/datarade/pkg/adapters/postgres"
package postgres

import (
	"log/slog"

	"github.com/leapstack-labs/datarade/pkg/adapter"
)

func init() {
	adapter.Register("postgres", func(l *slog.Logger) adapter.Adapter { return New(l) })
	adapter.Register("postgresql", func(l *slog.Logger) adapter.Adapter { return New(l) })
}
