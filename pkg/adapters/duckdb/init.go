// Package duckdb provides a DuckDB database adapter for datarade.
//
// This file registers the DuckDB adapter with the adapter registry.
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/datarade/pkg/adapters/duckdb"
package duckdb

import (
	"log/slog"

	"github.com/leapstack-labs/datarade/pkg/adapter"
)

func init() {
	adapter.Register("duckdb", func(l *slog.Logger) adapter.Adapter { return New(l) })
}
