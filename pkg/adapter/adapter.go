// Package adapter provides the database adapter registry and the shared
// plumbing concrete adapters build on.
//
// This package contains the public contract that all database adapters must implement.
// Concrete adapter implementations are in pkg/adapters/ subdirectories.
//
// The contract types live in pkg/core; they are aliased here so adapter
// packages can depend on a single import.
package adapter

import (
	"github.com/leapstack-labs/datarade/pkg/core"
)

type (
	// Adapter is an alias for core.Adapter.
	Adapter = core.Adapter

	// TableSwapper is an alias for core.TableSwapper.
	TableSwapper = core.TableSwapper

	// Config is an alias for core.AdapterConfig.
	Config = core.AdapterConfig

	// Rows is an alias for core.Rows.
	Rows = core.Rows

	// TableRef is an alias for core.TableRef.
	TableRef = core.TableRef
)
