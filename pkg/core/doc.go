// Package core defines the shared language of the datarade system.
//
// This package contains:
//   - Domain entities (Dataset, Field, Database, User, DatasetContainer)
//   - Domain events and commands exchanged over the message bus
//   - The error taxonomy returned to callers
//   - Service interfaces (Adapter, TableSwapper, Store)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
