package sqlite

import (
	"log/slog"

	"github.com/leapstack-labs/datarade/pkg/adapter"
)

func init() {
	adapter.Register("sqlite", func(l *slog.Logger) adapter.Adapter { return New(l) })
	adapter.Register("sqlite3", func(l *slog.Logger) adapter.Adapter { return New(l) })
}
