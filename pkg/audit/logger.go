package audit

import (
	"context"
)

// Logger is a sink for audit entries
type Logger interface {
	// Log appends an entry. Implementations may set entry.ID.
	Log(ctx context.Context, entry *Entry) error

	// Close flushes and releases the sink
	Close() error
}

// Querier reads back appended entries, newest first
type Querier interface {
	Query(ctx context.Context, filter Filter) ([]*Entry, error)
}

// NopLogger discards every entry
type NopLogger struct{}

func (NopLogger) Log(ctx context.Context, entry *Entry) error { return nil }
func (NopLogger) Close() error                                { return nil }
