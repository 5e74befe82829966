package audit

import (
	"context"
	"errors"
	"fmt"
)

// MultiLogger fans entries out to several sinks in order. The first sink is
// the primary one: its assigned ID is kept on the entry.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a new multi-logger that writes to multiple destinations
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log writes to every sink, continuing past failures, and reports all of them
func (m *MultiLogger) Log(ctx context.Context, entry *Entry) error {
	var errs []error
	for i, logger := range m.loggers {
		if err := logger.Log(ctx, entry); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Query delegates to the first sink that can be queried
func (m *MultiLogger) Query(ctx context.Context, filter Filter) ([]*Entry, error) {
	for _, logger := range m.loggers {
		if q, ok := logger.(Querier); ok {
			return q.Query(ctx, filter)
		}
	}
	return nil, fmt.Errorf("no queryable audit sink configured")
}

// Close closes all sinks
func (m *MultiLogger) Close() error {
	var errs []error
	for _, logger := range m.loggers {
		if err := logger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
