package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileLogger writes audit entries as JSON lines to a size-rotated file
type FileLogger struct {
	mu      sync.Mutex
	out     io.WriteCloser
	encoder *json.Encoder
}

// FileLoggerConfig configures the file logger
type FileLoggerConfig struct {
	Path       string
	MaxSizeMB  int // Max file size before rotation (default: 100)
	MaxBackups int // Rotated files to keep (default: 10)
	MaxAgeDays int // Days to keep rotated files (0 keeps forever)
	Compress   bool
}

// NewFileLogger creates a new file-based audit logger
func NewFileLogger(config FileLoggerConfig) (*FileLogger, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("audit file path is required")
	}
	if config.MaxSizeMB == 0 {
		config.MaxSizeMB = 100
	}
	if config.MaxBackups == 0 {
		config.MaxBackups = 10
	}

	return newFileLogger(&lumberjack.Logger{
		Filename:   config.Path,
		MaxSize:    config.MaxSizeMB,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAgeDays,
		Compress:   config.Compress,
	}), nil
}

func newFileLogger(out io.WriteCloser) *FileLogger {
	return &FileLogger{out: out, encoder: json.NewEncoder(out)}
}

// Log writes the entry as one JSON line
func (l *FileLogger) Log(ctx context.Context, entry *Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.encoder.Encode(entry); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

// Close closes the underlying file
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}
