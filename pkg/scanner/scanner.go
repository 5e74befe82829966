package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/observability"
)

const (
	// DefaultTimeout bounds a single scanner run
	DefaultTimeout = 5 * time.Minute

	// DefaultOutputGlob matches the report files the scanner writes
	DefaultOutputGlob = "bitrix24_scan_report_*.json"

	// maxStderr caps how much scanner stderr is kept for error messages
	maxStderr = 4 << 10
)

// Config describes how to invoke the external scanner
type Config struct {
	Command    string
	Args       []string
	WorkDir    string
	OutputGlob string
	Timeout    time.Duration
}

// Result is the output of one successful scanner run
type Result struct {
	Payload    []byte
	OutputPath string
	Duration   time.Duration
}

// Runner runs a scan against a target URL
type Runner interface {
	Run(ctx context.Context, target string) (*Result, error)
}

// Scanner runs the configured command as a child process
type Scanner struct {
	config Config
	logger *observability.Logger
	now    func() time.Time
}

// New creates a scanner, filling defaults for empty settings
func New(config Config, logger *observability.Logger) *Scanner {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.OutputGlob == "" {
		config.OutputGlob = DefaultOutputGlob
	}
	if config.WorkDir == "" {
		config.WorkDir = "."
	}
	return &Scanner{config: config, logger: logger, now: time.Now}
}

// Run invokes the scanner with target as its last argument and returns the
// newest matching output file written during the run. A run that exceeds the
// timeout is reported as apperr.ErrScanTimedOut, a non-zero exit as
// apperr.ErrScanFailed and a clean exit without output as
// apperr.ErrScanOutputMissing.
func (s *Scanner) Run(ctx context.Context, target string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	args := append(append([]string{}, s.config.Args...), target)
	cmd := exec.CommandContext(ctx, s.config.Command, args...)
	cmd.Dir = s.config.WorkDir
	cmd.WaitDelay = 5 * time.Second

	var stderr limitedBuffer
	cmd.Stderr = &stderr

	start := s.now()
	logger := s.logger.WithFields(map[string]interface{}{
		"command": s.config.Command,
		"target":  target,
	})
	logger.Info("Starting vulnerability scan")

	err := cmd.Run()
	duration := s.now().Sub(start)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		logger.WithField("timeout", s.config.Timeout.String()).Warn("Scanner timed out")
		return nil, fmt.Errorf("%w after %s", apperr.ErrScanTimedOut, s.config.Timeout)
	}
	if err != nil {
		detail := strings.TrimSpace(stderr.String())
		logger.WithError(err).WithField("stderr", detail).Warn("Scanner exited unsuccessfully")

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: exit status %d: %s", apperr.ErrScanFailed, exitErr.ExitCode(), lastLine(detail))
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrScanFailed, err)
	}

	path, err := newestMatch(s.config.WorkDir, s.config.OutputGlob, start)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("%w: no file matching %s in %s", apperr.ErrScanOutputMissing, s.config.OutputGlob, s.config.WorkDir)
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scan output: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"output":      path,
		"duration_ms": duration.Milliseconds(),
	}).Info("Vulnerability scan finished")

	return &Result{Payload: payload, OutputPath: path, Duration: duration}, nil
}

// newestMatch returns the most recently modified file in dir matching pattern
// that was modified no earlier than since, or "" when there is none.
func newestMatch(dir, pattern string, since time.Time) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", fmt.Errorf("invalid scanner output pattern %q: %w", pattern, err)
	}

	// filesystem timestamps may be coarser than the clock
	since = since.Truncate(time.Second)

	var newest string
	var newestMod time.Time
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		mod := info.ModTime()
		if mod.Before(since) {
			continue
		}
		if newest == "" || mod.After(newestMod) {
			newest, newestMod = match, mod
		}
	}
	return newest, nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// limitedBuffer keeps the last maxStderr bytes written to it
type limitedBuffer struct {
	buf bytes.Buffer
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	b.buf.Write(p)
	if over := b.buf.Len() - maxStderr; over > 0 {
		b.buf.Next(over)
	}
	return n, nil
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}
