package scanner

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/warden/pkg/apperr"
	"github.com/platinummonkey/warden/pkg/observability"
)

// shellScanner runs script through sh; the target arrives as $1
func shellScanner(t *testing.T, script string, timeout time.Duration) (*Scanner, string) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	logger := observability.NewLogger(observability.DebugLevel, &bytes.Buffer{})
	return New(Config{
		Command: "sh",
		Args:    []string{"-c", script, "scanner"},
		WorkDir: dir,
		Timeout: timeout,
	}, logger), dir
}

func TestScanner_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("reads the report the scanner wrote", func(t *testing.T) {
		s, dir := shellScanner(t,
			`printf '{"target":"%s","vulnerabilities":[]}' "$1" > bitrix24_scan_report_20240101.json`,
			10*time.Second)

		result, err := s.Run(ctx, "https://portal.example.com")
		require.NoError(t, err)
		assert.JSONEq(t, `{"target":"https://portal.example.com","vulnerabilities":[]}`, string(result.Payload))
		assert.Equal(t, filepath.Join(dir, "bitrix24_scan_report_20240101.json"), result.OutputPath)
		assert.Greater(t, result.Duration, time.Duration(0))
	})

	t.Run("non-zero exit", func(t *testing.T) {
		s, _ := shellScanner(t, `echo "connection refused" >&2; exit 3`, 10*time.Second)

		_, err := s.Run(ctx, "https://portal.example.com")
		assert.ErrorIs(t, err, apperr.ErrScanFailed)
		assert.NotErrorIs(t, err, apperr.ErrScanTimedOut)
		assert.ErrorContains(t, err, "exit status 3")
		assert.ErrorContains(t, err, "connection refused")
	})

	t.Run("timeout", func(t *testing.T) {
		s, _ := shellScanner(t, `exec sleep 10`, 200*time.Millisecond)

		start := time.Now()
		_, err := s.Run(ctx, "https://portal.example.com")
		assert.ErrorIs(t, err, apperr.ErrScanTimedOut)
		assert.NotErrorIs(t, err, apperr.ErrScanFailed)
		assert.Less(t, time.Since(start), 8*time.Second)
	})

	t.Run("clean exit without output", func(t *testing.T) {
		s, _ := shellScanner(t, `exit 0`, 10*time.Second)

		_, err := s.Run(ctx, "https://portal.example.com")
		assert.ErrorIs(t, err, apperr.ErrScanOutputMissing)
	})

	t.Run("stale report is ignored", func(t *testing.T) {
		s, dir := shellScanner(t, `exit 0`, 10*time.Second)
		stale := filepath.Join(dir, "bitrix24_scan_report_old.json")
		require.NoError(t, os.WriteFile(stale, []byte(`{}`), 0644))
		old := time.Now().Add(-time.Hour)
		require.NoError(t, os.Chtimes(stale, old, old))

		_, err := s.Run(ctx, "https://portal.example.com")
		assert.ErrorIs(t, err, apperr.ErrScanOutputMissing)
	})

	t.Run("missing command", func(t *testing.T) {
		s := New(Config{Command: "/nonexistent/scanner", WorkDir: t.TempDir()},
			observability.NewLogger(observability.InfoLevel, &bytes.Buffer{}))
		_, err := s.Run(ctx, "https://portal.example.com")
		assert.ErrorIs(t, err, apperr.ErrScanFailed)
	})
}

func TestNew_Defaults(t *testing.T) {
	s := New(Config{Command: "python3"}, observability.NewLogger(observability.InfoLevel, &bytes.Buffer{}))
	assert.Equal(t, DefaultTimeout, s.config.Timeout)
	assert.Equal(t, DefaultOutputGlob, s.config.OutputGlob)
	assert.Equal(t, ".", s.config.WorkDir)
}

func TestNewestMatch(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	write := func(name string, mod time.Time) {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(`{}`), 0644))
		require.NoError(t, os.Chtimes(path, mod, mod))
	}
	write("bitrix24_scan_report_a.json", now.Add(-2*time.Hour))
	write("bitrix24_scan_report_b.json", now.Add(time.Minute))
	write("bitrix24_scan_report_c.json", now.Add(2*time.Minute))
	write("other.json", now.Add(3*time.Minute))

	got, err := newestMatch(dir, DefaultOutputGlob, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bitrix24_scan_report_c.json"), got)

	got, err = newestMatch(dir, DefaultOutputGlob, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = newestMatch(dir, "[", now)
	assert.Error(t, err)
}

func TestLimitedBuffer(t *testing.T) {
	var b limitedBuffer
	b.Write([]byte(strings.Repeat("a", maxStderr)))
	b.Write([]byte("tail"))
	assert.Len(t, b.String(), maxStderr)
	assert.True(t, strings.HasSuffix(b.String(), "tail"))
}
