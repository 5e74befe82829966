package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{"scan.json", "scan.json", false},
		{"project-1/scan.json", "project-1/scan.json", false},
		{"/abs/scan.json", "abs/scan.json", false},
		{"a/../../b.json", "b.json", false},
		{`dir\scan.json`, "dir/scan.json", false},
		{"", "", true},
		{"..", "", true},
		{"/", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := cleanKey(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	store, err := New(ctx, Config{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = New(ctx, Config{Backend: "filesystem", FilesystemRoot: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileSystemStore{}, store)
	assert.Equal(t, "filesystem", BackendName(store))
	assert.Equal(t, "none", BackendName(nil))

	_, err = New(ctx, Config{Backend: "tape"})
	assert.ErrorContains(t, err, "unsupported artifact backend")
}

func TestMoveFile(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileSystemStore(t.TempDir())
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "bitrix24_scan_report_1.json")
	require.NoError(t, os.WriteFile(src, []byte(`{"summary":{}}`), 0644))

	location, err := MoveFile(ctx, store, src, "project-3/bitrix24_scan_report_1.json", "application/json")
	require.NoError(t, err)
	assert.FileExists(t, location)
	assert.NoFileExists(t, src)

	r, err := store.Get(ctx, "project-3/bitrix24_scan_report_1.json")
	require.NoError(t, err)
	defer r.Close()
	data, _ := io.ReadAll(r)
	assert.Equal(t, `{"summary":{}}`, string(data))

	_, err = MoveFile(ctx, store, src, "x.json", "application/json")
	assert.ErrorContains(t, err, "failed to open artifact")
}
