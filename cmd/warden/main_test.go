package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	root := newRootCommand()

	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "user", "janitor"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestReadPassword(t *testing.T) {
	t.Run("from stdin", func(t *testing.T) {
		t.Setenv("WARDEN_NEW_USER_PASSWORD", "")
		pw, err := readPassword(strings.NewReader("s3cret-pass\n"))
		require.NoError(t, err)
		assert.Equal(t, "s3cret-pass", pw)
	})

	t.Run("environment wins", func(t *testing.T) {
		t.Setenv("WARDEN_NEW_USER_PASSWORD", "from-env")
		pw, err := readPassword(strings.NewReader("ignored\n"))
		require.NoError(t, err)
		assert.Equal(t, "from-env", pw)
	})

	t.Run("empty", func(t *testing.T) {
		t.Setenv("WARDEN_NEW_USER_PASSWORD", "")
		_, err := readPassword(strings.NewReader(""))
		assert.Error(t, err)
	})
}

func TestMigrateCommand(t *testing.T) {
	t.Setenv("WARDEN_DB_DRIVER", "sqlite")
	t.Setenv("WARDEN_DB_DSN", t.TempDir()+"/warden.db")
	t.Setenv("WARDEN_ARTIFACT_ROOT", t.TempDir())
	t.Setenv("WARDEN_ADMIN_PASSWORD", "bootstrap-pass-123")

	var out strings.Builder
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"migrate"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Applied migrations")

	out.Reset()
	root = newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"migrate"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Schema is up to date")
}
