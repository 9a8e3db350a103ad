package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, dsn string, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(zerolog.Nop())
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(append([]string{"--database-url", dsn}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestOperatorCommands(t *testing.T) {
	t.Setenv("CAMPUS_JWT_SECRET", "cli-secret")
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "campus.db")

	_, err := run(t, dsn, "migrate")
	require.NoError(t, err)

	out, err := run(t, dsn, "users", "create-admin", "--username", "root", "--email", "Root@Campus.test", "--password", "password1")
	require.NoError(t, err)
	require.Contains(t, out, "created admin root@campus.test")

	_, err = run(t, dsn, "users", "create-admin", "--username", "root", "--email", "root@campus.test", "--password", "password1")
	require.ErrorContains(t, err, "already exists")

	out, err = run(t, dsn, "audit", "purge", "--days", "30")
	require.NoError(t, err)
	require.Contains(t, out, "deleted 0 activity logs")

	_, err = run(t, dsn, "audit", "purge", "--days", "-1")
	require.Error(t, err)
}

func TestCreateAdminRequiresFlags(t *testing.T) {
	t.Setenv("CAMPUS_JWT_SECRET", "cli-secret")
	_, err := run(t, "sqlite://"+filepath.Join(t.TempDir(), "campus.db"), "users", "create-admin", "--username", "root")
	require.Error(t, err)
}
