package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenameAndList(t *testing.T) {
	dbDir := t.TempDir()
	seedPaths(t, dbDir, "default")
	opts := testRootOptions(dbDir)

	out, err := execute(t, NewRenameCommand(opts), "id-2", "  Evening ferry ")
	require.NoError(t, err)
	assert.Equal(t, "Renamed path id-2 to \"Evening ferry\"\n", out)

	out, err = execute(t, NewListCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "Evening ferry")

	out, err = execute(t, NewRenameCommand(opts), "id-2", "")
	require.NoError(t, err)
	assert.Equal(t, "Cleared name of path id-2\n", out)
}

func TestRenameMissingPath(t *testing.T) {
	_, err := execute(t, NewRenameCommand(testRootOptions(t.TempDir())), "nope", "x")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestDelete(t *testing.T) {
	dbDir := t.TempDir()
	seedPaths(t, dbDir, "default")
	opts := testRootOptions(dbDir)

	out, err := execute(t, NewDeleteCommand(opts), "id-1")
	require.NoError(t, err)
	assert.Equal(t, "Deleted path id-1\n", out)

	out, err = execute(t, NewListCommand(opts))
	require.NoError(t, err)
	assert.NotContains(t, out, "id-1")
	assert.Contains(t, out, "1 path(s)")

	_, err = execute(t, NewDeleteCommand(opts), "id-1")
	require.Error(t, err)
	assert.Equal(t, CodeNotFound, ErrorCode(err))
}

func TestEditArgs(t *testing.T) {
	_, err := execute(t, NewRenameCommand(testRootOptions(t.TempDir())), "only-id")
	assert.Error(t, err)
	_, err = execute(t, NewDeleteCommand(testRootOptions(t.TempDir())))
	assert.Error(t, err)
}
