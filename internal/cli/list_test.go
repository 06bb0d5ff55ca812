package cli

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGolden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestListGolden(t *testing.T) {
	dbDir := t.TempDir()
	seedPaths(t, dbDir, "default")

	for _, format := range ValidFormats {
		t.Run(format, func(t *testing.T) {
			opts := testRootOptions(dbDir)
			opts.Format = format

			out, err := execute(t, NewListCommand(opts))
			require.NoError(t, err)
			newGolden(t).Assert(t, "list_"+format, []byte(out))
		})
	}
}

func TestListEmpty(t *testing.T) {
	out, err := execute(t, NewListCommand(testRootOptions(t.TempDir())))
	require.NoError(t, err)
	assert.Equal(t, "No paths recorded.\n", out)
}

func TestListMissingDBDir(t *testing.T) {
	_, err := execute(t, NewListCommand(&RootOptions{}))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no database directory")
}
