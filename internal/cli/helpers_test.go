package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/embarcadero/internal/location"
	"github.com/roach88/embarcadero/internal/recording"
	"github.com/roach88/embarcadero/internal/store"
)

// seedPaths writes two fixed paths into the database of account:
// id-1 is finished, named, and has two samples; id-2 is unfinished and empty.
func seedPaths(t *testing.T, dbDir, account string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dbDir, 0o755))
	s, err := store.Open(
		filepath.Join(dbDir, account+".db"),
		store.WithIDGenerator(store.NewFixedGenerator("id-1", "id-2")),
	)
	require.NoError(t, err)
	defer s.Close()

	paths := s.Table(recording.PathsTable)

	rec, err := paths.Insert()
	require.NoError(t, err)
	w := recording.NewPathWriter(rec)
	w.SetStartTime(1700000000000)
	w.SetName("Morning loop")
	require.NoError(t, w.AddSample(location.Sample{Time: 1700000000000, Latitude: 37.7955, Longitude: -122.3937, Accuracy: 5, Altitude: 3}))
	require.NoError(t, w.AddSample(location.Sample{Time: 1700000600000, Latitude: 37.7961, Longitude: -122.3929, Accuracy: 4, Altitude: 3.5}))
	w.SetStopTime(1700000600000)

	rec, err = paths.Insert()
	require.NoError(t, err)
	recording.NewPathWriter(rec).SetStartTime(1700003600000)

	require.NoError(t, s.Sync(context.Background()))
}

// execute runs cmd with args and returns stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func testRootOptions(dbDir string) *RootOptions {
	return &RootOptions{Format: "text", DBDir: dbDir, Account: "default"}
}
