package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/embarcadero/internal/recording"
	"github.com/roach88/embarcadero/internal/store"
	"github.com/roach88/embarcadero/internal/testutil"
)

func TestRecordTrack(t *testing.T) {
	dbDir := t.TempDir()
	opts := testRootOptions(dbDir)
	opts.IDGenerator = store.NewFixedGenerator("id-1")
	opts.Clock = testutil.NewDeterministicClock(1700000000000, 500)

	out, err := execute(t, NewRecordCommand(opts), "--track", filepath.Join("testdata", "tracks", "loop.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "Recorded path id-1 (3 samples)\n", out)

	out, err = execute(t, NewShowCommand(opts), "id-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Started:  2023-11-14T22:13:20Z\n")
	assert.Contains(t, out, "Samples:  3\n")
	assert.Contains(t, out, "Duration: 2s")
}

func TestRecordJSON(t *testing.T) {
	opts := testRootOptions(t.TempDir())
	opts.Format = "json"
	opts.IDGenerator = store.NewFixedGenerator("id-1")

	out, err := execute(t, NewRecordCommand(opts), "--track", filepath.Join("testdata", "tracks", "loop.yaml"))
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   RecordResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, RecordResult{RecordID: "id-1", Samples: 3, Complete: true}, resp.Data)
}

func TestRecordInterrupted(t *testing.T) {
	opts := testRootOptions(t.TempDir())
	opts.IDGenerator = store.NewFixedGenerator("id-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := NewRecordCommand(opts)
	cmd.SetContext(ctx)
	out, err := execute(t, cmd, "--track", filepath.Join("testdata", "tracks", "loop.yaml"))
	if err != nil {
		// Cancelled before the path was created.
		assert.Equal(t, ExitFailure, GetExitCode(err))
		return
	}
	assert.Contains(t, out, "interrupted")
}

func TestRecordPathDeletedMidTrack(t *testing.T) {
	ctx := context.Background()
	dbDir := t.TempDir()
	opts := testRootOptions(dbDir)
	opts.IDGenerator = store.NewFixedGenerator("id-1")

	track := filepath.Join(dbDir, "long.yaml")
	require.NoError(t, os.WriteFile(track, []byte(`name: long
samples:
  - {lat: 37.7955, lon: -122.3937}
  - {lat: 37.7961, lon: -122.3929}
  - {lat: 37.7968, lon: -122.3921}
  - {lat: 37.7975, lon: -122.3913}
`), 0o644))

	// Create the database up front so the second connection never races
	// the command's schema setup.
	other, err := store.Open(filepath.Join(dbDir, "default.db"))
	require.NoError(t, err)
	defer other.Close()

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := execute(t, NewRecordCommand(opts), "--track", track, "--interval", "150ms")
		done <- result{out, err}
	}()

	require.Eventually(t, func() bool {
		_, err := other.Table(recording.PathsTable).Get(ctx, "id-1")
		return err == nil
	}, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, other.DeleteRecord(ctx, recording.PathsTable, "id-1"))

	select {
	case res := <-done:
		require.Error(t, res.err)
		assert.Equal(t, ExitFailure, GetExitCode(res.err))
		assert.Contains(t, res.err.Error(), "deleted")
		assert.ErrorIs(t, res.err, errPathDeleted)
	case <-time.After(5 * time.Second):
		t.Fatal("record did not return after its path was deleted")
	}
}

func TestRecordMissingTrackFlag(t *testing.T) {
	_, err := execute(t, NewRecordCommand(testRootOptions(t.TempDir())))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "track")
}

func TestRecordInvalidTrack(t *testing.T) {
	tmpDir := t.TempDir()
	track := filepath.Join(tmpDir, "bad.yaml")
	require.NoError(t, os.WriteFile(track, []byte("name: empty\nsamples: []\n"), 0o644))

	_, err := execute(t, NewRecordCommand(testRootOptions(tmpDir)), "--track", track)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load track")
}
