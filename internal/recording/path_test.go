package recording

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/embarcadero/internal/location"
	"github.com/roach88/embarcadero/internal/store"
)

func openTestStore(t *testing.T, ids ...string) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "paths.db"), store.WithIDGenerator(store.NewFixedGenerator(ids...)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPathWriter_AddSample(t *testing.T) {
	s := openTestStore(t, "id-1")
	rec, err := s.Table(PathsTable).Insert()
	require.NoError(t, err)

	w := NewPathWriter(rec)
	require.NoError(t, w.AddSample(sample(1, 1.5, 2.5)))
	require.NoError(t, w.AddSample(sample(2, 3.5, 4.5)))

	for _, f := range coordFields {
		require.NotNil(t, rec.List(f), f)
		assert.Equal(t, 2, rec.List(f).Len(), f)
	}
	coords, err := CoordsFrom(rec)
	require.NoError(t, err)
	assert.Equal(t, []location.Sample{sample(1, 1.5, 2.5), sample(2, 3.5, 4.5)}, coords)
}

func TestPathWriter_AddSampleDetectsMismatch(t *testing.T) {
	s := openTestStore(t, "id-1")
	rec, err := s.Table(PathsTable).Insert()
	require.NoError(t, err)
	rec.GetOrCreateList(FieldCoordLatitude).Add(1.0)

	err = NewPathWriter(rec).AddSample(sample(1, 1, 1))
	assert.ErrorIs(t, err, ErrInconsistentRecord)
}

func TestCoordsFrom(t *testing.T) {
	s := openTestStore(t, "id-1", "id-2", "id-3")
	paths := s.Table(PathsTable)

	t.Run("no samples", func(t *testing.T) {
		rec, err := paths.Insert()
		require.NoError(t, err)
		coords, err := CoordsFrom(rec)
		require.NoError(t, err)
		assert.Empty(t, coords)
	})

	t.Run("missing list", func(t *testing.T) {
		rec, err := paths.Insert()
		require.NoError(t, err)
		rec.GetOrCreateList(FieldCoordTime).Add(int64(1))
		_, err = CoordsFrom(rec)
		assert.ErrorIs(t, err, ErrInconsistentRecord)
	})

	t.Run("unequal lengths", func(t *testing.T) {
		rec, err := paths.Insert()
		require.NoError(t, err)
		require.NoError(t, NewPathWriter(rec).AddSample(sample(1, 1, 1)))
		rec.GetOrCreateList(FieldCoordAltitude).Add(9.0)
		_, err = CoordsFrom(rec)
		assert.ErrorIs(t, err, ErrInconsistentRecord)
	})
}

func TestCoordsFrom_SurvivesRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "paths.db")
	s, err := store.Open(path, store.WithIDGenerator(store.NewFixedGenerator("id-1")))
	require.NoError(t, err)
	defer s.Close()
	rec, err := s.Table(PathsTable).Insert()
	require.NoError(t, err)
	w := NewPathWriter(rec)
	w.SetStartTime(1000)
	require.NoError(t, w.AddSample(location.Sample{Time: 1700000000123, Latitude: 47.6062, Longitude: -122.3321, Accuracy: 3, Altitude: 0}))
	require.NoError(t, s.Sync(ctx))

	other, err := store.Open(path)
	require.NoError(t, err)
	defer other.Close()

	coords, err := QueryPathCoords(ctx, other, "id-1")
	require.NoError(t, err)
	require.Len(t, coords, 1)
	assert.Equal(t, int64(1700000000123), coords[0].Time)
	assert.InDelta(t, 47.6062, coords[0].Latitude, 1e-9)
	assert.InDelta(t, -122.3321, coords[0].Longitude, 1e-9)
}

func TestListItemFrom(t *testing.T) {
	s := openTestStore(t, "id-1", "id-2")
	paths := s.Table(PathsTable)

	rec, err := paths.Insert()
	require.NoError(t, err)
	_, err = ListItemFrom(rec)
	assert.Error(t, err, "start time is required")

	w := NewPathWriter(rec)
	w.SetStartTime(10)
	item, err := ListItemFrom(rec)
	require.NoError(t, err)
	assert.Equal(t, ListItem{RecordID: "id-1", StartTimeMillis: 10}, item)
	assert.False(t, item.Finished())

	w.SetName("morning")
	w.SetStopTime(20)
	require.NoError(t, w.AddSample(sample(11, 0, 0)))
	item, err = ListItemFrom(rec)
	require.NoError(t, err)
	assert.Equal(t, "morning", item.Name)
	require.True(t, item.Finished())
	assert.Equal(t, int64(20), *item.StopTimeMillis)
	assert.Equal(t, 1, item.SampleCount)
}

func TestByStartTime(t *testing.T) {
	items := []ListItem{
		{RecordID: "c", StartTimeMillis: 30},
		{RecordID: "b", StartTimeMillis: 10},
		{RecordID: "a", StartTimeMillis: 10},
	}
	ByStartTime(items)
	assert.Equal(t, []string{"a", "b", "c"}, []string{items[0].RecordID, items[1].RecordID, items[2].RecordID})
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "Caf\u00e9", NormalizeName(" Cafe\u0301\t"))
	assert.Equal(t, "", NormalizeName("  "))
}
