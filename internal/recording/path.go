package recording

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/embarcadero/internal/location"
	"github.com/roach88/embarcadero/internal/store"
)

// ListItem is an immutable list-row projection of a path record.
type ListItem struct {
	RecordID        string `json:"record_id"`
	Name            string `json:"name,omitempty"`
	StartTimeMillis int64  `json:"start_time"`
	StopTimeMillis  *int64 `json:"stop_time,omitempty"`
	SampleCount     int    `json:"sample_count"`
}

// Finished reports whether the recording has a stop time.
func (i ListItem) Finished() bool { return i.StopTimeMillis != nil }

// ByStartTime orders list items by ascending start time, then record id.
func ByStartTime(items []ListItem) {
	sort.SliceStable(items, func(a, b int) bool {
		if items[a].StartTimeMillis != items[b].StartTimeMillis {
			return items[a].StartTimeMillis < items[b].StartTimeMillis
		}
		return items[a].RecordID < items[b].RecordID
	})
}

// ListItemFrom projects a path record into a ListItem.
func ListItemFrom(rec *store.Record) (ListItem, error) {
	start, ok := rec.GetInt64(FieldStartTime)
	if !ok {
		return ListItem{}, fmt.Errorf("path %s: missing %s", rec.ID(), FieldStartTime)
	}
	item := ListItem{
		RecordID:        rec.ID(),
		StartTimeMillis: start,
	}
	if name, ok := rec.GetString(FieldName); ok {
		item.Name = name
	}
	if stop, ok := rec.GetInt64(FieldStopTime); ok {
		item.StopTimeMillis = &stop
	}
	if times := rec.List(FieldCoordTime); times != nil {
		item.SampleCount = times.Len()
	}
	return item, nil
}

// CoordsFrom reads every sample of a path record in recording order. It
// returns ErrInconsistentRecord when the coordinate lists disagree.
func CoordsFrom(rec *store.Record) ([]location.Sample, error) {
	present := 0
	for _, f := range coordFields {
		if rec.Has(f) {
			present++
		}
	}
	if present == 0 {
		return []location.Sample{}, nil
	}
	if present != len(coordFields) {
		return nil, fmt.Errorf("%w: record %s has %d of %d coordinate lists",
			ErrInconsistentRecord, rec.ID(), present, len(coordFields))
	}

	lists := make([]*store.List, len(coordFields))
	lengths := make([]int, len(coordFields))
	for i, f := range coordFields {
		lists[i] = rec.List(f)
		if lists[i] == nil {
			return nil, fmt.Errorf("%w: record %s field %s is not a list", ErrInconsistentRecord, rec.ID(), f)
		}
		lengths[i] = lists[i].Len()
	}
	if err := checkLengths(rec.ID(), lengths...); err != nil {
		return nil, err
	}

	times, lats, lons, accs, alts := lists[0], lists[1], lists[2], lists[3], lists[4]
	coords := make([]location.Sample, lengths[0])
	for i := range coords {
		t, _ := times.Int64(i)
		lat, _ := lats.Float64(i)
		lon, _ := lons.Float64(i)
		acc, _ := accs.Float64(i)
		alt, _ := alts.Float64(i)
		coords[i] = location.Sample{Time: t, Latitude: lat, Longitude: lon, Accuracy: acc, Altitude: alt}
	}
	return coords, nil
}

// QueryPathList returns every path as a ListItem ordered by start time.
// The caller holds the store lock.
func QueryPathList(ctx context.Context, s *store.Store) ([]ListItem, error) {
	records, err := s.Table(PathsTable).Query(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]ListItem, 0, len(records))
	for _, rec := range records {
		item, err := ListItemFrom(rec)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	ByStartTime(items)
	return items, nil
}

// QueryPathCoords returns the samples of one path. The caller holds the
// store lock.
func QueryPathCoords(ctx context.Context, s *store.Store, recordID string) ([]location.Sample, error) {
	rec, err := s.Table(PathsTable).Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	return CoordsFrom(rec)
}
