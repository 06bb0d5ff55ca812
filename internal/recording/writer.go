package recording

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/embarcadero/internal/location"
	"github.com/roach88/embarcadero/internal/store"
)

// PathsTable is the table holding one record per recorded path.
const PathsTable = "paths"

// Path record fields.
const (
	FieldName      = "name"
	FieldStartTime = "start_time"
	FieldStopTime  = "stop_time"

	FieldCoordTime      = "coord_time"
	FieldCoordLatitude  = "coord_latitude"
	FieldCoordLongitude = "coord_longitude"
	FieldCoordAccuracy  = "coord_accuracy"
	FieldCoordAltitude  = "coord_altitude"
)

// coordFields lists the parallel per-sample lists in a fixed order.
var coordFields = []string{
	FieldCoordTime,
	FieldCoordLatitude,
	FieldCoordLongitude,
	FieldCoordAccuracy,
	FieldCoordAltitude,
}

// PathWriter writes path fields into a record. Callers hold the store lock.
type PathWriter struct {
	rec *store.Record
}

// NewPathWriter wraps rec.
func NewPathWriter(rec *store.Record) *PathWriter {
	return &PathWriter{rec: rec}
}

// RecordID returns the id of the underlying record.
func (w *PathWriter) RecordID() string { return w.rec.ID() }

// Record returns the underlying record.
func (w *PathWriter) Record() *store.Record { return w.rec }

// AddSample appends s to the five coordinate lists. It returns
// ErrInconsistentRecord if the lists disagree in length afterwards.
func (w *PathWriter) AddSample(s location.Sample) error {
	return checkLengths(w.rec.ID(),
		w.rec.GetOrCreateList(FieldCoordTime).Add(s.Time).Len(),
		w.rec.GetOrCreateList(FieldCoordLatitude).Add(s.Latitude).Len(),
		w.rec.GetOrCreateList(FieldCoordLongitude).Add(s.Longitude).Len(),
		w.rec.GetOrCreateList(FieldCoordAccuracy).Add(s.Accuracy).Len(),
		w.rec.GetOrCreateList(FieldCoordAltitude).Add(s.Altitude).Len(),
	)
}

// SetStartTime stamps the recording start in Unix milliseconds.
func (w *PathWriter) SetStartTime(ms int64) {
	w.rec.Set(FieldStartTime, ms)
}

// SetStopTime stamps the recording stop in Unix milliseconds.
func (w *PathWriter) SetStopTime(ms int64) {
	w.rec.Set(FieldStopTime, ms)
}

// SetName sets the display name. Names are trimmed and NFC-normalized so
// visually identical names compare equal; an empty name clears the field.
func (w *PathWriter) SetName(name string) {
	name = NormalizeName(name)
	if name == "" {
		w.rec.Delete(FieldName)
		return
	}
	w.rec.Set(FieldName, name)
}

// NormalizeName trims and NFC-normalizes a path name.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

func checkLengths(recordID string, lengths ...int) error {
	for _, n := range lengths[1:] {
		if n != lengths[0] {
			return fmt.Errorf("%w: record %s coordinate lengths %v", ErrInconsistentRecord, recordID, lengths)
		}
	}
	return nil
}
