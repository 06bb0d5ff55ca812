package store

import (
	"fmt"
	"sort"
)

// Record is a schemaless, field-addressable row.
//
// Field values are int64, float64, string, bool, or lists of those. Values
// read back from the database may also arrive as JSON numbers; the typed
// getters convert transparently.
//
// Record is not safe for concurrent use; see the package docs on locking.
type Record struct {
	table string
	id    string

	fields    map[string]any
	persisted bool // row exists (or existed) in the database
	dirty     bool
	gone      bool // row is known to be deleted
}

func newRecord(table, id string) *Record {
	return &Record{table: table, id: id, fields: make(map[string]any)}
}

// ID returns the record id. It is assigned at insert time, before the first Sync.
func (r *Record) ID() string { return r.id }

// TableID returns the name of the record's table.
func (r *Record) TableID() string { return r.table }

// Dirty reports whether the record has mutations not yet synced.
func (r *Record) Dirty() bool { return r.dirty }

// Has reports whether field is set.
func (r *Record) Has(field string) bool {
	_, ok := r.fields[field]
	return ok
}

// Fields returns the sorted names of all set fields.
func (r *Record) Fields() []string {
	names := make([]string, 0, len(r.fields))
	for name := range r.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Set assigns a scalar value to field.
func (r *Record) Set(field string, value any) {
	switch value.(type) {
	case int64, float64, string, bool:
	case int:
		value = int64(value.(int))
	default:
		panic(fmt.Sprintf("store: unsupported field type %T for %q", value, field))
	}
	r.fields[field] = value
	r.dirty = true
}

// Delete removes field.
func (r *Record) Delete(field string) {
	if _, ok := r.fields[field]; ok {
		delete(r.fields, field)
		r.dirty = true
	}
}

// GetInt64 returns field as an int64.
func (r *Record) GetInt64(field string) (int64, bool) {
	return toInt64(r.fields[field])
}

// GetFloat64 returns field as a float64.
func (r *Record) GetFloat64(field string) (float64, bool) {
	return toFloat64(r.fields[field])
}

// GetString returns field as a string.
func (r *Record) GetString(field string) (string, bool) {
	s, ok := r.fields[field].(string)
	return s, ok
}

// List returns the list stored in field, or nil when field is not a list.
func (r *Record) List(field string) *List {
	if _, ok := r.fields[field].([]any); !ok {
		return nil
	}
	return &List{rec: r, field: field}
}

// GetOrCreateList returns the list stored in field, creating an empty list
// when the field is unset.
//
// Panics if field holds a scalar.
func (r *Record) GetOrCreateList(field string) *List {
	v, ok := r.fields[field]
	if !ok {
		r.fields[field] = []any{}
		r.dirty = true
	} else if _, isList := v.([]any); !isList {
		panic(fmt.Sprintf("store: field %q is %T, not a list", field, v))
	}
	return &List{rec: r, field: field}
}

// Snapshot is a saved copy of a record's local fields.
type Snapshot struct {
	rec    *Record
	fields map[string]any
	dirty  bool
}

// Snapshot saves the record's fields so unsynced changes can be undone.
func (r *Record) Snapshot() Snapshot {
	fields := make(map[string]any, len(r.fields))
	for name, v := range r.fields {
		if list, ok := v.([]any); ok {
			v = append([]any(nil), list...)
		}
		fields[name] = v
	}
	return Snapshot{rec: r, fields: fields, dirty: r.dirty}
}

// Restore reverts the record to the saved fields.
func (s Snapshot) Restore() {
	s.rec.fields = s.fields
	s.rec.dirty = s.dirty
}

// List is a growable ordered list stored in a record field.
type List struct {
	rec   *Record
	field string
}

func (l *List) values() []any {
	v, _ := l.rec.fields[l.field].([]any)
	return v
}

// Add appends v and returns the list for chaining.
func (l *List) Add(v any) *List {
	if i, ok := v.(int); ok {
		v = int64(i)
	}
	l.rec.fields[l.field] = append(l.values(), v)
	l.rec.dirty = true
	return l
}

// Len returns the number of elements.
func (l *List) Len() int {
	return len(l.values())
}

// Int64 returns element i as an int64.
func (l *List) Int64(i int) (int64, bool) {
	return toInt64(l.values()[i])
}

// Float64 returns element i as a float64.
func (l *List) Float64(i int) (float64, bool) {
	return toFloat64(l.values()[i])
}

// jsonNumber matches json.Number from both encoding/json and goccy/go-json.
type jsonNumber interface {
	Int64() (int64, error)
	Float64() (float64, error)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case jsonNumber:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		return int64(f), err == nil
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case jsonNumber:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
