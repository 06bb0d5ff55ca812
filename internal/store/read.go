package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
)

// Table is a named group of records.
type Table struct {
	store *Store
	name  string
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Insert creates a new, empty record with a freshly generated id. The record
// exists only locally until the next Sync.
func (t *Table) Insert() (*Record, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rec := newRecord(t.name, s.idGen.Generate())
	rec.dirty = true
	s.cache[recordKey{t.name, rec.id}] = rec
	return rec, nil
}

// Get returns the record with the given id, preferring the locally cached
// instance. Returns ErrNotFound if the record exists neither locally nor in
// the database.
func (t *Table) Get(ctx context.Context, id string) (*Record, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	key := recordKey{t.name, id}
	if rec, ok := s.cache[key]; ok {
		if rec.gone {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, t.name, id)
		}
		return rec, nil
	}

	var fieldsJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT fields FROM records WHERE table_id = ? AND id = ?
	`, t.name, id).Scan(&fieldsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, t.name, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}

	rec, err := loadRecord(t.name, id, fieldsJSON)
	if err != nil {
		return nil, err
	}
	s.cache[key] = rec
	return rec, nil
}

// Query returns every record in the table ordered by id. Records with
// unsynced local changes are returned as cached, including ones not yet
// written; other records reflect the database.
func (t *Table) Query(ctx context.Context) ([]*Record, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fields
		FROM records
		WHERE table_id = ?
		ORDER BY id COLLATE BINARY ASC
	`, t.name)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	records := []*Record{}
	for rows.Next() {
		var id, fieldsJSON string
		if err := rows.Scan(&id, &fieldsJSON); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		seen[id] = true

		key := recordKey{t.name, id}
		if cached, ok := s.cache[key]; ok {
			if !cached.dirty {
				if err := cached.reload(fieldsJSON); err != nil {
					return nil, err
				}
			}
			records = append(records, cached)
			continue
		}

		rec, err := loadRecord(t.name, id, fieldsJSON)
		if err != nil {
			return nil, err
		}
		s.cache[key] = rec
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	// Local inserts that have never been synced.
	for key, rec := range s.cache {
		if key.table == t.name && !rec.persisted && !rec.gone && !seen[key.id] {
			records = append(records, rec)
		}
	}
	sortRecords(records)

	return records, nil
}

func loadRecord(table, id, fieldsJSON string) (*Record, error) {
	rec := newRecord(table, id)
	if err := rec.reload(fieldsJSON); err != nil {
		return nil, err
	}
	rec.persisted = true
	return rec, nil
}

func (r *Record) reload(fieldsJSON string) error {
	fields, err := unmarshalFields(fieldsJSON)
	if err != nil {
		return fmt.Errorf("record %s/%s: %w", r.table, r.id, err)
	}
	r.fields = fields
	r.dirty = false
	return nil
}

func sortRecords(records []*Record) {
	sort.Slice(records, func(i, j int) bool { return records[i].id < records[j].id })
}
