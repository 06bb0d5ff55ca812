package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Sync writes every dirty cached record in one transaction and refreshes
// clean cached records from the database.
//
// A dirty record whose row was deleted by another connection is not
// recreated: it is dropped from the cache and Sync returns a *MissingError
// naming it. Other records in the same Sync are still committed.
func (s *Store) Sync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sync: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var missing []recordKey
	var written []*Record
	for key, rec := range s.cache {
		if !rec.dirty {
			continue
		}
		if rec.gone {
			missing = append(missing, key)
			continue
		}
		fieldsJSON, err := marshalFields(rec.fields)
		if err != nil {
			return fmt.Errorf("sync %s/%s: %w", key.table, key.id, err)
		}

		if !rec.persisted {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO records (table_id, id, fields, rev)
				VALUES (?, ?, ?, 1)
			`, key.table, key.id, fieldsJSON)
			if err != nil {
				return fmt.Errorf("sync: insert %s/%s: %w", key.table, key.id, err)
			}
			written = append(written, rec)
			continue
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE records SET fields = ?, rev = rev + 1
			WHERE table_id = ? AND id = ?
		`, fieldsJSON, key.table, key.id)
		if err != nil {
			return fmt.Errorf("sync: update %s/%s: %w", key.table, key.id, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sync: rows affected: %w", err)
		}
		if n == 0 {
			missing = append(missing, key)
			continue
		}
		written = append(written, rec)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sync: commit: %w", err)
	}

	for _, rec := range written {
		rec.persisted = true
		rec.dirty = false
	}
	for _, key := range missing {
		delete(s.cache, key)
	}

	if err := s.refreshLocked(ctx); err != nil {
		return err
	}

	if len(missing) > 0 {
		merr := &MissingError{Keys: make([]RecordKey, len(missing))}
		for i, key := range missing {
			merr.Keys[i] = RecordKey{Table: key.table, ID: key.id}
		}
		return merr
	}
	return nil
}

// RecordKey names a record.
type RecordKey struct {
	Table string
	ID    string
}

func (k RecordKey) String() string { return k.Table + "/" + k.ID }

// MissingError is returned by Sync when dirty records turned out to be
// deleted. It wraps ErrNotFound.
type MissingError struct {
	Keys []RecordKey
}

func (e *MissingError) Error() string {
	names := make([]string, len(e.Keys))
	for i, key := range e.Keys {
		names[i] = key.String()
	}
	return ErrNotFound.Error() + ": " + strings.Join(names, ", ")
}

func (e *MissingError) Unwrap() error { return ErrNotFound }

// Contains reports whether rec is among the missing records.
func (e *MissingError) Contains(rec *Record) bool {
	for _, key := range e.Keys {
		if key.Table == rec.table && key.ID == rec.id {
			return true
		}
	}
	return false
}

// refreshLocked reloads clean cached records. A record whose row is gone
// stays cached as a tombstone; its next write through Sync reports ErrNotFound.
func (s *Store) refreshLocked(ctx context.Context) error {
	for key, rec := range s.cache {
		if rec.dirty || !rec.persisted || rec.gone {
			continue
		}
		var fieldsJSON string
		err := s.db.QueryRowContext(ctx, `
			SELECT fields FROM records WHERE table_id = ? AND id = ?
		`, key.table, key.id).Scan(&fieldsJSON)
		if errors.Is(err, sql.ErrNoRows) {
			rec.gone = true
			continue
		}
		if err != nil {
			return fmt.Errorf("sync: refresh %s/%s: %w", key.table, key.id, err)
		}
		if err := rec.reload(fieldsJSON); err != nil {
			return err
		}
	}
	return nil
}

// DeleteRecord removes a record from the database. A cached instance is
// kept as a tombstone so a holder that writes to it again gets ErrNotFound
// from Sync, exactly as for a deletion made by another connection.
// Returns ErrNotFound if no such row exists.
func (s *Store) DeleteRecord(ctx context.Context, table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM records WHERE table_id = ? AND id = ?
	`, table, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record: rows affected: %w", err)
	}
	if rec, ok := s.cache[recordKey{table, id}]; ok {
		rec.gone = true
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, table, id)
	}
	return nil
}
