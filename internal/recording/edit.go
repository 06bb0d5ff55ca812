package recording

import (
	"context"
	"fmt"

	"github.com/roach88/embarcadero/internal/refcount"
	"github.com/roach88/embarcadero/internal/store"
)

// RenamePath sets the display name of a path. An empty name clears it.
// Returns an error wrapping store.ErrNotFound if the path does not exist.
func (c *Controller) RenamePath(ctx context.Context, recordID, name string) error {
	return refcount.With(c.handle, func(ds *store.Locked) error {
		ds.Lock()
		defer ds.Unlock()

		rec, err := ds.Store().Table(PathsTable).Get(ctx, recordID)
		if err != nil {
			return fmt.Errorf("rename path: %w", err)
		}
		snap := rec.Snapshot()
		NewPathWriter(rec).SetName(name)

		alive, err := ds.SyncQuietly(ctx, rec)
		if err != nil {
			// A failed rename must not ride along with the next sync.
			if rec.Dirty() {
				snap.Restore()
			}
			return fmt.Errorf("rename path: %w", err)
		}
		if !alive {
			return fmt.Errorf("rename path: %w: %s/%s", store.ErrNotFound, PathsTable, recordID)
		}
		return nil
	})
}

// DeletePath removes a path. Deleting the path being recorded ends that
// recording at its next sample.
func (c *Controller) DeletePath(ctx context.Context, recordID string) error {
	return refcount.With(c.handle, func(ds *store.Locked) error {
		ds.Lock()
		defer ds.Unlock()

		if err := ds.Store().DeleteRecord(ctx, PathsTable, recordID); err != nil {
			return fmt.Errorf("delete path: %w", err)
		}
		c.logger.Info("path deleted", "record", recordID)
		// This notifies live queries.
		_, err := ds.SyncQuietly(ctx)
		return err
	})
}
