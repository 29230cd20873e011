// Package dedup owns the persisted set of listing fingerprints. The store
// is the single source of truth for "have we seen this listing"; the
// pipeline never touches storage except through the Store interface.
package dedup

import (
	"context"
	"fmt"
	"time"

	"flatwatch/internal/model"
)

// StorageError means the store is unavailable. The scheduler aborts the
// whole cycle for that source, so nothing fetched in a failed-storage cycle
// is dispatched, and retries at the next interval.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("dedup store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Stats summarizes the stored history for the stats endpoint.
type Stats struct {
	Total    int64            `json:"total"`
	Last24h  int64            `json:"last_24h"`
	BySource map[string]int64 `json:"by_source"`
}

// Store is the deduplication store adapter.
//
// Record is idempotent: recording an already-present fingerprint is a no-op
// success (inserted=false), never an error, so a race between an Exists
// check and a concurrent writer is harmless. Writes are append-only; Purge
// is an explicit maintenance operation, never part of the ingest flow.
type Store interface {
	Exists(ctx context.Context, fingerprint string) (bool, error)
	Record(ctx context.Context, l model.Listing) (inserted bool, err error)
	Purge(ctx context.Context, olderThan time.Time) (int64, error)
	Stats(ctx context.Context) (Stats, error)
}
