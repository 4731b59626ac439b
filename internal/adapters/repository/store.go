// Package repository mirrors the ledger into an opaque key-value blob store.
//
// The store is never the source of truth for scores: only the saved results
// are read back, and totals are always recomputed from them.
package repository

import "context"

// Keys written by the Mirror.
const (
	KeyGameResults    = "gameResults"
	KeyTotalScores    = "totalScores"
	KeyDetailedScores = "detailedScores"
)

// Store is a key-value blob store with a revision counter. Every successful
// Put or Delete bumps the revision and returns the new value, so a reader can
// tell whether someone else wrote since it last looked.
type Store interface {
	// Get returns the value for key. found is false for a missing key.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Put stores value under key.
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	// Delete removes key. Deleting a missing key still bumps the revision.
	Delete(ctx context.Context, key string) (uint64, error)
	// Revision returns the current revision.
	Revision(ctx context.Context) (uint64, error)
	Close() error
}
