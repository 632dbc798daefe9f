/*
store.go - Persistence interfaces for the purchase ledger

PURPOSE:
  Defines the boundary between the ledger domain and the database.

ATOMICITY CONTRACT:
  RecordPair writes a Purchase and its Transaction as one atomic unit: both
  persist or neither does. The unique constraint on settlement_hash IS the
  deduplication mechanism - implementations must never pre-check existence in
  a separate step, because the gap between check and insert would admit
  duplicates under concurrent submission. The insert itself resolves the
  race; the loser receives ErrDuplicateSettlement.

APPEND-MOSTLY CONTRACT:
  There is no Delete. Financial records are permanent. The only mutation is
  the one-shot confirmation metadata covered by the Purchase lifecycle.

IMPLEMENTATIONS:
  - store/sqlite:       production store (unique index enforces the race)
  - ledger/store:       in-memory store for tests and development

SEE ALSO:
  - ingest.go: the only writer
  - stats:     read-side consumer of QueryStore
*/
package ledger

import (
	"context"
	"time"
)

// Store is the write path plus point lookups.
type Store interface {
	// RecordPair atomically persists a purchase and its transaction.
	// Returns ErrDuplicateSettlement (possibly wrapped) if the settlement
	// hash is already recorded.
	RecordPair(ctx context.Context, p Purchase, t Transaction) error

	// PairByHash returns the recorded pair for a settlement hash, or
	// ErrNotRecorded.
	PairByHash(ctx context.Context, hash SettlementHash) (*Receipt, error)

	// CountConfirmed returns the number of confirmed purchases.
	CountConfirmed(ctx context.Context) (int, error)
}

// QueryStore adds the read-side queries the aggregation engine needs.
// All listings are ordered by creation time ascending, then id ascending,
// so downstream grouping is deterministic for a given ledger snapshot.
type QueryStore interface {
	Store

	// AllConfirmed returns every confirmed purchase.
	AllConfirmed(ctx context.Context) ([]Purchase, error)

	// ConfirmedInRange returns confirmed purchases created in [from, to).
	ConfirmedInRange(ctx context.Context, from, to time.Time) ([]Purchase, error)
}
