/*
errors.go - Centralized error types for the ledger core

PURPOSE:
  All ledger error types in one place. The taxonomy mirrors the failure modes
  of the write path:

  1. Validation errors  - malformed input, rejected before any store access
  2. Conflict errors    - duplicate settlement hash; the caller gets the
                          already-recorded pair back, never a bare failure
  3. Not-found errors   - referenced catalog item missing (non-fatal)
  4. Upstream errors    - chain collaborator unreachable (reconciliation
                          degrades, never fails the request)

USAGE:
  if conflict := ledger.AsConflict(err); conflict != nil {
      // conflict.Existing holds the pre-existing Purchase+Transaction
  }

SEE ALSO:
  - ingest.go: produces these errors
  - api/handlers.go: maps them to HTTP statuses
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateSettlement is returned when a settlement hash is already
	// recorded. Expected under client retries; carries idempotent semantics.
	ErrDuplicateSettlement = errors.New("duplicate settlement hash")

	// ErrItemNotFound is returned when a catalog item id does not resolve.
	// Non-fatal for ingestion: the financial record is still written.
	ErrItemNotFound = errors.New("catalog item not found")

	// ErrChainUnavailable is returned when the chain event reader cannot be
	// reached within its timeout/retry budget.
	ErrChainUnavailable = errors.New("chain data unavailable")

	// ErrNotRecorded is returned by lookups for unknown settlement hashes.
	ErrNotRecorded = errors.New("settlement not recorded")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a malformed or missing input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError reports a duplicate settlement hash and echoes the
// pre-existing state so callers can treat the retry as success.
type ConflictError struct {
	Hash     SettlementHash
	Existing *Receipt
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("settlement %s already recorded", e.Hash)
}

func (e *ConflictError) Unwrap() error { return ErrDuplicateSettlement }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict reports whether err is a duplicate-settlement conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateSettlement)
}

// AsConflict returns the ConflictError carried by err, or nil.
func AsConflict(err error) *ConflictError {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce
	}
	return nil
}

// IsNotFound reports whether err indicates a missing record or item.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrItemNotFound) || errors.Is(err, ErrNotRecorded)
}
