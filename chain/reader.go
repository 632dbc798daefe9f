/*
Package chain exposes the settlement contract's on-chain state to the
reconciliation service: the contract balance and the emitted settlement
events. The chain is treated as an external, already-consistent oracle -
this package only reads it, it never writes.

SEE ALSO:
  - rpc.go:    the JSON-RPC implementation
  - reconcile: the only consumer
*/
package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/prism/market-ledger/ledger"
	"github.com/shopspring/decimal"
)

// Event is one settlement emitted by the contract.
type Event struct {
	Price       decimal.Decimal
	Fee         decimal.Decimal
	Buyer       ledger.Address
	Seller      ledger.Address
	BlockNumber uint64
	Timestamp   time.Time
}

// Reader reads the settlement contract. Implementations must honor context
// deadlines: the reconciliation service degrades on failure rather than
// blocking callers.
//
// All errors indicating an unreachable or failing chain endpoint wrap
// ledger.ErrChainUnavailable so callers can detect them with errors.Is.
type Reader interface {
	// HeadBlock returns the current chain head number.
	HeadBlock(ctx context.Context) (uint64, error)

	// BlockTime returns the timestamp of the given block. Reconciliation
	// uses it to express a block window as a time window over the ledger.
	BlockTime(ctx context.Context, number uint64) (time.Time, error)

	// Balance returns the contract's current balance in base-currency units.
	Balance(ctx context.Context) (decimal.Decimal, error)

	// Events returns the settlement events in [fromBlock, toBlock].
	Events(ctx context.Context, fromBlock, toBlock uint64) ([]Event, error)
}

// Disabled is the Reader used when no RPC endpoint is configured. Every call
// reports the chain unavailable, so reconciliation permanently degrades to
// ledger-only figures.
type Disabled struct{}

func (Disabled) HeadBlock(context.Context) (uint64, error) {
	return 0, fmt.Errorf("chain reader disabled: %w", ledger.ErrChainUnavailable)
}

func (Disabled) BlockTime(context.Context, uint64) (time.Time, error) {
	return time.Time{}, fmt.Errorf("chain reader disabled: %w", ledger.ErrChainUnavailable)
}

func (Disabled) Balance(context.Context) (decimal.Decimal, error) {
	return decimal.Zero, fmt.Errorf("chain reader disabled: %w", ledger.ErrChainUnavailable)
}

func (Disabled) Events(context.Context, uint64, uint64) ([]Event, error) {
	return nil, fmt.Errorf("chain reader disabled: %w", ledger.ErrChainUnavailable)
}
