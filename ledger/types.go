/*
Package ledger provides the purchase ledger core.

PURPOSE:
  This package contains the domain types and write path for the marketplace
  purchase ledger. Every settlement attempt - whether paid in the base chain
  currency or in the platform token - is recorded here exactly once, together
  with an audit Transaction carrying the fee split computed at ingestion time.

KEY CONCEPTS IN THIS FILE (types.go):
  - Purchase: one record per settlement attempt, keyed by settlement hash
  - Transaction: the 1:1 audit record with fee/seller amounts and chain data
  - Address / SettlementHash: normalized wire identifiers
  - Rail: which payment channel settled the purchase

DESIGN PRINCIPLES:
  1. Append-mostly: records are never deleted; corrections never rewrite money
  2. Precision: decimal.Decimal everywhere money is summed or split
  3. Snapshots: the fee percentage is frozen onto each Transaction at write
     time and never recomputed from current configuration
  4. One meaningful price per rail: PriceBase for base_currency, PriceToken
     for token; the other side stays zero

SEE ALSO:
  - fees.go:     fee split contract
  - ingest.go:   the Recorder (ingestion gateway)
  - store.go:    persistence interfaces
  - validate.go: input validation and normalization
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// Address is a chain address, always stored normalized: lower-case,
// 0x-prefixed, 40 hex digits.
type Address string

// SettlementHash uniquely identifies a completed payment. Chain-settled
// purchases carry the real transaction hash; purely off-chain token purchases
// carry a synthesized one (see Recorder.RecordTokenPurchase).
//
// The format is intentionally permissive (0x + at least one hex digit) so
// synthesized hashes share the validation path with genuine ones.
type SettlementHash string

// =============================================================================
// ENUMS
// =============================================================================

// Rail is the payment channel a purchase settled on.
type Rail string

const (
	RailBaseCurrency Rail = "base_currency"
	RailToken        Rail = "token"
)

// Kind distinguishes what was bought.
type Kind string

const (
	KindCatalogPurchase     Kind = "catalog_purchase"
	KindOnchainItemPurchase Kind = "onchain_item_purchase"
)

// Status is the purchase lifecycle state. Transitions are pending->confirmed
// and pending->failed only; a confirmed record is immutable apart from
// append-only confirmation metadata set exactly once.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Network is a supported settlement chain.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
	NetworkDevnet  Network = "devnet"
)

var networkChainIDs = map[Network]int64{
	NetworkMainnet: 1,
	NetworkTestnet: 11155111,
	NetworkDevnet:  1337,
}

// ChainID returns the numeric chain id for the network, or 0 if unsupported.
func (n Network) ChainID() int64 { return networkChainIDs[n] }

// Supported reports whether the network is one this platform settles on.
func (n Network) Supported() bool {
	_, ok := networkChainIDs[n]
	return ok
}

// =============================================================================
// PURCHASE - One record per settlement attempt
// =============================================================================

type Purchase struct {
	ID             string
	ItemID         string
	Buyer          Address
	Seller         Address
	SettlementHash SettlementHash
	PriceBase      decimal.Decimal
	PriceToken     decimal.Decimal
	PriceUSD       float64 // informational only, never summed for accounting
	Network        Network
	Rail           Rail
	Kind           Kind
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RailPrice returns the economically meaningful price for the purchase's rail.
func (p *Purchase) RailPrice() decimal.Decimal {
	if p.Rail == RailToken {
		return p.PriceToken
	}
	return p.PriceBase
}

// =============================================================================
// TRANSACTION - Audit record, 1:1 with a Purchase by settlement hash
// =============================================================================

// Transaction carries the fee split snapshot and chain metadata for a
// purchase. FeePercentage is the platform percentage at the moment of
// ingestion; later configuration changes must not alter historic records.
//
// Invariant: FeeAmount + SellerAmount equals the purchase's rail price after
// canonical rounding (see fees.go).
type Transaction struct {
	ID             string
	SettlementHash SettlementHash
	Rail           Rail
	FeeAmount      decimal.Decimal
	FeePercentage  decimal.Decimal
	SellerAmount   decimal.Decimal
	ChainID        int64
	BlockNumber    uint64
	GasUsed        string
	GasPrice       string
	TokenContract  string
	TokenSymbol    string
	TokenDecimals  int
	ConfirmedAt    *time.Time
	CreatedAt      time.Time
}

// =============================================================================
// RECEIPT - What a successful (or conflicting) ingestion returns
// =============================================================================

// Receipt is the Purchase+Transaction pair recorded for one settlement.
type Receipt struct {
	Purchase    Purchase
	Transaction Transaction
}

// =============================================================================
// CATALOG COLLABORATOR
// =============================================================================

// ItemRef is the read-only view of a catalog item used for aggregation joins.
// The catalog service owns these records; the ledger only reads them and
// issues download-counter increments.
type ItemRef struct {
	ID            string
	Name          string
	Category      string
	DownloadCount int64
	CreatedAt     time.Time
}

// Directory is the capability interface over the external catalog service.
// Implementations must return ErrItemNotFound (possibly wrapped) for unknown
// items so callers can recover locally.
type Directory interface {
	// Item resolves an item id to its display metadata.
	Item(ctx context.Context, id string) (*ItemRef, error)

	// IncrementDownload bumps the item's download counter. Best effort:
	// ingestion never fails a financial write over this.
	IncrementDownload(ctx context.Context, id string) error

	// ActiveItemCount returns how many items are currently listed.
	ActiveItemCount(ctx context.Context) (int, error)

	// CreatedSince returns how many items were listed at or after t.
	CreatedSince(ctx context.Context, t time.Time) (int, error)
}
