/*
ingest.go - The ingestion gateway (Recorder)

PURPOSE:
  Validates inbound purchase reports, computes the fee split, writes the
  Purchase+Transaction pair atomically, and issues the catalog download
  side effect. One entry operation per rail.

GUARANTEES:
  - At-most-once recording per settlement hash. Deduplication is the store's
    atomic insert; a duplicate comes back as *ConflictError carrying the
    pre-existing pair, so retries are idempotent from the caller's view.
  - The fee percentage in force at ingestion is snapshotted onto the
    Transaction and never recomputed.
  - A missing catalog item is logged and ignored: the ledger must not lose
    money-movement evidence over a failed join.
  - The download-counter increment is fire-and-forget; its failure never
    rolls back the financial write.

SYNTHETIC HASHES:
  Token purchases of database-catalog items have no chain transaction, so
  when no hash is supplied one is synthesized from a nanosecond timestamp
  plus random bits. Such identifiers are not cryptographically guaranteed
  unique; a collision surfaces as an ordinary duplicate-settlement conflict
  rather than overwriting anything. Carried over from observed product
  behavior - see DESIGN.md.

SEE ALSO:
  - validate.go: field validation
  - fees.go:     split contract
  - store.go:    atomicity contract
*/
package ledger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// =============================================================================
// RECORDER
// =============================================================================

// Recorder is the ingestion gateway. Construct with NewRecorder.
type Recorder struct {
	store   Store
	catalog Directory
	feePct  decimal.Decimal
	network Network
	log     zerolog.Logger
	now     func() time.Time

	// sideEffectTimeout bounds the detached catalog increment.
	sideEffectTimeout time.Duration
}

// RecorderOption customizes a Recorder.
type RecorderOption func(*Recorder)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder builds a Recorder. feePercentage is the platform's current
// global fee percentage; defaultNetwork is applied when reports omit one.
func NewRecorder(store Store, catalog Directory, feePercentage decimal.Decimal, defaultNetwork Network, log zerolog.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:             store,
		catalog:           catalog,
		feePct:            feePercentage,
		network:           defaultNetwork,
		log:               log.With().Str("component", "recorder").Logger(),
		now:               time.Now,
		sideEffectTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetFeePercentage swaps the fee percentage used for FUTURE recordings.
// Historic transactions keep their snapshot.
func (r *Recorder) SetFeePercentage(pct decimal.Decimal) { r.feePct = pct }

// =============================================================================
// INPUTS
// =============================================================================

// BasePurchaseInput reports a purchase settled in the base chain currency.
type BasePurchaseInput struct {
	ItemID         string
	Buyer          string
	Seller         string
	SettlementHash string
	PriceBase      string
	Kind           string
	PriceUSD       float64
	BlockNumber    uint64
	GasUsed        string
	GasPrice       string
	Network        string
}

// TokenPurchaseInput reports a purchase settled in the platform token.
// SettlementHash is optional: off-chain catalog purchases have none and get
// a synthesized one.
type TokenPurchaseInput struct {
	ItemID         string
	Buyer          string
	Seller         string
	PriceToken     string
	SettlementHash string
	PriceUSD       float64
	Network        string
	TokenContract  string
	TokenSymbol    string
	TokenDecimals  int
}

// =============================================================================
// BASE CURRENCY RAIL
// =============================================================================

// RecordBasePurchase validates, deduplicates and records a base-currency
// purchase. On a duplicate settlement hash it returns a *ConflictError whose
// Existing field echoes the recorded pair.
func (r *Recorder) RecordBasePurchase(ctx context.Context, in BasePurchaseInput) (*Receipt, error) {
	if in.ItemID == "" {
		return nil, &ValidationError{Field: "itemId", Reason: "required"}
	}
	buyer, err := NormalizeAddress("buyerAddress", in.Buyer)
	if err != nil {
		return nil, err
	}
	seller, err := NormalizeAddress("sellerAddress", in.Seller)
	if err != nil {
		return nil, err
	}
	hash, err := NormalizeHash("settlementHash", in.SettlementHash)
	if err != nil {
		return nil, err
	}
	price, err := ParsePrice("priceBase", in.PriceBase)
	if err != nil {
		return nil, err
	}
	kind, err := ParseKind("purchaseKind", in.Kind)
	if err != nil {
		return nil, err
	}
	network, err := ParseNetwork("network", in.Network, r.network)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	fee, sellerAmount := Split(price, r.feePct)

	purchase := Purchase{
		ID:             uuid.NewString(),
		ItemID:         in.ItemID,
		Buyer:          buyer,
		Seller:         seller,
		SettlementHash: hash,
		PriceBase:      price,
		PriceToken:     decimal.Zero,
		PriceUSD:       in.PriceUSD,
		Network:        network,
		Rail:           RailBaseCurrency,
		Kind:           kind,
		Status:         StatusConfirmed,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	tx := Transaction{
		ID:             uuid.NewString(),
		SettlementHash: hash,
		Rail:           RailBaseCurrency,
		FeeAmount:      fee,
		FeePercentage:  r.feePct,
		SellerAmount:   sellerAmount,
		ChainID:        network.ChainID(),
		BlockNumber:    in.BlockNumber,
		GasUsed:        in.GasUsed,
		GasPrice:       in.GasPrice,
		ConfirmedAt:    &now,
		CreatedAt:      now,
	}

	return r.commit(ctx, purchase, tx)
}

// =============================================================================
// TOKEN RAIL
// =============================================================================

// RecordTokenPurchase validates, deduplicates and records a token purchase.
// The fee split runs in token units under the same contract as the base rail.
func (r *Recorder) RecordTokenPurchase(ctx context.Context, in TokenPurchaseInput) (*Receipt, error) {
	if in.ItemID == "" {
		return nil, &ValidationError{Field: "itemId", Reason: "required"}
	}
	buyer, err := NormalizeAddress("buyerAddress", in.Buyer)
	if err != nil {
		return nil, err
	}
	seller, err := NormalizeAddress("sellerAddress", in.Seller)
	if err != nil {
		return nil, err
	}
	price, err := ParsePrice("priceToken", in.PriceToken)
	if err != nil {
		return nil, err
	}
	network, err := ParseNetwork("network", in.Network, r.network)
	if err != nil {
		return nil, err
	}

	var hash SettlementHash
	if in.SettlementHash != "" {
		hash, err = NormalizeHash("settlementHash", in.SettlementHash)
		if err != nil {
			return nil, err
		}
	} else {
		hash = r.synthesizeHash()
	}

	now := r.now().UTC()
	fee, sellerAmount := Split(price, r.feePct)

	purchase := Purchase{
		ID:             uuid.NewString(),
		ItemID:         in.ItemID,
		Buyer:          buyer,
		Seller:         seller,
		SettlementHash: hash,
		PriceBase:      decimal.Zero,
		PriceToken:     price,
		PriceUSD:       in.PriceUSD,
		Network:        network,
		Rail:           RailToken,
		Kind:           KindCatalogPurchase,
		Status:         StatusConfirmed,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	tx := Transaction{
		ID:             uuid.NewString(),
		SettlementHash: hash,
		Rail:           RailToken,
		FeeAmount:      fee,
		FeePercentage:  r.feePct,
		SellerAmount:   sellerAmount,
		ChainID:        network.ChainID(),
		TokenContract:  in.TokenContract,
		TokenSymbol:    in.TokenSymbol,
		TokenDecimals:  in.TokenDecimals,
		ConfirmedAt:    &now,
		CreatedAt:      now,
	}

	return r.commit(ctx, purchase, tx)
}

// =============================================================================
// COMMIT PATH
// =============================================================================

func (r *Recorder) commit(ctx context.Context, purchase Purchase, tx Transaction) (*Receipt, error) {
	err := r.store.RecordPair(ctx, purchase, tx)
	if IsConflict(err) {
		existing, lookupErr := r.store.PairByHash(ctx, purchase.SettlementHash)
		if lookupErr != nil {
			return nil, fmt.Errorf("settlement %s conflicted but lookup failed: %w", purchase.SettlementHash, lookupErr)
		}
		r.log.Info().
			Str("settlement_hash", string(purchase.SettlementHash)).
			Str("rail", string(purchase.Rail)).
			Msg("duplicate settlement, returning existing record")
		return nil, &ConflictError{Hash: purchase.SettlementHash, Existing: existing}
	}
	if err != nil {
		return nil, fmt.Errorf("record pair: %w", err)
	}

	r.incrementDownload(purchase.ItemID, purchase.SettlementHash)

	r.log.Info().
		Str("settlement_hash", string(purchase.SettlementHash)).
		Str("rail", string(purchase.Rail)).
		Str("item_id", purchase.ItemID).
		Str("price", purchase.RailPrice().String()).
		Str("fee", tx.FeeAmount.String()).
		Msg("purchase recorded")

	return &Receipt{Purchase: purchase, Transaction: tx}, nil
}

// incrementDownload bumps the catalog counter on a detached context. Failures
// are logged, never propagated: the money is already recorded.
func (r *Recorder) incrementDownload(itemID string, hash SettlementHash) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.sideEffectTimeout)
		defer cancel()

		if err := r.catalog.IncrementDownload(ctx, itemID); err != nil {
			evt := r.log.Warn().Str("item_id", itemID).Str("settlement_hash", string(hash))
			if IsNotFound(err) {
				evt.Msg("catalog item missing, download count not incremented")
				return
			}
			evt.Err(err).Msg("download count increment failed")
		}
	}()
}

// synthesizeHash builds a settlement hash for off-chain token purchases from
// a nanosecond timestamp plus 8 random bytes. Collision is theoretically
// possible; the unique index treats it as an ordinary duplicate.
func (r *Recorder) synthesizeHash() SettlementHash {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// Degenerate fallback: timestamp-only. Still funneled through the
		// conflict path if it collides.
		return SettlementHash(fmt.Sprintf("0x%x", r.now().UnixNano()))
	}
	return SettlementHash(fmt.Sprintf("0x%x%s", r.now().UnixNano(), hex.EncodeToString(buf)))
}
