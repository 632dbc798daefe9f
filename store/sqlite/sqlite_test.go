package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prism/market-ledger/ledger"
	"github.com/prism/market-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func pair(hash string, createdAt time.Time) (ledger.Purchase, ledger.Transaction) {
	confirmed := createdAt
	p := ledger.Purchase{
		ID:             uuid.NewString(),
		ItemID:         "item-1",
		Buyer:          "0x1111111111111111111111111111111111111111",
		Seller:         "0x2222222222222222222222222222222222222222",
		SettlementHash: ledger.SettlementHash(hash),
		PriceBase:      dec("1.0"),
		PriceToken:     decimal.Zero,
		PriceUSD:       2500,
		Network:        ledger.NetworkMainnet,
		Rail:           ledger.RailBaseCurrency,
		Kind:           ledger.KindCatalogPurchase,
		Status:         ledger.StatusConfirmed,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
	tx := ledger.Transaction{
		ID:             uuid.NewString(),
		SettlementHash: ledger.SettlementHash(hash),
		Rail:           ledger.RailBaseCurrency,
		FeeAmount:      dec("0.025"),
		FeePercentage:  dec("2.5"),
		SellerAmount:   dec("0.975"),
		ChainID:        1,
		BlockNumber:    42,
		GasUsed:        "21000",
		GasPrice:       "30000000000",
		ConfirmedAt:    &confirmed,
		CreatedAt:      createdAt,
	}
	return p, tx
}

// =============================================================================
// ATOMIC PAIR WRITES
// =============================================================================

func TestRecordPair_RoundTrip(t *testing.T) {
	// GIVEN: A purchase and its transaction
	// WHEN: Recording and reading back by hash
	// THEN: Every field survives, including decimal precision

	store := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC)
	p, tx := pair("0xabc123", now)

	require.NoError(t, store.RecordPair(ctx, p, tx))

	got, err := store.PairByHash(ctx, "0xabc123")
	require.NoError(t, err)

	assert.Equal(t, p.ID, got.Purchase.ID)
	assert.Equal(t, p.Buyer, got.Purchase.Buyer)
	assert.True(t, got.Purchase.PriceBase.Equal(dec("1.0")))
	assert.Equal(t, ledger.StatusConfirmed, got.Purchase.Status)
	assert.True(t, got.Purchase.CreatedAt.Equal(now))

	assert.Equal(t, tx.ID, got.Transaction.ID)
	assert.True(t, got.Transaction.FeeAmount.Equal(dec("0.025")))
	assert.True(t, got.Transaction.FeePercentage.Equal(dec("2.5")))
	assert.True(t, got.Transaction.SellerAmount.Equal(dec("0.975")))
	assert.Equal(t, "21000", got.Transaction.GasUsed)
	require.NotNil(t, got.Transaction.ConfirmedAt)
	assert.True(t, got.Transaction.ConfirmedAt.Equal(now))
}

func TestRecordPair_DuplicateHashRejected(t *testing.T) {
	// GIVEN: A recorded settlement hash
	// WHEN: Inserting a second pair with the same hash
	// THEN: ErrDuplicateSettlement, and the original rows are untouched

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	p1, tx1 := pair("0xabc123", now)
	require.NoError(t, store.RecordPair(ctx, p1, tx1))

	p2, tx2 := pair("0xabc123", now)
	p2.PriceBase = dec("999")

	err := store.RecordPair(ctx, p2, tx2)
	require.ErrorIs(t, err, ledger.ErrDuplicateSettlement)

	got, err := store.PairByHash(ctx, "0xabc123")
	require.NoError(t, err)
	assert.Equal(t, p1.ID, got.Purchase.ID)
	assert.True(t, got.Purchase.PriceBase.Equal(dec("1.0")))

	n, err := store.CountConfirmed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPairByHash_UnknownHash(t *testing.T) {
	store := newTestStore(t)

	_, err := store.PairByHash(context.Background(), "0xdeadbeef")
	require.ErrorIs(t, err, ledger.ErrNotRecorded)
}

// =============================================================================
// READ QUERIES
// =============================================================================

func TestCountConfirmed_IgnoresOtherStatuses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	p1, tx1 := pair("0x01", now)
	require.NoError(t, store.RecordPair(ctx, p1, tx1))

	p2, tx2 := pair("0x02", now)
	p2.Status = ledger.StatusFailed
	require.NoError(t, store.RecordPair(ctx, p2, tx2))

	n, err := store.CountConfirmed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAllConfirmed_OrderedByCreation(t *testing.T) {
	// GIVEN: Pairs inserted out of chronological order
	// WHEN: Listing confirmed purchases
	// THEN: Rows come back created_at ascending

	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)

	for _, offset := range []int{2, 0, 1} {
		p, tx := pair("0x0"+string(rune('a'+offset)), base.AddDate(0, 0, offset))
		require.NoError(t, store.RecordPair(ctx, p, tx))
	}

	got, err := store.AllConfirmed(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].CreatedAt.Before(got[1].CreatedAt))
	assert.True(t, got[1].CreatedAt.Before(got[2].CreatedAt))
}

func TestConfirmedInRange_HalfOpenWindow(t *testing.T) {
	// GIVEN: Purchases on three consecutive days
	// WHEN: Querying [day1, day3)
	// THEN: Day 1 and 2 included, day 3 excluded

	store := newTestStore(t)
	ctx := context.Background()
	day1 := time.Date(2026, time.August, 1, 10, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	day3 := day1.AddDate(0, 0, 2)

	for i, ts := range []time.Time{day1, day2, day3} {
		p, tx := pair("0x0"+string(rune('a'+i)), ts)
		require.NoError(t, store.RecordPair(ctx, p, tx))
	}

	from := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.August, 3, 0, 0, 0, 0, time.UTC)

	got, err := store.ConfirmedInRange(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].CreatedAt.Equal(day1))
	assert.True(t, got[1].CreatedAt.Equal(day2))
}

func TestConfirmedInRange_SubsecondAfterWindowStart(t *testing.T) {
	// GIVEN: A purchase created fractions of a second after the window start
	// WHEN: Querying a range beginning exactly at midnight
	// THEN: The purchase is included; the stored encoding must sort
	//       "...00:00:00.3Z" after "...00:00:00Z", not before it

	store := newTestStore(t)
	ctx := context.Background()

	created := time.Date(2026, time.August, 28, 0, 0, 0, 300_000_000, time.UTC)
	p, tx := pair("0xa1", created)
	require.NoError(t, store.RecordPair(ctx, p, tx))

	from := time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.August, 31, 0, 0, 0, 0, time.UTC)

	got, err := store.ConfirmedInRange(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].CreatedAt.Equal(created))
}

func TestAllConfirmed_SubsecondOrdering(t *testing.T) {
	// GIVEN: Purchases within the same second, differing only in fraction
	// WHEN: Listing confirmed purchases
	// THEN: Ordering follows real time, including across the whole-second row

	store := newTestStore(t)
	ctx := context.Background()
	sec := time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC)

	for _, tc := range []struct {
		hash string
		ns   int
	}{
		{"0xb2", 500_000_000},
		{"0xb1", 0},
		{"0xb3", 999_999_999},
	} {
		p, tx := pair(tc.hash, sec.Add(time.Duration(tc.ns)))
		require.NoError(t, store.RecordPair(ctx, p, tx))
	}

	got, err := store.AllConfirmed(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, ledger.SettlementHash("0xb1"), got[0].SettlementHash)
	assert.Equal(t, ledger.SettlementHash("0xb2"), got[1].SettlementHash)
	assert.Equal(t, ledger.SettlementHash("0xb3"), got[2].SettlementHash)
}

// =============================================================================
// TOKEN METADATA
// =============================================================================

func TestRecordPair_TokenFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	p, tx := pair("0xt1", now)
	p.Rail = ledger.RailToken
	p.PriceBase = decimal.Zero
	p.PriceToken = dec("100")
	tx.Rail = ledger.RailToken
	tx.GasUsed = ""
	tx.GasPrice = ""
	tx.TokenContract = "0x3333333333333333333333333333333333333333"
	tx.TokenSymbol = "PRSM"
	tx.TokenDecimals = 18

	require.NoError(t, store.RecordPair(ctx, p, tx))

	got, err := store.PairByHash(ctx, "0xt1")
	require.NoError(t, err)
	assert.True(t, got.Purchase.PriceToken.Equal(dec("100")))
	assert.Equal(t, "PRSM", got.Transaction.TokenSymbol)
	assert.Equal(t, 18, got.Transaction.TokenDecimals)
	assert.Empty(t, got.Transaction.GasUsed)
}
