package reconcile_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prism/market-ledger/chain"
	"github.com/prism/market-ledger/ledger"
	"github.com/prism/market-ledger/reconcile"
	"github.com/prism/market-ledger/stats"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

type fakeAggregates struct {
	revenue string
	count   int
	err     error

	sinceAsked time.Time
}

func (f *fakeAggregates) MarketStats(context.Context) (*stats.MarketStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &stats.MarketStats{
		TotalRevenueBase: decimal.RequireFromString(f.revenue),
		TotalPurchases:   f.count,
	}, nil
}

func (f *fakeAggregates) RevenueSince(_ context.Context, from time.Time) (decimal.Decimal, int, error) {
	if f.err != nil {
		return decimal.Zero, 0, f.err
	}
	f.sinceAsked = from
	return decimal.RequireFromString(f.revenue), f.count, nil
}

type fakeReader struct {
	head       uint64
	blockTime  time.Time
	balance    string
	events     []chain.Event
	err        error
	blockAsked uint64
}

func (f *fakeReader) HeadBlock(context.Context) (uint64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.head, nil
}

func (f *fakeReader) BlockTime(_ context.Context, number uint64) (time.Time, error) {
	if f.err != nil {
		return time.Time{}, f.err
	}
	f.blockAsked = number
	return f.blockTime, nil
}

func (f *fakeReader) Balance(context.Context) (decimal.Decimal, error) {
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return decimal.RequireFromString(f.balance), nil
}

func (f *fakeReader) Events(context.Context, uint64, uint64) ([]chain.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

func chainEvents(prices ...string) []chain.Event {
	events := make([]chain.Event, len(prices))
	for i, p := range prices {
		events[i] = chain.Event{Price: decimal.RequireFromString(p), BlockNumber: uint64(i + 1)}
	}
	return events
}

var testNow = time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC)

func newService(ledgerSide *fakeAggregates, reader chain.Reader, opts ...reconcile.Option) *reconcile.Service {
	opts = append(opts, reconcile.WithClock(func() time.Time { return testNow }))
	return reconcile.New(ledgerSide, reader, zerolog.Nop(), opts...)
}

// =============================================================================
// MERGE POLICY
// =============================================================================

func TestRevenue_ChainHigherWins(t *testing.T) {
	// GIVEN: Ledger says 10, chain events sum to 12
	// WHEN: Reconciling
	// THEN: 12 is reported, both figures surface, divergence is flagged

	svc := newService(
		&fakeAggregates{revenue: "10", count: 3},
		&fakeReader{head: 100, balance: "12.5", events: chainEvents("5", "7")},
	)

	report, err := svc.Revenue(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Reported.Equal(decimal.RequireFromString("12")))
	assert.True(t, report.LedgerRevenue.Equal(decimal.RequireFromString("10")))
	assert.True(t, report.ChainRevenue.Equal(decimal.RequireFromString("12")))
	assert.True(t, report.ContractBalance.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, 3, report.LedgerTxCount)
	assert.Equal(t, 2, report.ChainTxCount)
	assert.True(t, report.ChainAvailable)
	assert.True(t, report.Divergent)
	assert.Equal(t, testNow, report.GeneratedAt)
}

func TestRevenue_LedgerHigherWins(t *testing.T) {
	svc := newService(
		&fakeAggregates{revenue: "20", count: 5},
		&fakeReader{head: 100, balance: "8", events: chainEvents("8")},
	)

	report, err := svc.Revenue(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Reported.Equal(decimal.RequireFromString("20")))
	assert.True(t, report.Divergent)
}

func TestRevenue_AgreementNotDivergent(t *testing.T) {
	svc := newService(
		&fakeAggregates{revenue: "15", count: 2},
		&fakeReader{head: 100, balance: "15", events: chainEvents("10", "5")},
	)

	report, err := svc.Revenue(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Reported.Equal(decimal.RequireFromString("15")))
	assert.False(t, report.Divergent)
	assert.True(t, report.ChainAvailable)
}

// =============================================================================
// DEGRADATION
// =============================================================================

func TestRevenue_ChainOutageDegradesToLedger(t *testing.T) {
	// GIVEN: An unreachable chain endpoint
	// WHEN: Reconciling
	// THEN: The request succeeds with ledger-only figures

	svc := newService(
		&fakeAggregates{revenue: "10", count: 3},
		&fakeReader{err: fmt.Errorf("eth_blockNumber after 3 attempts: %w: dial refused", ledger.ErrChainUnavailable)},
	)

	report, err := svc.Revenue(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Reported.Equal(decimal.RequireFromString("10")))
	assert.False(t, report.ChainAvailable)
	assert.False(t, report.Divergent)
	assert.True(t, report.ChainRevenue.IsZero())
}

func TestRevenue_DisabledReaderDegrades(t *testing.T) {
	svc := newService(&fakeAggregates{revenue: "7", count: 1}, chain.Disabled{})

	report, err := svc.Revenue(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Reported.Equal(decimal.RequireFromString("7")))
	assert.False(t, report.ChainAvailable)
}

func TestRevenue_LedgerFailureFails(t *testing.T) {
	// The ledger side is authoritative; its failure cannot be degraded away.
	svc := newService(
		&fakeAggregates{err: fmt.Errorf("database locked")},
		&fakeReader{head: 100, balance: "1", events: nil},
	)

	_, err := svc.Revenue(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database locked")
}

// =============================================================================
// BLOCK WINDOW
// =============================================================================

func TestRevenue_WindowBounds(t *testing.T) {
	// GIVEN: Head 100000 and a 500-block window
	// THEN: The report covers [99500, 100000]

	svc := newService(
		&fakeAggregates{revenue: "0", count: 0},
		&fakeReader{head: 100000, balance: "0", events: nil},
		reconcile.WithBlockWindow(500),
	)

	report, err := svc.Revenue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(99500), report.FromBlock)
	assert.Equal(t, uint64(100000), report.ToBlock)
}

func TestRevenue_LedgerWindowedToChainScan(t *testing.T) {
	// GIVEN: A chain scan starting at block 99500, whose timestamp is known
	// WHEN: Reconciling
	// THEN: The ledger figure is queried from that block's timestamp, so an
	//       old ledger with revenue outside the scan does not read as divergent

	windowStart := testNow.Add(-6 * time.Hour)
	ledgerSide := &fakeAggregates{revenue: "12", count: 2}
	reader := &fakeReader{
		head:      100000,
		blockTime: windowStart,
		balance:   "12",
		events:    chainEvents("5", "7"),
	}
	svc := newService(ledgerSide, reader, reconcile.WithBlockWindow(500))

	report, err := svc.Revenue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(99500), reader.blockAsked)
	assert.Equal(t, windowStart, ledgerSide.sinceAsked)
	assert.Equal(t, windowStart, report.WindowStart)
	assert.False(t, report.Divergent)
	assert.True(t, report.Reported.Equal(decimal.RequireFromString("12")))
}

func TestRevenue_WindowClampedAtGenesis(t *testing.T) {
	svc := newService(
		&fakeAggregates{revenue: "0", count: 0},
		&fakeReader{head: 100, balance: "0", events: nil},
		reconcile.WithBlockWindow(500),
	)

	report, err := svc.Revenue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), report.FromBlock)
	assert.Equal(t, uint64(100), report.ToBlock)
}
