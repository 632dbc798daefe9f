/*
Package reconcile merges the ledger's own bookkeeping with the chain's
ground truth into one reported revenue figure.

PURPOSE:
  The ledger store records what the platform believes happened; the
  settlement contract's balance and event log record what actually settled.
  This service reads both, compares them, and reports
  max(chain-derived, ledger-derived).

THE MAX() POLICY:
  Reporting the larger of the two figures is carried forward deliberately
  from the product's observed behavior. It can mask a genuine discrepancy
  (a purchase recorded but never settled, or settled but never recorded)
  instead of surfacing it, so the report always includes both source
  figures, the contract balance and a Divergent flag - the merge is
  unchanged, but a divergence is at least detectable. See DESIGN.md.

DEGRADATION:
  Chain calls run under an explicit timeout with bounded retries inside the
  reader. If the chain is unreachable the report falls back to ledger-only
  figures with ChainAvailable=false; the request itself never fails over an
  upstream outage, and aggregation queries are never affected.
*/
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/prism/market-ledger/chain"
	"github.com/prism/market-ledger/stats"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Aggregates is the slice of the aggregation engine this service needs.
type Aggregates interface {
	MarketStats(ctx context.Context) (*stats.MarketStats, error)
	RevenueSince(ctx context.Context, from time.Time) (decimal.Decimal, int, error)
}

// DefaultBlockWindow bounds the event scan; full-history scans are
// unbounded cost.
const DefaultBlockWindow = 50_000

// Report is the reconciled revenue response.
type Report struct {
	// Reported is max(LedgerRevenue, ChainRevenue) - see the package comment.
	Reported decimal.Decimal

	// LedgerRevenue and LedgerTxCount cover the same window as the chain
	// scan (base rail, from WindowStart) so the two sides are comparable.
	// When the report degrades to ledger-only they are all-time figures.
	LedgerRevenue decimal.Decimal
	LedgerTxCount int

	ChainRevenue    decimal.Decimal
	ChainTxCount    int
	ContractBalance decimal.Decimal

	// ChainAvailable is false when the report degraded to ledger-only.
	ChainAvailable bool

	// Divergent is set when both sources answered and disagree.
	Divergent bool

	// WindowStart is the timestamp of FromBlock, the lower bound of both
	// sides of the comparison. Zero when degraded.
	WindowStart time.Time

	FromBlock   uint64
	ToBlock     uint64
	GeneratedAt time.Time
}

// Service reconciles ledger-derived and chain-derived revenue.
type Service struct {
	ledger      Aggregates
	reader      chain.Reader
	blockWindow uint64
	timeout     time.Duration
	log         zerolog.Logger
	now         func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithBlockWindow bounds the trailing event scan.
func WithBlockWindow(n uint64) Option {
	return func(s *Service) { s.blockWindow = n }
}

// WithTimeout bounds the whole chain-side read.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(ledger Aggregates, reader chain.Reader, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		ledger:      ledger,
		reader:      reader,
		blockWindow: DefaultBlockWindow,
		timeout:     15 * time.Second,
		log:         log.With().Str("component", "reconcile").Logger(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Revenue produces the reconciled report. The ledger side must succeed; the
// chain side degrades per the package comment. The ledger figure covers the
// same window as the event scan: the timestamp of the scan's first block
// bounds both sides, so an old ledger does not read as divergence.
func (s *Service) Revenue(ctx context.Context) (*Report, error) {
	report := &Report{GeneratedAt: s.now().UTC()}

	chainCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.readChain(chainCtx, report); err != nil {
		s.log.Warn().Err(err).Msg("chain data unavailable, reporting ledger-only figures")
		ledgerStats, lerr := s.ledger.MarketStats(ctx)
		if lerr != nil {
			return nil, fmt.Errorf("ledger revenue: %w", lerr)
		}
		report.Reported = ledgerStats.TotalRevenueBase
		report.LedgerRevenue = ledgerStats.TotalRevenueBase
		report.LedgerTxCount = ledgerStats.TotalPurchases
		return report, nil
	}

	revenue, count, err := s.ledger.RevenueSince(ctx, report.WindowStart)
	if err != nil {
		return nil, fmt.Errorf("ledger revenue: %w", err)
	}
	report.LedgerRevenue = revenue
	report.LedgerTxCount = count

	report.ChainAvailable = true
	report.Reported = decimal.Max(report.LedgerRevenue, report.ChainRevenue)
	report.Divergent = !report.LedgerRevenue.Equal(report.ChainRevenue)
	if report.Divergent {
		s.log.Warn().
			Str("ledger_revenue", report.LedgerRevenue.String()).
			Str("chain_revenue", report.ChainRevenue.String()).
			Str("contract_balance", report.ContractBalance.String()).
			Time("window_start", report.WindowStart).
			Msg("ledger and chain revenue figures diverge")
	}
	return report, nil
}

func (s *Service) readChain(ctx context.Context, report *Report) error {
	head, err := s.reader.HeadBlock(ctx)
	if err != nil {
		return err
	}
	from := uint64(0)
	if head > s.blockWindow {
		from = head - s.blockWindow
	}

	windowStart, err := s.reader.BlockTime(ctx, from)
	if err != nil {
		return err
	}

	balance, err := s.reader.Balance(ctx)
	if err != nil {
		return err
	}

	events, err := s.reader.Events(ctx, from, head)
	if err != nil {
		return err
	}

	total := decimal.Zero
	for _, ev := range events {
		total = total.Add(ev.Price)
	}

	report.ContractBalance = balance
	report.ChainRevenue = total
	report.ChainTxCount = len(events)
	report.WindowStart = windowStart
	report.FromBlock = from
	report.ToBlock = head
	return nil
}
