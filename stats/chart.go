/*
chart.go - Time-bucketed chart data and trend summaries

CHART COMPLETENESS:
  ChartData(days=N) returns exactly N entries, one per calendar day (UTC),
  oldest first, ending today. Days without purchases are zero-filled, never
  omitted - chart consumers require a fixed-length, gap-free series.

ROUNDING:
  Base-currency sums round to 4 decimal places, USD sums to 2. Rounding
  happens once, on the finished per-day sums.
*/
package stats

import (
	"context"
	"fmt"

	"github.com/prism/market-ledger/ledger"
	"github.com/shopspring/decimal"
)

const (
	chartBasePrecision = 4
	chartUSDPrecision  = 2
)

// ChartEntry is one calendar day of a revenue chart.
type ChartEntry struct {
	Date         string // YYYY-MM-DD, UTC
	RevenueBase  decimal.Decimal
	RevenueUSD   decimal.Decimal
	Transactions int
}

// ChartData returns exactly `days` entries covering the calendar days up to
// and including today.
func (e *Engine) ChartData(ctx context.Context, days int) ([]ChartEntry, error) {
	if days < 1 || days > 365 {
		return nil, &ledger.ValidationError{Field: "days", Reason: "must be between 1 and 365"}
	}

	today := e.today()
	start := today.AddDate(0, 0, -(days - 1))

	key := fmt.Sprintf("chart:%d:%s", days, dayKey(today))
	if v, ok := e.cache.get(key); ok {
		return v.([]ChartEntry), nil
	}

	purchases, err := e.store.ConfirmedInRange(ctx, start, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("load purchases in range: %w", err)
	}

	type bucket struct {
		base decimal.Decimal
		usd  decimal.Decimal
		n    int
	}
	buckets := make(map[string]*bucket, days)
	for i := range purchases {
		p := &purchases[i]
		k := dayKey(p.CreatedAt)
		b, ok := buckets[k]
		if !ok {
			b = &bucket{base: decimal.Zero, usd: decimal.Zero}
			buckets[k] = b
		}
		b.base = b.base.Add(p.PriceBase)
		b.usd = b.usd.Add(decimal.NewFromFloat(p.PriceUSD))
		b.n++
	}

	entries := make([]ChartEntry, days)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		entry := ChartEntry{
			Date:        dayKey(day),
			RevenueBase: decimal.Zero,
			RevenueUSD:  decimal.Zero,
		}
		if b, ok := buckets[entry.Date]; ok {
			entry.RevenueBase = b.base.Round(chartBasePrecision)
			entry.RevenueUSD = b.usd.Round(chartUSDPrecision)
			entry.Transactions = b.n
		}
		entries[i] = entry
	}

	e.cache.set(key, entries)
	return entries, nil
}
