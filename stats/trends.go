/*
trends.go - Named-period trend reports

Groups confirmed purchases by calendar day for a named period (24h, 7d, 30d)
and derives the period summary: totals plus per-day averages, with the
transaction average rounded to the nearest integer.
*/
package stats

import (
	"context"
	"fmt"
	"math"

	"github.com/prism/market-ledger/ledger"
	"github.com/shopspring/decimal"
)

// TrendPoint is one day of a trend report.
type TrendPoint struct {
	Date          string
	Volume        decimal.Decimal
	Transactions  int
	UniqueBuyers  int
	UniqueSellers int
}

// TrendsReport is the per-period summary.
type TrendsReport struct {
	Period                string
	Days                  []TrendPoint
	TotalVolume           decimal.Decimal
	TotalTransactions     int
	AvgVolumePerDay       decimal.Decimal
	AvgTransactionsPerDay int
}

var trendPeriods = map[string]int{
	"24h": 1,
	"7d":  7,
	"30d": 30,
}

// DefaultTrendPeriod is used when the caller omits the period.
const DefaultTrendPeriod = "7d"

// Trends computes the trend report for a named period. Empty period defaults
// to 7d; unknown periods are a validation error.
func (e *Engine) Trends(ctx context.Context, period string) (*TrendsReport, error) {
	if period == "" {
		period = DefaultTrendPeriod
	}
	days, ok := trendPeriods[period]
	if !ok {
		return nil, &ledger.ValidationError{Field: "period", Reason: "must be one of 24h, 7d, 30d"}
	}

	today := e.today()
	key := fmt.Sprintf("trends:%s:%s", period, dayKey(today))
	if v, ok := e.cache.get(key); ok {
		return v.(*TrendsReport), nil
	}

	start := today.AddDate(0, 0, -(days - 1))
	purchases, err := e.store.ConfirmedInRange(ctx, start, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("load purchases in range: %w", err)
	}

	type bucket struct {
		volume  decimal.Decimal
		n       int
		buyers  map[ledger.Address]struct{}
		sellers map[ledger.Address]struct{}
	}
	buckets := make(map[string]*bucket, days)
	for i := range purchases {
		p := &purchases[i]
		k := dayKey(p.CreatedAt)
		b, ok := buckets[k]
		if !ok {
			b = &bucket{
				volume:  decimal.Zero,
				buyers:  make(map[ledger.Address]struct{}),
				sellers: make(map[ledger.Address]struct{}),
			}
			buckets[k] = b
		}
		b.volume = b.volume.Add(p.RailPrice())
		b.n++
		b.buyers[p.Buyer] = struct{}{}
		b.sellers[p.Seller] = struct{}{}
	}

	report := &TrendsReport{
		Period:      period,
		Days:        make([]TrendPoint, days),
		TotalVolume: decimal.Zero,
	}
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		point := TrendPoint{Date: dayKey(day), Volume: decimal.Zero}
		if b, ok := buckets[point.Date]; ok {
			point.Volume = b.volume
			point.Transactions = b.n
			point.UniqueBuyers = len(b.buyers)
			point.UniqueSellers = len(b.sellers)
		}
		report.Days[i] = point
		report.TotalVolume = report.TotalVolume.Add(point.Volume)
		report.TotalTransactions += point.Transactions
	}

	report.AvgVolumePerDay = report.TotalVolume.DivRound(decimal.NewFromInt(int64(days)), ledger.CurrencyPrecision)
	report.AvgTransactionsPerDay = int(math.Round(float64(report.TotalTransactions) / float64(days)))

	e.cache.set(key, report)
	return report, nil
}
