/*
revenue.go - Windowed base-rail revenue

Sums confirmed base-currency purchases from a point in time onward. The
reconciliation service uses this to compare the ledger against a chain event
scan over the same window instead of against all-time totals.
*/
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/prism/market-ledger/ledger"
	"github.com/shopspring/decimal"
)

// RevenueSince returns the decimal base-rail revenue and purchase count for
// confirmed purchases created in [from, now). Token-rail purchases are
// excluded: they settle off the contract and have no chain-side counterpart.
// Not cached; the window start differs per call.
func (e *Engine) RevenueSince(ctx context.Context, from time.Time) (decimal.Decimal, int, error) {
	purchases, err := e.store.ConfirmedInRange(ctx, from, e.now().UTC())
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("load confirmed purchases since %s: %w", from.UTC().Format(time.RFC3339), err)
	}

	total := decimal.Zero
	count := 0
	for i := range purchases {
		if purchases[i].Rail != ledger.RailBaseCurrency {
			continue
		}
		total = total.Add(purchases[i].PriceBase)
		count++
	}
	return total, count, nil
}
