/*
market.go - Market-wide statistics

Counts, decimal revenue totals, category rankings and the recent-activity
window, computed in one pass over the confirmed purchases.
*/
package stats

import (
	"context"
	"fmt"
	"sort"

	"github.com/prism/market-ledger/ledger"
	"github.com/shopspring/decimal"
)

// unknownCategory groups purchases whose catalog item no longer resolves.
const unknownCategory = "unknown"

// MarketStats is the market-wide snapshot.
type MarketStats struct {
	ActiveItems       int
	TotalPurchases    int
	UniqueBuyers      int
	UniqueSellers     int
	TotalRevenueBase  decimal.Decimal
	TotalRevenueToken decimal.Decimal
	TopCategories     []CategoryCount
	RecentPurchases   int
	RecentNewItems    int
	WindowDays        int
}

// CategoryCount ranks a category by confirmed purchase count.
type CategoryCount struct {
	Category  string
	Purchases int
}

// MarketStats computes the market snapshot. Total revenue is the decimal sum
// of priceBase (and analogously priceToken) across confirmed purchases -
// never floating point.
func (e *Engine) MarketStats(ctx context.Context) (*MarketStats, error) {
	const key = "market"
	if v, ok := e.cache.get(key); ok {
		return v.(*MarketStats), nil
	}

	purchases, err := e.store.AllConfirmed(ctx)
	if err != nil {
		return nil, fmt.Errorf("load confirmed purchases: %w", err)
	}

	windowStart := e.now().UTC().Add(-e.recentWindow)

	buyers := make(map[ledger.Address]struct{})
	sellers := make(map[ledger.Address]struct{})
	categories := make(map[string]int)
	itemCategory := make(map[string]string)
	revenueBase := decimal.Zero
	revenueToken := decimal.Zero
	recent := 0

	for i := range purchases {
		p := &purchases[i]
		buyers[p.Buyer] = struct{}{}
		sellers[p.Seller] = struct{}{}
		revenueBase = revenueBase.Add(p.PriceBase)
		revenueToken = revenueToken.Add(p.PriceToken)
		if !p.CreatedAt.Before(windowStart) {
			recent++
		}

		cat, ok := itemCategory[p.ItemID]
		if !ok {
			cat = unknownCategory
			if item, err := e.catalog.Item(ctx, p.ItemID); err == nil && item.Category != "" {
				cat = item.Category
			}
			itemCategory[p.ItemID] = cat
		}
		categories[cat]++
	}

	top := make([]CategoryCount, 0, len(categories))
	for cat, n := range categories {
		top = append(top, CategoryCount{Category: cat, Purchases: n})
	}
	// Count descending, then category name ascending so the ranking is
	// reproducible.
	sort.Slice(top, func(i, j int) bool {
		if top[i].Purchases != top[j].Purchases {
			return top[i].Purchases > top[j].Purchases
		}
		return top[i].Category < top[j].Category
	})
	if len(top) > 5 {
		top = top[:5]
	}

	activeItems, err := e.catalog.ActiveItemCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("count active items: %w", err)
	}
	newItems, err := e.catalog.CreatedSince(ctx, windowStart)
	if err != nil {
		return nil, fmt.Errorf("count new items: %w", err)
	}

	out := &MarketStats{
		ActiveItems:       activeItems,
		TotalPurchases:    len(purchases),
		UniqueBuyers:      len(buyers),
		UniqueSellers:     len(sellers),
		TotalRevenueBase:  revenueBase,
		TotalRevenueToken: revenueToken,
		TopCategories:     top,
		RecentPurchases:   recent,
		RecentNewItems:    newItems,
		WindowDays:        int(e.recentWindow.Hours() / 24),
	}
	e.cache.set(key, out)
	return out, nil
}
