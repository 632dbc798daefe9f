/*
top.go - Top-performing item ranking

Groups confirmed purchases by item, joins display metadata from the catalog,
and ranks by sale count (revenue descending breaks ties).
*/
package stats

import (
	"context"
	"fmt"
	"sort"

	"github.com/prism/market-ledger/ledger"
	"github.com/shopspring/decimal"
)

// TopItem is one entry in the top-performer ranking.
type TopItem struct {
	ItemID       string
	Name         string
	Category     string
	Sales        int
	Revenue      decimal.Decimal
	AveragePrice decimal.Decimal
}

// TopItems ranks items by confirmed sale count, truncated to limit.
// Items whose catalog entry no longer resolves stay in the ranking with
// empty display metadata: the money moved either way.
func (e *Engine) TopItems(ctx context.Context, limit int) ([]TopItem, error) {
	if limit < 1 || limit > 100 {
		return nil, &ledger.ValidationError{Field: "limit", Reason: "must be between 1 and 100"}
	}

	key := fmt.Sprintf("top:%d", limit)
	if v, ok := e.cache.get(key); ok {
		return v.([]TopItem), nil
	}

	purchases, err := e.store.AllConfirmed(ctx)
	if err != nil {
		return nil, fmt.Errorf("load confirmed purchases: %w", err)
	}

	grouped := make(map[string]*TopItem)
	for i := range purchases {
		p := &purchases[i]
		entry, ok := grouped[p.ItemID]
		if !ok {
			entry = &TopItem{ItemID: p.ItemID, Revenue: decimal.Zero}
			grouped[p.ItemID] = entry
		}
		entry.Sales++
		entry.Revenue = entry.Revenue.Add(p.RailPrice())
	}

	items := make([]TopItem, 0, len(grouped))
	for _, entry := range grouped {
		entry.AveragePrice = entry.Revenue.DivRound(decimal.NewFromInt(int64(entry.Sales)), ledger.CurrencyPrecision)
		if ref, err := e.catalog.Item(ctx, entry.ItemID); err == nil {
			entry.Name = ref.Name
			entry.Category = ref.Category
		}
		items = append(items, *entry)
	}

	// Sale count descending, revenue descending on ties. ItemID ascending as
	// the final tie-break keeps the order stable across runs.
	sort.Slice(items, func(i, j int) bool {
		if items[i].Sales != items[j].Sales {
			return items[i].Sales > items[j].Sales
		}
		if !items[i].Revenue.Equal(items[j].Revenue) {
			return items[i].Revenue.GreaterThan(items[j].Revenue)
		}
		return items[i].ItemID < items[j].ItemID
	})
	if len(items) > limit {
		items = items[:limit]
	}

	e.cache.set(key, items)
	return items, nil
}
