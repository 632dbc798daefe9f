/*
Package stats is the aggregation engine: read-only queries over the purchase
ledger producing market statistics, time-bucketed charts, trends and
top-performer rankings.

PURPOSE:
  Everything here is computed on demand from the ledger snapshot - there is
  no materialized view to drift out of sync. A short TTL cache (tens of
  seconds) may sit in front of each query; it is an optimization, not a
  correctness requirement, and staleness within the TTL is expected.

DETERMINISM:
  Every grouping carries a fully specified ordering (ties broken by name or
  revenue as documented per query) so identical ledger snapshots always
  produce identical output.

MONEY:
  Revenue figures are summed as decimals. PriceUSD is informational and is
  the only float in the package; it never feeds accounting.

SEE ALSO:
  - ledger/store.go: the QueryStore contract this engine reads through
  - reconcile:       merges these figures with chain-derived ones
*/
package stats

import (
	"time"

	"github.com/prism/market-ledger/ledger"
)

// DefaultRecentWindow is the market-stats activity window when none is
// configured.
const DefaultRecentWindow = 7 * 24 * time.Hour

// Engine computes aggregates over the ledger.
type Engine struct {
	store        ledger.QueryStore
	catalog      ledger.Directory
	recentWindow time.Duration
	cache        *ttlCache
	now          func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithRecentWindow sets the market-stats activity window.
func WithRecentWindow(d time.Duration) Option {
	return func(e *Engine) { e.recentWindow = d }
}

// WithCacheTTL enables the aggregate cache. Zero disables it.
func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.cache = newTTLCache(ttl, e.now)
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
		if e.cache != nil {
			e.cache.now = now
		}
	}
}

func New(store ledger.QueryStore, catalog ledger.Directory, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		catalog:      catalog,
		recentWindow: DefaultRecentWindow,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// today returns midnight UTC of the engine's current day.
func (e *Engine) today() time.Time {
	n := e.now().UTC()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
