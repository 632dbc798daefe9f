// Package store provides an in-memory ledger.QueryStore for tests and dev.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prism/market-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	pairs map[ledger.SettlementHash]ledger.Receipt
	order []ledger.SettlementHash
}

func NewMemory() *Memory {
	return &Memory{pairs: make(map[ledger.SettlementHash]ledger.Receipt)}
}

// RecordPair inserts the pair atomically. The existence check and insert run
// under one lock, so the map itself is the race-resolution point.
func (m *Memory) RecordPair(_ context.Context, p ledger.Purchase, t ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pairs[p.SettlementHash]; ok {
		return ledger.ErrDuplicateSettlement
	}
	m.pairs[p.SettlementHash] = ledger.Receipt{Purchase: p, Transaction: t}
	m.order = append(m.order, p.SettlementHash)
	return nil
}

func (m *Memory) PairByHash(_ context.Context, hash ledger.SettlementHash) (*ledger.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pair, ok := m.pairs[hash]
	if !ok {
		return nil, ledger.ErrNotRecorded
	}
	return &pair, nil
}

func (m *Memory) CountConfirmed(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, pair := range m.pairs {
		if pair.Purchase.Status == ledger.StatusConfirmed {
			n++
		}
	}
	return n, nil
}

func (m *Memory) AllConfirmed(_ context.Context) ([]ledger.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.confirmedLocked(func(ledger.Purchase) bool { return true }), nil
}

func (m *Memory) ConfirmedInRange(_ context.Context, from, to time.Time) ([]ledger.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.confirmedLocked(func(p ledger.Purchase) bool {
		return !p.CreatedAt.Before(from) && p.CreatedAt.Before(to)
	}), nil
}

// confirmedLocked returns confirmed purchases in insertion order, then sorts
// by (CreatedAt, ID) to match the ordering contract of QueryStore.
func (m *Memory) confirmedLocked(keep func(ledger.Purchase) bool) []ledger.Purchase {
	var out []ledger.Purchase
	for _, hash := range m.order {
		p := m.pairs[hash].Purchase
		if p.Status == ledger.StatusConfirmed && keep(p) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
