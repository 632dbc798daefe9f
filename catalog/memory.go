/*
Package catalog provides implementations of the ledger.Directory capability
interface over the external catalog service.

The catalog itself (listing CRUD, search, storefront rendering) lives outside
this engine; the ledger only resolves item metadata for aggregation joins and
issues best-effort download-counter increments. Memory is the in-process
implementation used by tests, development and single-node deployments where
the catalog table is co-hosted.
*/
package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/prism/market-ledger/ledger"
)

// Memory is a thread-safe in-memory Directory.
type Memory struct {
	mu    sync.RWMutex
	items map[string]*ledger.ItemRef
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]*ledger.ItemRef)}
}

// Seed inserts or replaces an item. Intended for startup and tests.
func (m *Memory) Seed(item ledger.ItemRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := item
	m.items[item.ID] = &copied
}

func (m *Memory) Item(_ context.Context, id string) (*ledger.ItemRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[id]
	if !ok {
		return nil, ledger.ErrItemNotFound
	}
	copied := *item
	return &copied, nil
}

func (m *Memory) IncrementDownload(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return ledger.ErrItemNotFound
	}
	item.DownloadCount++
	return nil
}

func (m *Memory) ActiveItemCount(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items), nil
}

func (m *Memory) CreatedSince(_ context.Context, t time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, item := range m.items {
		if !item.CreatedAt.Before(t) {
			n++
		}
	}
	return n, nil
}
