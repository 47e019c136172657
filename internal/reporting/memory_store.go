package reporting

import (
	"context"
	"sync"

	"github.com/transactai/fraudwatch/internal/pagination"
)

// MemoryStore is an in-memory report store for demo/development mode.
type MemoryStore struct {
	mu      sync.RWMutex
	reports []Report
}

// NewMemoryStore creates a new in-memory report store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(ctx context.Context, r *Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, *r)
	return nil
}

func (m *MemoryStore) ListByTransaction(ctx context.Context, transactionID string) ([]Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Report
	for _, r := range m.reports {
		if r.TransactionID == transactionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryStore) List(ctx context.Context, before *pagination.Cursor, limit int) ([]Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = len(m.reports)
	}
	out := make([]Report, 0, limit)
	for i := len(m.reports) - 1; i >= 0 && len(out) < limit; i-- {
		r := m.reports[i]
		if before != nil && !beforeCursor(&r, before) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// beforeCursor reports whether r sorts strictly after the cursor position
// in newest-first order, i.e. (received_at, id) < (cursor.CreatedAt, cursor.ID).
func beforeCursor(r *Report, c *pagination.Cursor) bool {
	if r.ReceivedAt.Before(c.CreatedAt) {
		return true
	}
	if r.ReceivedAt.Equal(c.CreatedAt) {
		return r.ID < c.ID
	}
	return false
}
