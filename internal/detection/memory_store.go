package detection

import (
	"context"
	"sync"
	"time"
)

// MemoryRuleStore is an in-memory rule store for demo/development mode.
type MemoryRuleStore struct {
	mu      sync.RWMutex
	rules   map[int64]Rule
	nextID  int64
	version int64
}

// NewMemoryRuleStore creates a new in-memory rule store.
func NewMemoryRuleStore() *MemoryRuleStore {
	return &MemoryRuleStore{rules: make(map[int64]Rule), nextID: 1}
}

func (m *MemoryRuleStore) ListActive(ctx context.Context) ([]Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Rule
	for id := int64(1); id < m.nextID; id++ {
		if r, ok := m.rules[id]; ok && r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryRuleStore) List(ctx context.Context) ([]Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Rule
	for id := int64(1); id < m.nextID; id++ {
		if r, ok := m.rules[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryRuleStore) Version(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version, nil
}

func (m *MemoryRuleStore) Create(ctx context.Context, r *Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r.ID = m.nextID
	m.nextID++
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m.rules[r.ID] = *r
	m.version++
	return nil
}

func (m *MemoryRuleStore) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rules[id]; !ok {
		return ErrRuleNotFound
	}
	delete(m.rules, id)
	m.version++
	return nil
}

// MemoryLedger is an in-memory ledger for demo/development mode.
// Append-only like its postgres counterpart; duplicate transaction IDs
// produce duplicate entries.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries []LedgerEntry
}

// NewMemoryLedger creates a new in-memory transaction ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

func (m *MemoryLedger) Record(ctx context.Context, tx *Transaction, v *FraudVerdict) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := LedgerEntry{
		Transaction: *tx,
		FraudByRule: v.FraudByRule,
		Reasons:     append([]string(nil), v.Reasons...),
	}
	if v.FraudByAnomaly != nil {
		b := *v.FraudByAnomaly
		entry.FraudByAnomaly = &b
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MemoryLedger) List(ctx context.Context, limit int) ([]LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.entries) {
		limit = len(m.entries)
	}
	out := make([]LedgerEntry, 0, limit)
	// Newest first
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *MemoryLedger) CountsByVerdict(ctx context.Context) (VerdictCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var c VerdictCounts
	for _, e := range m.entries {
		c.Total++
		byModel := e.FraudByAnomaly != nil && *e.FraudByAnomaly
		if e.FraudByRule {
			c.FraudByRule++
		}
		if byModel {
			c.FraudByModel++
		}
		if !e.FraudByRule && !byModel {
			c.Clean++
		}
	}
	return c, nil
}
