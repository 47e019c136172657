package detection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRuleStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRuleStore()

	v0, err := s.Version(ctx)
	require.NoError(t, err)

	r1 := Rule{Kind: KindThresholdAmount, Threshold: 1000, Active: true}
	require.NoError(t, s.Create(ctx, &r1))
	assert.NotZero(t, r1.ID)

	r2 := Rule{Kind: KindBlockedIP, BlockedValue: "1.2.3.4", Active: false}
	require.NoError(t, s.Create(ctx, &r2))

	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1, "inactive rules excluded")
	assert.Equal(t, r1.ID, active[0].ID)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	v1, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, v0+2, v1, "each create bumps the version")

	require.NoError(t, s.Delete(ctx, r1.ID))
	v2, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, v1+1, v2, "delete bumps the version")

	assert.ErrorIs(t, s.Delete(ctx, r1.ID), ErrRuleNotFound)
}

func TestMemoryRuleStoreListOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRuleStore()
	for i := 0; i < 5; i++ {
		r := Rule{Kind: KindThresholdAmount, Threshold: float64(i), Active: true}
		require.NoError(t, s.Create(ctx, &r))
	}
	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 5)
	for i := 1; i < len(active); i++ {
		assert.Greater(t, active[i].ID, active[i-1].ID, "rules come back in creation order")
	}
}

func TestMemoryLedgerRecordAndList(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	f := false
	require.NoError(t, l.Record(ctx, &Transaction{TransactionID: "a", Amount: 10}, &FraudVerdict{
		TransactionID: "a", FraudByRule: true, FraudByAnomaly: &f, Reasons: []string{"x"},
	}))
	require.NoError(t, l.Record(ctx, &Transaction{TransactionID: "b", Amount: 20}, &FraudVerdict{
		TransactionID: "b",
	}))

	entries, err := l.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].TransactionID, "newest first")
	assert.Equal(t, "a", entries[1].TransactionID)
	assert.True(t, entries[1].FraudByRule)
	require.NotNil(t, entries[1].FraudByAnomaly)
	assert.False(t, *entries[1].FraudByAnomaly)
	assert.Nil(t, entries[0].FraudByAnomaly)
}

func TestMemoryLedgerDuplicateIDsKept(t *testing.T) {
	// No idempotency key: resubmitting the same transaction ID appends
	// a second row.
	ctx := context.Background()
	l := NewMemoryLedger()
	v := &FraudVerdict{TransactionID: "dup"}
	require.NoError(t, l.Record(ctx, &Transaction{TransactionID: "dup"}, v))
	require.NoError(t, l.Record(ctx, &Transaction{TransactionID: "dup"}, v))

	entries, err := l.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestMemoryLedgerCounts(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	tr, fa := true, false
	cases := []*FraudVerdict{
		{TransactionID: "1", FraudByRule: true, FraudByAnomaly: &fa},
		{TransactionID: "2", FraudByRule: false, FraudByAnomaly: &tr},
		{TransactionID: "3", FraudByRule: false, FraudByAnomaly: &fa},
		{TransactionID: "4", FraudByRule: false, FraudByAnomaly: nil},
	}
	for _, v := range cases {
		require.NoError(t, l.Record(ctx, &Transaction{TransactionID: v.TransactionID}, v))
	}

	c, err := l.CountsByVerdict(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), c.Total)
	assert.Equal(t, int64(1), c.FraudByRule)
	assert.Equal(t, int64(1), c.FraudByModel)
	assert.Equal(t, int64(2), c.Clean, "unknown-signal rows count as clean, not fraud")
}
