package detection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transactai/fraudwatch/internal/testutil"
)

func TestPostgresRuleStore(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	s := NewPostgresRuleStore(db)

	v0, err := s.Version(ctx)
	require.NoError(t, err)

	r := Rule{Kind: KindThresholdAmount, Threshold: 5000, Active: true}
	require.NoError(t, s.Create(ctx, &r))
	assert.NotZero(t, r.ID)

	blocked := Rule{Kind: KindBlockedEmail, BlockedValue: "a@b.com", Active: true}
	require.NoError(t, s.Create(ctx, &blocked))

	inactive := Rule{Kind: KindBlockedIP, BlockedValue: "1.2.3.4", Active: false}
	require.NoError(t, s.Create(ctx, &inactive))

	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, KindThresholdAmount, active[0].Kind)
	assert.Equal(t, 5000.0, active[0].Threshold)
	assert.Equal(t, "a@b.com", active[1].BlockedValue)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	v1, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, v0+3, v1)

	require.NoError(t, s.Delete(ctx, inactive.ID))
	assert.ErrorIs(t, s.Delete(ctx, inactive.ID), ErrRuleNotFound)

	v2, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, v1+1, v2)
}

func TestPostgresLedger(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	l := NewPostgresLedger(db)

	now := time.Now().UTC().Truncate(time.Microsecond)
	f := false
	tx := &Transaction{
		TransactionID: "pg-1",
		Timestamp:     now,
		Amount:        6000,
		Channel:       "web",
		GatewayBank:   "BankX",
		PayerEmail:    "a@b.com",
		PayerIP:       "1.2.3.4",
		PayerBrowser:  "Netscape",
		PayeeID:       "merchant-9",
	}
	v := &FraudVerdict{
		TransactionID:  "pg-1",
		FraudByRule:    true,
		FraudByAnomaly: &f,
		Reasons:        []string{"High transaction amount (> 5000)"},
	}
	require.NoError(t, l.Record(ctx, tx, v))

	// Duplicate submission appends a second row (no idempotency key).
	require.NoError(t, l.Record(ctx, tx, v))

	// Unknown anomaly signal stores NULL.
	require.NoError(t, l.Record(ctx, &Transaction{TransactionID: "pg-2", Timestamp: now}, &FraudVerdict{
		TransactionID: "pg-2",
	}))

	entries, err := l.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "pg-2", entries[0].TransactionID, "newest first")
	assert.Nil(t, entries[0].FraudByAnomaly)

	got := entries[1]
	assert.Equal(t, "pg-1", got.TransactionID)
	assert.True(t, got.FraudByRule)
	require.NotNil(t, got.FraudByAnomaly)
	assert.False(t, *got.FraudByAnomaly)
	assert.Equal(t, []string{"High transaction amount (> 5000)"}, got.Reasons)
	assert.Equal(t, "BankX", got.GatewayBank)

	counts, err := l.CountsByVerdict(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts.Total)
	assert.Equal(t, int64(2), counts.FraudByRule)
	assert.Equal(t, int64(0), counts.FraudByModel)
	assert.Equal(t, int64(1), counts.Clean)
}
