package detection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRuleStore serves a fixed rule set, optionally failing for chosen
// transactions via failFor (keyed by call count).
type fakeRuleStore struct {
	mu      sync.Mutex
	rules   []Rule
	err     error
	version int64
	calls   int
	failOn  map[int]bool // 1-based call numbers that fail
}

func (f *fakeRuleStore) ListActive(ctx context.Context) ([]Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.failOn[f.calls] {
		return nil, ErrRuleStoreUnavailable
	}
	return f.rules, nil
}

func (f *fakeRuleStore) Version(ctx context.Context) (int64, error) { return f.version, nil }
func (f *fakeRuleStore) Create(ctx context.Context, r *Rule) error  { return nil }
func (f *fakeRuleStore) Delete(ctx context.Context, id int64) error { return nil }
func (f *fakeRuleStore) List(ctx context.Context) ([]Rule, error)   { return f.rules, nil }

// fakeLedger records writes in memory, optionally failing.
type fakeLedger struct {
	mu      sync.Mutex
	err     error
	records []FraudVerdict
}

func (f *fakeLedger) Record(ctx context.Context, tx *Transaction, v *FraudVerdict) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, *v)
	return nil
}

func (f *fakeLedger) List(ctx context.Context, limit int) ([]LedgerEntry, error) { return nil, nil }
func (f *fakeLedger) CountsByVerdict(ctx context.Context) (VerdictCounts, error) {
	return VerdictCounts{}, nil
}

func (f *fakeLedger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// fakeScorer returns a fixed signal.
type fakeScorer struct{ signal Signal }

func (f *fakeScorer) Score(ctx context.Context, tx *Transaction) Signal { return f.signal }

// fakeReporter records dispatches.
type fakeReporter struct {
	mu         sync.Mutex
	dispatched []string
}

func (f *fakeReporter) Dispatch(ctx context.Context, transactionID string, reasons []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, transactionID)
}

func (f *fakeReporter) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.dispatched...)
}

func newTestDetector(rules *fakeRuleStore, ledger *fakeLedger, scorer Scorer, reporter Reporter) *Detector {
	return NewDetector(rules, ledger, scorer, reporter, 4, discardLogger())
}

func TestDetectEndToEnd(t *testing.T) {
	rules := &fakeRuleStore{rules: []Rule{
		{ID: 1, Kind: KindThresholdAmount, Threshold: 5000, Active: true},
	}}
	ledger := &fakeLedger{}
	reporter := &fakeReporter{}
	// Collaborator says prediction=1, which means NOT fraud on the wire.
	d := newTestDetector(rules, ledger, &fakeScorer{signal: SignalNotFraud}, reporter)

	verdict, err := d.Detect(context.Background(), &Transaction{
		TransactionID: "t1", Amount: 6000, PayerIP: "1.2.3.4",
	})
	require.NoError(t, err)
	require.NotNil(t, verdict)

	assert.True(t, verdict.FraudByRule)
	require.NotNil(t, verdict.FraudByAnomaly)
	assert.False(t, *verdict.FraudByAnomaly)
	require.Len(t, verdict.Reasons, 1)
	assert.Contains(t, verdict.Reasons[0], "5000")

	assert.Equal(t, 1, ledger.count(), "verdict must be persisted exactly once")

	d.Close()
	assert.Equal(t, []string{"t1"}, reporter.ids(), "positive rule verdict must dispatch a report")
}

func TestDetectRuleFetchFatal(t *testing.T) {
	rules := &fakeRuleStore{err: errors.New("connection refused")}
	ledger := &fakeLedger{}
	reporter := &fakeReporter{}
	d := newTestDetector(rules, ledger, &fakeScorer{signal: SignalNotFraud}, reporter)

	verdict, err := d.Detect(context.Background(), &Transaction{TransactionID: "t1"})
	require.Error(t, err)
	assert.Nil(t, verdict)
	assert.ErrorIs(t, err, ErrRuleStoreUnavailable)

	// An unreachable rule store never means "no rules": nothing persisted,
	// nothing reported.
	assert.Equal(t, 0, ledger.count())
	d.Close()
	assert.Empty(t, reporter.ids())
}

func TestDetectPersistFatal(t *testing.T) {
	rules := &fakeRuleStore{}
	ledger := &fakeLedger{err: errors.New("disk full")}
	reporter := &fakeReporter{}
	d := newTestDetector(rules, ledger, &fakeScorer{signal: SignalFraud}, reporter)

	verdict, err := d.Detect(context.Background(), &Transaction{TransactionID: "t1"})
	require.Error(t, err)
	assert.Nil(t, verdict)
	assert.ErrorIs(t, err, ErrPersistence)

	// No report without a committed verdict.
	d.Close()
	assert.Empty(t, reporter.ids())
}

func TestDetectUnknownSignalIsNull(t *testing.T) {
	rules := &fakeRuleStore{}
	ledger := &fakeLedger{}
	d := newTestDetector(rules, ledger, &fakeScorer{signal: SignalUnknown}, &fakeReporter{})

	verdict, err := d.Detect(context.Background(), &Transaction{TransactionID: "t1"})
	require.NoError(t, err)

	// Unknown must stay distinguishable from "not fraud".
	assert.Nil(t, verdict.FraudByAnomaly)
	assert.False(t, verdict.FraudByRule)
	assert.False(t, verdict.Positive())
}

func TestDetectAnomalyOnlyDispatches(t *testing.T) {
	rules := &fakeRuleStore{} // no rules: rule verdict clean
	ledger := &fakeLedger{}
	reporter := &fakeReporter{}
	d := newTestDetector(rules, ledger, &fakeScorer{signal: SignalFraud}, reporter)

	verdict, err := d.Detect(context.Background(), &Transaction{TransactionID: "t9"})
	require.NoError(t, err)
	assert.False(t, verdict.FraudByRule)
	require.NotNil(t, verdict.FraudByAnomaly)
	assert.True(t, *verdict.FraudByAnomaly)

	d.Close()
	assert.Equal(t, []string{"t9"}, reporter.ids())
}

func TestDetectCleanVerdictNoDispatch(t *testing.T) {
	rules := &fakeRuleStore{}
	ledger := &fakeLedger{}
	reporter := &fakeReporter{}
	d := newTestDetector(rules, ledger, &fakeScorer{signal: SignalNotFraud}, reporter)

	_, err := d.Detect(context.Background(), &Transaction{TransactionID: "t1"})
	require.NoError(t, err)

	d.Close()
	assert.Empty(t, reporter.ids(), "clean verdicts must not be reported")
}

func TestMergeVerdictTotal(t *testing.T) {
	for _, signal := range []Signal{SignalFraud, SignalNotFraud, SignalUnknown} {
		for _, byRule := range []bool{true, false} {
			v := mergeVerdict("tx", RuleVerdict{IsFraud: byRule, Reasons: []string{"r"}}, signal)
			assert.Equal(t, byRule, v.FraudByRule)
			assert.Equal(t, []string{"r"}, v.Reasons)
			switch signal {
			case SignalFraud:
				require.NotNil(t, v.FraudByAnomaly)
				assert.True(t, *v.FraudByAnomaly)
			case SignalNotFraud:
				require.NotNil(t, v.FraudByAnomaly)
				assert.False(t, *v.FraudByAnomaly)
			case SignalUnknown:
				assert.Nil(t, v.FraudByAnomaly)
			}
		}
	}
}

func TestDetectBatchOrderAndLength(t *testing.T) {
	rules := &fakeRuleStore{rules: []Rule{
		{ID: 1, Kind: KindThresholdAmount, Threshold: 100, Active: true},
	}}
	ledger := &fakeLedger{}
	d := newTestDetector(rules, ledger, &fakeScorer{signal: SignalNotFraud}, &fakeReporter{})

	const n = 40
	txs := make([]Transaction, n)
	for i := range txs {
		txs[i] = Transaction{TransactionID: fmt.Sprintf("t%03d", i), Amount: float64(i * 10)}
	}

	outcomes := d.DetectBatch(context.Background(), txs)
	require.Len(t, outcomes, n)

	for i, o := range outcomes {
		assert.Equal(t, fmt.Sprintf("t%03d", i), o.TransactionID, "order must be preserved")
		require.NoError(t, o.Err)
		require.NotNil(t, o.Verdict)
		assert.Equal(t, i*10 > 100, o.Verdict.FraudByRule)
	}
	assert.Equal(t, n, ledger.count())
}

func TestDetectBatchItemFailureIsolated(t *testing.T) {
	// The third rule fetch fails; only that item fails.
	rules := &fakeRuleStore{failOn: map[int]bool{3: true}}
	ledger := &fakeLedger{}
	d := NewDetector(rules, ledger, &fakeScorer{signal: SignalNotFraud}, &fakeReporter{}, 1, discardLogger())

	txs := []Transaction{
		{TransactionID: "a"}, {TransactionID: "b"}, {TransactionID: "c"},
		{TransactionID: "d"}, {TransactionID: "e"},
	}
	outcomes := d.DetectBatch(context.Background(), txs)
	require.Len(t, outcomes, 5)

	var failed int
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			assert.ErrorIs(t, o.Err, ErrRuleStoreUnavailable)
			assert.Nil(t, o.Verdict)
		} else {
			require.NotNil(t, o.Verdict)
		}
	}
	assert.Equal(t, 1, failed, "exactly one item fails, siblings complete")
	assert.Equal(t, 4, ledger.count())
}

func TestDetectBatchEmpty(t *testing.T) {
	d := newTestDetector(&fakeRuleStore{}, &fakeLedger{}, &fakeScorer{}, &fakeReporter{})
	outcomes := d.DetectBatch(context.Background(), nil)
	assert.Empty(t, outcomes)
}

func TestCloseWaitsForDispatches(t *testing.T) {
	rules := &fakeRuleStore{rules: []Rule{
		{ID: 1, Kind: KindThresholdAmount, Threshold: 1, Active: true},
	}}
	slow := &slowReporter{delay: 50 * time.Millisecond}
	d := newTestDetector(rules, &fakeLedger{}, &fakeScorer{signal: SignalUnknown}, slow)

	_, err := d.Detect(context.Background(), &Transaction{TransactionID: "t1", Amount: 10})
	require.NoError(t, err)

	d.Close()
	assert.Equal(t, int32(1), slow.completed.Load(), "Close must wait for in-flight dispatches")
}

type slowReporter struct {
	delay     time.Duration
	completed atomic.Int32
}

func (s *slowReporter) Dispatch(ctx context.Context, transactionID string, reasons []string) {
	time.Sleep(s.delay)
	s.completed.Add(1)
}
