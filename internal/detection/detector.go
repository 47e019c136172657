package detection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/transactai/fraudwatch/internal/metrics"
	"github.com/transactai/fraudwatch/internal/traces"
)

// Scorer produces an anomaly signal for a transaction. Implementations
// must degrade to SignalUnknown on failure rather than returning errors.
type Scorer interface {
	Score(ctx context.Context, tx *Transaction) Signal
}

// Reporter delivers fraud reports. Implementations are best-effort and
// must swallow their own failures.
type Reporter interface {
	Dispatch(ctx context.Context, transactionID string, reasons []string)
}

// Detector runs the fraud decision pipeline: fetch rules, evaluate and
// score concurrently, merge, persist, and dispatch a report when the
// verdict is positive. It holds no decision state of its own; concurrent
// detections share only the stores and collaborators.
type Detector struct {
	rules        RuleStore
	ledger       LedgerStore
	scorer       Scorer
	reporter     Reporter
	logger       *slog.Logger
	batchWorkers int

	wg sync.WaitGroup // in-flight report dispatches
}

// NewDetector wires the pipeline. batchWorkers bounds batch fan-out;
// values below 1 fall back to 8.
func NewDetector(rules RuleStore, ledger LedgerStore, scorer Scorer, reporter Reporter, batchWorkers int, logger *slog.Logger) *Detector {
	if batchWorkers < 1 {
		batchWorkers = 8
	}
	return &Detector{
		rules:        rules,
		ledger:       ledger,
		scorer:       scorer,
		reporter:     reporter,
		logger:       logger,
		batchWorkers: batchWorkers,
	}
}

// Detect runs the full pipeline for one transaction.
//
// The rule fetch is the one fatal early step: an unreachable rule store
// fails the item rather than evaluating against an empty set. Scoring
// runs concurrently with rule evaluation and degrades to SignalUnknown.
// Persistence is the commit point; its failure is fatal and surfaced.
// Report dispatch happens after the verdict is committed, on a tracked
// goroutine, and never affects the result.
func (d *Detector) Detect(ctx context.Context, tx *Transaction) (*FraudVerdict, error) {
	ctx, span := traces.StartSpan(ctx, "detection.detect",
		traces.TransactionID(tx.TransactionID),
		traces.Amount(tx.Amount),
	)
	defer span.End()

	// Buffered so the goroutine never leaks if we return before the join.
	scoreCh := make(chan Signal, 1)
	go func() {
		scoreCh <- d.scorer.Score(ctx, tx)
	}()

	rules, err := d.rules.ListActive(ctx)
	if err != nil {
		ruleFetchErrors.Inc()
		if !errors.Is(err, ErrRuleStoreUnavailable) {
			err = fmt.Errorf("%w: %v", ErrRuleStoreUnavailable, err)
		}
		d.logger.Error("rule fetch failed", "transaction_id", tx.TransactionID, "error", err)
		return nil, err
	}
	span.SetAttributes(traces.RuleCount(len(rules)))

	ruleVerdict := EvaluateRules(tx, rules)

	// Join point: the merge never proceeds on a partial result.
	var signal Signal
	select {
	case signal = <-scoreCh:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	verdict := mergeVerdict(tx.TransactionID, ruleVerdict, signal)
	span.SetAttributes(traces.Verdict(verdict.Positive()))

	if err := d.ledger.Record(ctx, tx, verdict); err != nil {
		persistErrors.Inc()
		if !errors.Is(err, ErrPersistence) {
			err = fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		d.logger.Error("verdict persist failed", "transaction_id", tx.TransactionID, "error", err)
		return nil, err
	}

	if verdict.Positive() {
		detectionsTotal.WithLabelValues("fraud").Inc()
		metrics.DecisionsTotal.WithLabelValues("fraud").Inc()
		d.dispatchReport(verdict)
	} else {
		detectionsTotal.WithLabelValues("clean").Inc()
		metrics.DecisionsTotal.WithLabelValues("clean").Inc()
	}

	return verdict, nil
}

// mergeVerdict combines the rule verdict with the anomaly signal. Total:
// it cannot fail. FraudByAnomaly is nil exactly for SignalUnknown, which
// keeps "the model could not answer" distinct from "the model said clean".
func mergeVerdict(transactionID string, rv RuleVerdict, signal Signal) *FraudVerdict {
	v := &FraudVerdict{
		TransactionID: transactionID,
		FraudByRule:   rv.IsFraud,
		Reasons:       rv.Reasons,
		EvaluatedAt:   time.Now().UTC(),
	}
	switch signal {
	case SignalFraud:
		t := true
		v.FraudByAnomaly = &t
	case SignalNotFraud:
		f := false
		v.FraudByAnomaly = &f
	}
	return v
}

// dispatchReport fires the report on a tracked goroutine. The verdict is
// already committed, so the caller-visible result does not wait on this.
// Delivery runs on a fresh context: the request may be done by then.
func (d *Detector) dispatchReport(v *FraudVerdict) {
	if d.reporter == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		dctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		d.reporter.Dispatch(dctx, v.TransactionID, v.Reasons)
	}()
}

// DetectBatch runs the pipeline for each transaction independently over
// a bounded worker pool. The result is order- and length-preserving; one
// item's failure never touches its siblings.
func (d *Detector) DetectBatch(ctx context.Context, txs []Transaction) []Outcome {
	batchItems.Observe(float64(len(txs)))

	outcomes := make([]Outcome, len(txs))
	if len(txs) == 0 {
		return outcomes
	}

	workers := d.batchWorkers
	if workers > len(txs) {
		workers = len(txs)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				tx := txs[i]
				verdict, err := d.Detect(ctx, &tx)
				outcomes[i] = Outcome{TransactionID: tx.TransactionID, Verdict: verdict, Err: err}
			}
		}()
	}

	for i := range txs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return outcomes
}

// Close waits for in-flight report dispatches to finish. Call on
// shutdown after the HTTP server has drained.
func (d *Detector) Close() {
	d.wg.Wait()
}
