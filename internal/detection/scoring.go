package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/transactai/fraudwatch/internal/circuitbreaker"
	"github.com/transactai/fraudwatch/internal/metrics"
)

// ScoreClient calls the external anomaly scoring collaborator and
// normalizes its answer to a Signal. Any failure degrades to
// SignalUnknown; the client never returns an error upward and never
// retries (the call is a single idempotent probe).
type ScoreClient struct {
	scoringURL string
	breakerKey string
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
	logger     *slog.Logger
}

// NewScoreClient creates a scoring client with the given endpoint and
// per-call timeout. The circuit breaker is optional; when set, an open
// circuit short-circuits to SignalUnknown without a network call.
func NewScoreClient(scoringURL string, timeout time.Duration, breaker *circuitbreaker.Breaker, logger *slog.Logger) *ScoreClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	key := scoringURL
	if u, err := url.Parse(scoringURL); err == nil && u.Host != "" {
		key = u.Host
	}
	return &ScoreClient{
		scoringURL: scoringURL,
		breakerKey: key,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		logger:     logger,
	}
}

// scoreResponse is the collaborator's answer. On the wire, prediction=1
// means NOT fraud and prediction=0 means fraud; this inversion is part
// of the collaborator's existing contract and is preserved exactly.
type scoreResponse struct {
	Prediction *int `json:"prediction"`
}

// Score submits the transaction for anomaly scoring.
func (c *ScoreClient) Score(ctx context.Context, tx *Transaction) Signal {
	if c.breaker != nil && !c.breaker.Allow(c.breakerKey) {
		c.logger.Warn("scoring circuit open, skipping call", "transaction_id", tx.TransactionID)
		return c.unknown()
	}

	body, err := json.Marshal(tx)
	if err != nil {
		c.logger.Warn("scoring request encode failed", "transaction_id", tx.TransactionID, "error", err)
		return c.unknown()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.scoringURL, bytes.NewReader(body))
	if err != nil {
		c.logger.Warn("scoring request build failed", "transaction_id", tx.TransactionID, "error", err)
		return c.unknown()
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ScoringDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.recordFailure()
		c.logger.Warn("scoring call failed", "transaction_id", tx.TransactionID, "error", err)
		return c.unknown()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.recordFailure()
		c.logger.Warn("scoring call returned non-success", "transaction_id", tx.TransactionID, "status", resp.StatusCode)
		return c.unknown()
	}

	var sr scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		c.recordFailure()
		c.logger.Warn("scoring response malformed", "transaction_id", tx.TransactionID, "error", err)
		return c.unknown()
	}

	if sr.Prediction == nil || (*sr.Prediction != 0 && *sr.Prediction != 1) {
		c.recordFailure()
		c.logger.Warn("scoring response out of range", "transaction_id", tx.TransactionID)
		return c.unknown()
	}

	if c.breaker != nil {
		c.breaker.RecordSuccess(c.breakerKey)
	}

	// Invert the wire bit: 1 means not fraud.
	if *sr.Prediction == 0 {
		scoringResults.WithLabelValues("fraud").Inc()
		return SignalFraud
	}
	scoringResults.WithLabelValues("not_fraud").Inc()
	return SignalNotFraud
}

func (c *ScoreClient) recordFailure() {
	if c.breaker != nil {
		c.breaker.RecordFailure(c.breakerKey)
	}
}

func (c *ScoreClient) unknown() Signal {
	scoringResults.WithLabelValues("unknown").Inc()
	return SignalUnknown
}
