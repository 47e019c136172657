// Package detection implements the fraud decision pipeline: rule
// evaluation, anomaly scoring, verdict merging, ledger persistence, and
// best-effort report dispatch.
package detection

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the fatal failure kinds of the pipeline.
var (
	// ErrRuleStoreUnavailable means the active rule set could not be
	// fetched. An unreachable rule store is never treated as "no rules".
	ErrRuleStoreUnavailable = errors.New("rule store unavailable")

	// ErrPersistence means the verdict could not be recorded. The decision
	// is lost from the caller's view and must be resubmitted.
	ErrPersistence = errors.New("persistence failed")

	// ErrRuleNotFound is returned when deleting a rule that does not exist.
	ErrRuleNotFound = errors.New("rule not found")
)

// Transaction is one payment event under evaluation. All fields except
// TransactionID, Timestamp, and Amount are optional; absent values are
// empty strings. The pipeline never mutates a submitted transaction.
type Transaction struct {
	TransactionID string    `json:"transaction_id"`
	Timestamp     time.Time `json:"timestamp"`
	Amount        float64   `json:"amount"`
	Channel       string    `json:"channel,omitempty"`
	PaymentMode   string    `json:"payment_mode,omitempty"`
	GatewayBank   string    `json:"gateway_bank,omitempty"`
	PayerEmail    string    `json:"payer_email,omitempty"`
	PayerMobile   string    `json:"payer_mobile,omitempty"`
	PayerIP       string    `json:"payer_ip,omitempty"`
	PayerBrowser  string    `json:"payer_browser,omitempty"`
	PayeeID       string    `json:"payee_id,omitempty"`
	CardBrand     string    `json:"card_brand,omitempty"`
}

// RuleKind identifies one of the closed set of rule types. Evaluation
// switches exhaustively over this enum; adding a kind is a compile-time
// checkpoint, not a string-matching hazard.
type RuleKind string

const (
	KindThresholdAmount RuleKind = "threshold_amount"
	KindBlockedIP       RuleKind = "blocked_ip"
	KindBlockedGateway  RuleKind = "blocked_gateway"
	KindBlockedBrowser  RuleKind = "blocked_browser"
	KindBlockedEmail    RuleKind = "blocked_email"
)

// Valid reports whether k is one of the known rule kinds.
func (k RuleKind) Valid() bool {
	switch k {
	case KindThresholdAmount, KindBlockedIP, KindBlockedGateway, KindBlockedBrowser, KindBlockedEmail:
		return true
	}
	return false
}

// Rule is one fraud-detection policy entry. Exactly one payload field is
// meaningful per kind: Threshold for KindThresholdAmount, BlockedValue for
// the blocked-* kinds.
type Rule struct {
	ID           int64     `json:"id"`
	Kind         RuleKind  `json:"kind"`
	Threshold    float64   `json:"threshold,omitempty"`
	BlockedValue string    `json:"blocked_value,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// Validate checks the kind and the payload/kind pairing.
func (r *Rule) Validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("unknown rule kind %q", r.Kind)
	}
	switch r.Kind {
	case KindThresholdAmount:
		if r.Threshold < 0 {
			return fmt.Errorf("threshold must be non-negative, got %v", r.Threshold)
		}
		if r.BlockedValue != "" {
			return errors.New("threshold_amount rule must not carry a blocked value")
		}
	case KindBlockedIP, KindBlockedGateway, KindBlockedBrowser, KindBlockedEmail:
		if r.BlockedValue == "" {
			return fmt.Errorf("%s rule requires a blocked value", r.Kind)
		}
		if r.Threshold != 0 {
			return fmt.Errorf("%s rule must not carry a threshold", r.Kind)
		}
	}
	return nil
}

// RuleVerdict is the output of rule evaluation. Reasons preserves the
// order in which triggering rules appear in the active set; duplicates
// are kept.
type RuleVerdict struct {
	IsFraud bool     `json:"is_fraud"`
	Reasons []string `json:"reasons"`
}

// Signal is the tri-state answer from the anomaly scoring collaborator.
// SignalUnknown arises only from a collaborator failure, never from a
// successful call, and is not equivalent to SignalNotFraud.
type Signal int

const (
	SignalUnknown Signal = iota
	SignalFraud
	SignalNotFraud
)

// String returns the signal name.
func (s Signal) String() string {
	switch s {
	case SignalFraud:
		return "fraud"
	case SignalNotFraud:
		return "not_fraud"
	default:
		return "unknown"
	}
}

// FraudVerdict is the merged, persisted outcome for one transaction.
// FraudByAnomaly is nil exactly when the anomaly signal was unknown.
// Verdicts are append-only: created once, never updated.
type FraudVerdict struct {
	TransactionID  string    `json:"transaction_id"`
	FraudByRule    bool      `json:"is_fraud_rule"`
	FraudByAnomaly *bool     `json:"is_fraud_predicted"`
	Reasons        []string  `json:"fraud_reasons"`
	EvaluatedAt    time.Time `json:"evaluated_at"`
}

// Positive reports whether the verdict warrants a fraud report: flagged
// by rule or affirmatively flagged by the anomaly signal.
func (v *FraudVerdict) Positive() bool {
	return v.FraudByRule || (v.FraudByAnomaly != nil && *v.FraudByAnomaly)
}

// Outcome is one item of a batch detection result. Exactly one of
// Verdict and Err is set.
type Outcome struct {
	TransactionID string
	Verdict       *FraudVerdict
	Err           error
}

// LedgerEntry is a persisted transaction together with its verdict, as
// read back from the ledger.
type LedgerEntry struct {
	Transaction
	FraudByRule    bool     `json:"is_fraud_rule"`
	FraudByAnomaly *bool    `json:"is_fraud_predicted"`
	Reasons        []string `json:"fraud_reasons"`
}

// VerdictCounts aggregates ledger rows by outcome for the stats endpoint.
type VerdictCounts struct {
	Total        int64 `json:"total"`
	FraudByRule  int64 `json:"fraud_by_rule"`
	FraudByModel int64 `json:"fraud_by_model"`
	Clean        int64 `json:"clean"`
}
