package detection

import "fmt"

// EvaluateRules applies the active rule set to one transaction. It is a
// pure function: no I/O, deterministic, and total. Every active rule is
// checked independently (no short-circuit), so the reason list is the
// full ordered union of triggered rules.
func EvaluateRules(tx *Transaction, rules []Rule) RuleVerdict {
	var verdict RuleVerdict
	for _, r := range rules {
		if !r.Active {
			continue
		}
		if reason, hit := applyRule(tx, r); hit {
			verdict.IsFraud = true
			verdict.Reasons = append(verdict.Reasons, reason)
		}
	}
	return verdict
}

// applyRule checks a single rule against the transaction. Blocked-value
// rules match on exact, case-sensitive equality; an empty BlockedValue
// never triggers, so absent transaction fields cannot match.
func applyRule(tx *Transaction, r Rule) (string, bool) {
	switch r.Kind {
	case KindThresholdAmount:
		if tx.Amount > r.Threshold {
			return fmt.Sprintf("High transaction amount (> %v)", r.Threshold), true
		}
	case KindBlockedIP:
		if r.BlockedValue != "" && tx.PayerIP == r.BlockedValue {
			return fmt.Sprintf("Blocked IP: %s", r.BlockedValue), true
		}
	case KindBlockedGateway:
		if r.BlockedValue != "" && tx.GatewayBank == r.BlockedValue {
			return fmt.Sprintf("Blocked Payment Gateway: %s", r.BlockedValue), true
		}
	case KindBlockedBrowser:
		if r.BlockedValue != "" && tx.PayerBrowser == r.BlockedValue {
			return fmt.Sprintf("Blocked Browser: %s", r.BlockedValue), true
		}
	case KindBlockedEmail:
		if r.BlockedValue != "" && tx.PayerEmail == r.BlockedValue {
			return fmt.Sprintf("Blocked Email: %s", r.BlockedValue), true
		}
	}
	return "", false
}
