package detection

import "context"

// LedgerStore persists evaluated transactions. The ledger is append-only:
// Record is called exactly once per pipeline attempt, and there is no
// idempotency key, so a caller-level retry of the same transaction writes
// a second row. That matches the upstream contract; callers own dedupe.
type LedgerStore interface {
	// Record inserts the transaction with its merged verdict. A store
	// failure wraps ErrPersistence.
	Record(ctx context.Context, tx *Transaction, v *FraudVerdict) error

	// List returns the most recent ledger entries, newest first.
	List(ctx context.Context, limit int) ([]LedgerEntry, error)

	// CountsByVerdict aggregates ledger rows for the stats endpoint.
	CountsByVerdict(ctx context.Context) (VerdictCounts, error)
}
