package detection

import "context"

// RuleStore provides access to the fraud rule set. ListActive is the
// hot path used by every detection; Create and Delete back the rule
// management endpoints. Version is a monotonic counter bumped on every
// mutation so pollers can notice changes without a shared flag.
type RuleStore interface {
	// ListActive returns all active rules. A store failure wraps
	// ErrRuleStoreUnavailable and must never be read as an empty set.
	ListActive(ctx context.Context) ([]Rule, error)

	// Version returns a counter that increases on every Create or Delete.
	Version(ctx context.Context) (int64, error)

	// Create stores a new rule and assigns its ID.
	Create(ctx context.Context, r *Rule) error

	// Delete removes a rule by ID. Returns ErrRuleNotFound if absent.
	Delete(ctx context.Context, id int64) error

	// List returns all rules, active or not, for the management surface.
	List(ctx context.Context) ([]Rule, error)
}
