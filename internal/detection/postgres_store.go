package detection

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresRuleStore persists fraud rules in PostgreSQL. The rule set
// version lives in a single-row table bumped in the same transaction as
// every mutation, so pollers see a consistent counter.
type PostgresRuleStore struct {
	db *sql.DB
}

// NewPostgresRuleStore creates a new PostgreSQL-backed rule store.
func NewPostgresRuleStore(db *sql.DB) *PostgresRuleStore {
	return &PostgresRuleStore{db: db}
}

func (p *PostgresRuleStore) ListActive(ctx context.Context) ([]Rule, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, kind, threshold, blocked_value, active, created_at
		FROM fraud_rules WHERE active = TRUE ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRuleStoreUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	return scanRules(rows)
}

func (p *PostgresRuleStore) List(ctx context.Context) ([]Rule, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, kind, threshold, blocked_value, active, created_at
		FROM fraud_rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRuleStoreUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	return scanRules(rows)
}

func scanRules(rows *sql.Rows) ([]Rule, error) {
	var out []Rule
	for rows.Next() {
		var r Rule
		var blocked sql.NullString
		if err := rows.Scan(&r.ID, &r.Kind, &r.Threshold, &blocked, &r.Active, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRuleStoreUnavailable, err)
		}
		r.BlockedValue = blocked.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRuleStoreUnavailable, err)
	}
	return out, nil
}

func (p *PostgresRuleStore) Version(ctx context.Context) (int64, error) {
	var v int64
	err := p.db.QueryRowContext(ctx,
		`SELECT version FROM fraud_rule_version`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRuleStoreUnavailable, err)
	}
	return v, nil
}

func (p *PostgresRuleStore) Create(ctx context.Context, r *Rule) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRuleStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO fraud_rules (kind, threshold, blocked_value, active, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		RETURNING id`,
		string(r.Kind), r.Threshold, r.BlockedValue, r.Active, r.CreatedAt,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRuleStoreUnavailable, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE fraud_rule_version SET version = version + 1`); err != nil {
		return fmt.Errorf("%w: %v", ErrRuleStoreUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrRuleStoreUnavailable, err)
	}
	return nil
}

func (p *PostgresRuleStore) Delete(ctx context.Context, id int64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRuleStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `DELETE FROM fraud_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRuleStoreUnavailable, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRuleStoreUnavailable, err)
	}
	if affected == 0 {
		return ErrRuleNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE fraud_rule_version SET version = version + 1`); err != nil {
		return fmt.Errorf("%w: %v", ErrRuleStoreUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrRuleStoreUnavailable, err)
	}
	return nil
}

// PostgresLedger persists evaluated transactions in PostgreSQL.
type PostgresLedger struct {
	db *sql.DB
}

// NewPostgresLedger creates a new PostgreSQL-backed transaction ledger.
func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (p *PostgresLedger) Record(ctx context.Context, t *Transaction, v *FraudVerdict) error {
	var predicted sql.NullBool
	if v.FraudByAnomaly != nil {
		predicted = sql.NullBool{Bool: *v.FraudByAnomaly, Valid: true}
	}

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO transactions (
			transaction_id, occurred_at, amount, channel, payment_mode,
			gateway_bank, payer_email, payer_mobile, payer_ip,
			payer_browser, payee_id, card_brand,
			is_fraud_rule, is_fraud_predicted, fraud_reasons
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)`,
		t.TransactionID, t.Timestamp, t.Amount, t.Channel, t.PaymentMode,
		t.GatewayBank, t.PayerEmail, t.PayerMobile, t.PayerIP,
		t.PayerBrowser, t.PayeeID, t.CardBrand,
		v.FraudByRule, predicted, pq.Array(v.Reasons),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (p *PostgresLedger) List(ctx context.Context, limit int) ([]LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT transaction_id, occurred_at, amount, channel, payment_mode,
		       gateway_bank, payer_email, payer_mobile, payer_ip,
		       payer_browser, payee_id, card_brand,
		       is_fraud_rule, is_fraud_predicted, fraud_reasons
		FROM transactions ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	defer func() { _ = rows.Close() }()

	var out []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		var predicted sql.NullBool
		var reasons pq.StringArray
		if err := rows.Scan(
			&e.TransactionID, &e.Timestamp, &e.Amount, &e.Channel, &e.PaymentMode,
			&e.GatewayBank, &e.PayerEmail, &e.PayerMobile, &e.PayerIP,
			&e.PayerBrowser, &e.PayeeID, &e.CardBrand,
			&e.FraudByRule, &predicted, &reasons,
		); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if predicted.Valid {
			b := predicted.Bool
			e.FraudByAnomaly = &b
		}
		e.Reasons = []string(reasons)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return out, nil
}

func (p *PostgresLedger) CountsByVerdict(ctx context.Context) (VerdictCounts, error) {
	var c VerdictCounts
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_fraud_rule),
		       COUNT(*) FILTER (WHERE is_fraud_predicted),
		       COUNT(*) FILTER (WHERE NOT is_fraud_rule AND (is_fraud_predicted IS NOT TRUE))
		FROM transactions`).Scan(&c.Total, &c.FraudByRule, &c.FraudByModel, &c.Clean)
	if err != nil {
		return VerdictCounts{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return c, nil
}
