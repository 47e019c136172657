package reporting

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/transactai/fraudwatch/internal/pagination"
)

// PostgresStore persists fraud reports in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed report store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Save(ctx context.Context, r *Report) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO fraud_reports (id, transaction_id, reporting_entity_id, fraud_details, received_at)
		VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.TransactionID, r.ReportingEntityID, r.FraudDetails, r.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	return nil
}

func (p *PostgresStore) ListByTransaction(ctx context.Context, transactionID string) ([]Report, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, transaction_id, reporting_entity_id, fraud_details, received_at
		FROM fraud_reports WHERE transaction_id = $1 ORDER BY received_at`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	defer func() { _ = rows.Close() }()

	return scanReports(rows)
}

func (p *PostgresStore) List(ctx context.Context, before *pagination.Cursor, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = 100
	}

	var (
		rows *sql.Rows
		err  error
	)
	if before != nil {
		rows, err = p.db.QueryContext(ctx, `
			SELECT id, transaction_id, reporting_entity_id, fraud_details, received_at
			FROM fraud_reports
			WHERE (received_at, id) < ($1, $2)
			ORDER BY received_at DESC, id DESC LIMIT $3`,
			before.CreatedAt, before.ID, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `
			SELECT id, transaction_id, reporting_entity_id, fraud_details, received_at
			FROM fraud_reports ORDER BY received_at DESC, id DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	defer func() { _ = rows.Close() }()

	return scanReports(rows)
}

func scanReports(rows *sql.Rows) ([]Report, error) {
	var out []Report
	for rows.Next() {
		var r Report
		if err := rows.Scan(&r.ID, &r.TransactionID, &r.ReportingEntityID, &r.FraudDetails, &r.ReceivedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStore, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return out, nil
}
