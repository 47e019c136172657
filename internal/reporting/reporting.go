// Package reporting implements the fraud report intake subsystem. It
// receives report notifications from the detection pipeline (or any
// trusted caller), stores them, and serves them back for review.
package reporting

import (
	"context"
	"errors"
	"time"

	"github.com/transactai/fraudwatch/internal/pagination"
)

// ErrStore indicates the report could not be stored.
var ErrStore = errors.New("report store failed")

// Report is one received fraud report.
type Report struct {
	ID                string    `json:"id"`
	TransactionID     string    `json:"transaction_id"`
	ReportingEntityID string    `json:"reporting_entity_id"`
	FraudDetails      string    `json:"fraud_details"`
	ReceivedAt        time.Time `json:"received_at"`
}

// Store persists received fraud reports.
type Store interface {
	// Save stores a report. Failure wraps ErrStore.
	Save(ctx context.Context, r *Report) error

	// ListByTransaction returns reports for one transaction, oldest first.
	ListByTransaction(ctx context.Context, transactionID string) ([]Report, error)

	// List returns up to limit reports newest first, starting strictly
	// after the cursor position. A nil cursor starts from the newest.
	List(ctx context.Context, before *pagination.Cursor, limit int) ([]Report, error)
}
