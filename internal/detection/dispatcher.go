package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/transactai/fraudwatch/internal/retry"
)

// reportPayload is the wire format of a fraud report notification.
type reportPayload struct {
	TransactionID     string `json:"transaction_id"`
	ReportingEntityID string `json:"reporting_entity_id"`
	FraudDetails      string `json:"fraud_details"`
}

// Dispatcher delivers fraud reports to the reporting collaborator.
// Delivery is best-effort: a terminal failure is counted, logged at WARN,
// and swallowed. It never propagates to the caller and never affects the
// transaction's decision.
type Dispatcher struct {
	reportingURL string
	entityID     string
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewDispatcher creates a report dispatcher. entityID identifies this
// service to the reporting collaborator.
func NewDispatcher(reportingURL, entityID string, logger *slog.Logger) *Dispatcher {
	if entityID == "" {
		entityID = "system"
	}
	return &Dispatcher{
		reportingURL: reportingURL,
		entityID:     entityID,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		logger:       logger,
	}
}

// Dispatch sends a fraud report for the given transaction. Reasons are
// joined into a single details string. Up to three delivery attempts are
// made with backoff; the first attempt satisfies the at-least-once
// contract, the rest are opportunistic.
func (d *Dispatcher) Dispatch(ctx context.Context, transactionID string, reasons []string) {
	payload := reportPayload{
		TransactionID:     transactionID,
		ReportingEntityID: d.entityID,
		FraudDetails:      strings.Join(reasons, ", "),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		dispatchTotal.WithLabelValues("failed").Inc()
		d.logger.Warn("fraud report encode failed, dropping report",
			"transaction_id", transactionID, "error", err)
		return
	}

	err = retry.Do(ctx, 3, 500*time.Millisecond, func() error {
		return d.deliver(ctx, body)
	})
	if err != nil {
		// Best-effort boundary: the failure ends here, on purpose.
		dispatchTotal.WithLabelValues("failed").Inc()
		d.logger.Warn("fraud report delivery failed, giving up",
			"transaction_id", transactionID, "error", err)
		return
	}

	dispatchTotal.WithLabelValues("delivered").Inc()
	d.logger.Info("fraud report delivered", "transaction_id", transactionID)
}

func (d *Dispatcher) deliver(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.reportingURL, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("reporting collaborator returned %d", resp.StatusCode)
	}
	return nil
}
