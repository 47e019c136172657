package detection

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/transactai/fraudwatch/internal/validation"
)

// Handler provides HTTP endpoints for fraud detection and rule management.
type Handler struct {
	detector *Detector
	rules    RuleStore
	ledger   LedgerStore
	maxBatch int
}

// NewHandler creates a new detection handler.
func NewHandler(detector *Detector, rules RuleStore, ledger LedgerStore) *Handler {
	return &Handler{
		detector: detector,
		rules:    rules,
		ledger:   ledger,
		maxBatch: validation.MaxBatchSize,
	}
}

// RegisterRoutes sets up detection and rule-management routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/detect", h.Detect)
	r.POST("/detect/batch", h.DetectBatch)
	r.GET("/rules", h.ListRules)
	r.POST("/rules", h.CreateRule)
	r.DELETE("/rules/:id", h.DeleteRule)
	r.GET("/transactions", h.ListTransactions)
	r.GET("/transactions/export", h.ExportTransactions)
	r.GET("/stats", h.Stats)
}

// TransactionRequest is the inbound shape of a transaction to evaluate.
type TransactionRequest struct {
	TransactionID string    `json:"transaction_id" binding:"required"`
	Timestamp     time.Time `json:"timestamp"`
	Amount        float64   `json:"amount"`
	Channel       string    `json:"channel"`
	PaymentMode   string    `json:"payment_mode"`
	GatewayBank   string    `json:"gateway_bank"`
	PayerEmail    string    `json:"payer_email"`
	PayerMobile   string    `json:"payer_mobile"`
	PayerIP       string    `json:"payer_ip"`
	PayerBrowser  string    `json:"payer_browser"`
	PayeeID       string    `json:"payee_id"`
	CardBrand     string    `json:"card_brand"`
}

func (r *TransactionRequest) toTransaction() (*Transaction, error) {
	if r.Amount < 0 {
		return nil, fmt.Errorf("amount must be non-negative, got %v", r.Amount)
	}
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	const maxLen = validation.MaxStringLength
	return &Transaction{
		TransactionID: validation.SanitizeString(r.TransactionID, maxLen),
		Timestamp:     ts,
		Amount:        r.Amount,
		Channel:       validation.SanitizeString(r.Channel, maxLen),
		PaymentMode:   validation.SanitizeString(r.PaymentMode, maxLen),
		GatewayBank:   validation.SanitizeString(r.GatewayBank, maxLen),
		PayerEmail:    validation.SanitizeString(r.PayerEmail, maxLen),
		PayerMobile:   validation.SanitizeString(r.PayerMobile, maxLen),
		PayerIP:       validation.SanitizeString(r.PayerIP, maxLen),
		PayerBrowser:  validation.SanitizeString(r.PayerBrowser, maxLen),
		PayeeID:       validation.SanitizeString(r.PayeeID, maxLen),
		CardBrand:     validation.SanitizeString(r.CardBrand, maxLen),
	}, nil
}

// verdictResponse is the caller-visible shape of a merged verdict.
type verdictResponse struct {
	TransactionID  string   `json:"transaction_id"`
	FraudByRule    bool     `json:"is_fraud_rule"`
	FraudByAnomaly *bool    `json:"is_fraud_predicted"`
	Reasons        []string `json:"fraud_reasons"`
	Error          string   `json:"error,omitempty"`
}

func toVerdictResponse(txID string, v *FraudVerdict, err error) verdictResponse {
	if err != nil {
		return verdictResponse{TransactionID: txID, Error: errorKind(err)}
	}
	reasons := v.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	return verdictResponse{
		TransactionID:  v.TransactionID,
		FraudByRule:    v.FraudByRule,
		FraudByAnomaly: v.FraudByAnomaly,
		Reasons:        reasons,
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrRuleStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrPersistence):
		return "persistence_error"
	default:
		return "detection_failed"
	}
}

// Detect handles POST /detect
func (h *Handler) Detect(c *gin.Context) {
	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	tx, err := req.toTransaction()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_transaction",
			"message": err.Error(),
		})
		return
	}

	verdict, err := h.detector.Detect(c.Request.Context(), tx)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrRuleStoreUnavailable) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"error":   errorKind(err),
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, toVerdictResponse(tx.TransactionID, verdict, nil))
}

// BatchRequest wraps a batch of transactions for evaluation.
type BatchRequest struct {
	Transactions []TransactionRequest `json:"transactions" binding:"required"`
}

// DetectBatch handles POST /detect/batch. The envelope always succeeds;
// per-item failures are reported inline, in submission order.
func (h *Handler) DetectBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	if len(req.Transactions) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "empty_batch",
			"message": "Batch must contain at least one transaction",
		})
		return
	}
	if len(req.Transactions) > h.maxBatch {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "batch_too_large",
			"message": fmt.Sprintf("Batch size %d exceeds limit %d", len(req.Transactions), h.maxBatch),
		})
		return
	}

	txs := make([]Transaction, len(req.Transactions))
	for i := range req.Transactions {
		tx, err := req.Transactions[i].toTransaction()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_transaction",
				"message": fmt.Sprintf("item %d: %v", i, err),
			})
			return
		}
		txs[i] = *tx
	}

	outcomes := h.detector.DetectBatch(c.Request.Context(), txs)

	results := make([]verdictResponse, len(outcomes))
	for i, o := range outcomes {
		results[i] = toVerdictResponse(o.TransactionID, o.Verdict, o.Err)
	}
	c.JSON(http.StatusOK, gin.H{"transactions": results})
}

// CreateRuleRequest is the inbound shape of a new rule.
type CreateRuleRequest struct {
	Kind         string  `json:"kind" binding:"required"`
	Threshold    float64 `json:"threshold"`
	BlockedValue string  `json:"blocked_value"`
	Active       *bool   `json:"active"`
}

// CreateRule handles POST /rules
func (h *Handler) CreateRule(c *gin.Context) {
	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	rule := Rule{
		Kind:         RuleKind(req.Kind),
		Threshold:    req.Threshold,
		BlockedValue: validation.SanitizeString(req.BlockedValue, validation.MaxStringLength),
		Active:       active,
	}
	if err := rule.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_rule",
			"message": err.Error(),
		})
		return
	}

	if err := h.rules.Create(c.Request.Context(), &rule); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "store_unavailable",
			"message": "Could not store rule",
		})
		return
	}

	c.JSON(http.StatusCreated, rule)
}

// ListRules handles GET /rules
func (h *Handler) ListRules(c *gin.Context) {
	rules, err := h.rules.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "store_unavailable",
			"message": "Could not list rules",
		})
		return
	}
	if rules == nil {
		rules = []Rule{}
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

// DeleteRule handles DELETE /rules/:id
func (h *Handler) DeleteRule(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_rule_id",
			"message": "Rule ID must be an integer",
		})
		return
	}

	if err := h.rules.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "rule_not_found",
				"message": "No rule with that ID",
			})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "store_unavailable",
			"message": "Could not delete rule",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// ListTransactions handles GET /transactions?limit=N
func (h *Handler) ListTransactions(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_limit",
				"message": "limit must be between 1 and 1000",
			})
			return
		}
		limit = n
	}

	entries, err := h.ledger.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "store_unavailable",
			"message": "Could not list transactions",
		})
		return
	}
	if entries == nil {
		entries = []LedgerEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": entries})
}

// ExportTransactions handles GET /transactions/export, streaming the
// recent ledger as CSV.
func (h *Handler) ExportTransactions(c *gin.Context) {
	entries, err := h.ledger.List(c.Request.Context(), 1000)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "store_unavailable",
			"message": "Could not export transactions",
		})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="transactions.csv"`)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{
		"transaction_id", "timestamp", "amount", "channel", "payment_mode",
		"gateway_bank", "payer_email", "payer_ip", "payer_browser",
		"payee_id", "is_fraud_rule", "is_fraud_predicted",
	})
	for _, e := range entries {
		predicted := ""
		if e.FraudByAnomaly != nil {
			predicted = strconv.FormatBool(*e.FraudByAnomaly)
		}
		_ = w.Write([]string{
			e.TransactionID,
			e.Timestamp.Format(time.RFC3339),
			strconv.FormatFloat(e.Amount, 'f', -1, 64),
			e.Channel,
			e.PaymentMode,
			e.GatewayBank,
			e.PayerEmail,
			e.PayerIP,
			e.PayerBrowser,
			e.PayeeID,
			strconv.FormatBool(e.FraudByRule),
			predicted,
		})
	}
	w.Flush()
}

// Stats handles GET /stats
func (h *Handler) Stats(c *gin.Context) {
	counts, err := h.ledger.CountsByVerdict(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "store_unavailable",
			"message": "Could not compute stats",
		})
		return
	}
	c.JSON(http.StatusOK, counts)
}
