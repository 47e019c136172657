package reporting

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/transactai/fraudwatch/internal/idgen"
	"github.com/transactai/fraudwatch/internal/pagination"
	"github.com/transactai/fraudwatch/internal/validation"
)

// Failure codes in the acknowledgement, fixed by the existing intake
// contract: 0 means stored, 1 means the store rejected the report.
const (
	ackOK          = 0
	ackStoreFailed = 1
)

// Handler provides HTTP endpoints for fraud report intake and review.
type Handler struct {
	store  Store
	logger *slog.Logger
}

// NewHandler creates a new reporting handler.
func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// RegisterRoutes sets up reporting routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/reports", h.Ingest)
	r.GET("/reports", h.List)
}

// IngestRequest is an inbound fraud report notification.
type IngestRequest struct {
	TransactionID     string `json:"transaction_id" binding:"required"`
	ReportingEntityID string `json:"reporting_entity_id"`
	FraudDetails      string `json:"fraud_details"`
}

// ackResponse acknowledges a report. The intake always answers 200 with
// an explicit acknowledged flag; senders treat the report as best-effort
// and do not retry on failure_code 1.
type ackResponse struct {
	TransactionID        string `json:"transaction_id"`
	ReportingAcknowledged bool  `json:"reporting_acknowledged"`
	FailureCode          int    `json:"failure_code"`
}

// Ingest handles POST /reports
func (h *Handler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid report body",
		})
		return
	}

	report := &Report{
		ID:                idgen.WithPrefix("rep_"),
		TransactionID:     validation.SanitizeString(req.TransactionID, validation.MaxStringLength),
		ReportingEntityID: validation.SanitizeString(req.ReportingEntityID, validation.MaxStringLength),
		FraudDetails:      validation.SanitizeString(req.FraudDetails, validation.MaxStringLength),
		ReceivedAt:        time.Now().UTC(),
	}
	if report.ReportingEntityID == "" {
		report.ReportingEntityID = "unknown"
	}

	if err := h.store.Save(c.Request.Context(), report); err != nil {
		h.logger.Error("report save failed", "transaction_id", report.TransactionID, "error", err)
		c.JSON(http.StatusOK, ackResponse{
			TransactionID:        report.TransactionID,
			ReportingAcknowledged: false,
			FailureCode:          ackStoreFailed,
		})
		return
	}

	h.logger.Info("fraud report received",
		"transaction_id", report.TransactionID,
		"reporting_entity_id", report.ReportingEntityID,
	)
	c.JSON(http.StatusOK, ackResponse{
		TransactionID:        report.TransactionID,
		ReportingAcknowledged: true,
		FailureCode:          ackOK,
	})
}

// List handles GET /reports?transaction_id=&limit=&cursor=
func (h *Handler) List(c *gin.Context) {
	if txID := c.Query("transaction_id"); txID != "" {
		reports, err := h.store.ListByTransaction(c.Request.Context(), txID)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "store_unavailable",
				"message": "Could not list reports",
			})
			return
		}
		if reports == nil {
			reports = []Report{}
		}
		c.JSON(http.StatusOK, gin.H{"reports": reports})
		return
	}

	limit := 100
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_limit",
				"message": "limit must be between 1 and 1000",
			})
			return
		}
		limit = n
	}

	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_cursor",
			"message": "Malformed pagination cursor",
		})
		return
	}

	// Fetch one extra row to learn whether another page exists.
	reports, err := h.store.List(c.Request.Context(), cursor, limit+1)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "store_unavailable",
			"message": "Could not list reports",
		})
		return
	}

	page, next, hasMore := pagination.ComputePage(reports, limit, func(r Report) (time.Time, string) {
		return r.ReceivedAt, r.ID
	})
	if page == nil {
		page = []Report{}
	}
	resp := gin.H{"reports": page, "has_more": hasMore}
	if next != "" {
		resp["next_cursor"] = next
	}
	c.JSON(http.StatusOK, resp)
}
