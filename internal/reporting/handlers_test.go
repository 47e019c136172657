package reporting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transactai/fraudwatch/internal/pagination"
)

type failingStore struct{}

func (failingStore) Save(ctx context.Context, r *Report) error { return errors.New("down") }
func (failingStore) ListByTransaction(ctx context.Context, transactionID string) ([]Report, error) {
	return nil, errors.New("down")
}
func (failingStore) List(ctx context.Context, before *pagination.Cursor, limit int) ([]Report, error) {
	return nil, errors.New("down")
}

func newRouter(store Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := gin.New()
	NewHandler(store, logger).RegisterRoutes(r.Group("/v1"))
	return r
}

func post(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(body)
	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIngestAcknowledges(t *testing.T) {
	store := NewMemoryStore()
	r := newRouter(store)

	w := post(r, "/v1/reports", gin.H{
		"transaction_id":      "t1",
		"reporting_entity_id": "fraudwatch",
		"fraud_details":       "Blocked IP: 1.2.3.4",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var ack ackResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.Equal(t, "t1", ack.TransactionID)
	assert.True(t, ack.ReportingAcknowledged)
	assert.Equal(t, ackOK, ack.FailureCode)

	saved, err := store.ListByTransaction(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "fraudwatch", saved[0].ReportingEntityID)
	assert.NotEmpty(t, saved[0].ID)
}

func TestIngestStoreFailureStill200(t *testing.T) {
	r := newRouter(failingStore{})

	w := post(r, "/v1/reports", gin.H{"transaction_id": "t1"})
	// The intake contract answers 200 with an explicit negative ack.
	require.Equal(t, http.StatusOK, w.Code)

	var ack ackResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.False(t, ack.ReportingAcknowledged)
	assert.Equal(t, ackStoreFailed, ack.FailureCode)
}

func TestIngestValidation(t *testing.T) {
	r := newRouter(NewMemoryStore())
	w := post(r, "/v1/reports", gin.H{"fraud_details": "no id"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestDefaultsEntityID(t *testing.T) {
	store := NewMemoryStore()
	r := newRouter(store)

	post(r, "/v1/reports", gin.H{"transaction_id": "t2"})
	saved, err := store.ListByTransaction(context.Background(), "t2")
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "unknown", saved[0].ReportingEntityID)
}

func TestListReports(t *testing.T) {
	store := NewMemoryStore()
	r := newRouter(store)

	post(r, "/v1/reports", gin.H{"transaction_id": "a"})
	post(r, "/v1/reports", gin.H{"transaction_id": "b"})
	post(r, "/v1/reports", gin.H{"transaction_id": "a"})

	req := httptest.NewRequest("GET", "/v1/reports?transaction_id=a", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Reports []Report `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Reports, 2)

	req = httptest.NewRequest("GET", "/v1/reports", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Reports, 3)
	assert.Equal(t, "a", resp.Reports[0].TransactionID, "newest first")
}

func TestListReportsPagination(t *testing.T) {
	store := NewMemoryStore()
	r := newRouter(store)

	for _, id := range []string{"t1", "t2", "t3", "t4", "t5"} {
		post(r, "/v1/reports", gin.H{"transaction_id": id})
	}

	get := func(path string) (pageResp, int) {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		var resp pageResp
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		return resp, w.Code
	}

	resp, code := get("/v1/reports?limit=2")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp.Reports, 2)
	assert.Equal(t, "t5", resp.Reports[0].TransactionID)
	assert.Equal(t, "t4", resp.Reports[1].TransactionID)
	assert.True(t, resp.HasMore)
	require.NotEmpty(t, resp.NextCursor)

	resp, code = get("/v1/reports?limit=2&cursor=" + resp.NextCursor)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp.Reports, 2)
	assert.Equal(t, "t3", resp.Reports[0].TransactionID)
	assert.Equal(t, "t2", resp.Reports[1].TransactionID)
	assert.True(t, resp.HasMore)

	resp, code = get("/v1/reports?limit=2&cursor=" + resp.NextCursor)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp.Reports, 1)
	assert.Equal(t, "t1", resp.Reports[0].TransactionID)
	assert.False(t, resp.HasMore)
	assert.Empty(t, resp.NextCursor)
}

type pageResp struct {
	Reports    []Report `json:"reports"`
	NextCursor string   `json:"next_cursor"`
	HasMore    bool     `json:"has_more"`
}

func TestListReportsBadParams(t *testing.T) {
	r := newRouter(NewMemoryStore())

	req := httptest.NewRequest("GET", "/v1/reports?limit=0", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest("GET", "/v1/reports?cursor=not-a-cursor", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
