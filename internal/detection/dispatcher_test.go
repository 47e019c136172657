package detection

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestDispatchDeliversPayload(t *testing.T) {
	var mu sync.Mutex
	var got reportPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode report: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.URL, "fraudwatch", discardLogger())
	d.Dispatch(context.Background(), "t1", []string{"Blocked IP: 1.2.3.4", "High transaction amount (> 5000)"})

	mu.Lock()
	defer mu.Unlock()
	if got.TransactionID != "t1" {
		t.Errorf("transaction_id = %q", got.TransactionID)
	}
	if got.ReportingEntityID != "fraudwatch" {
		t.Errorf("reporting_entity_id = %q", got.ReportingEntityID)
	}
	if got.FraudDetails != "Blocked IP: 1.2.3.4, High transaction amount (> 5000)" {
		t.Errorf("fraud_details = %q", got.FraudDetails)
	}
}

func TestDispatchSwallowsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.URL, "fraudwatch", discardLogger())
	// Must return normally: delivery failure ends at the dispatcher.
	d.Dispatch(context.Background(), "t1", []string{"reason"})
}

func TestDispatchRetriesThenSucceeds(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.URL, "", discardLogger())
	d.Dispatch(context.Background(), "t1", []string{"reason"})

	mu.Lock()
	defer mu.Unlock()
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDispatchDefaultEntityID(t *testing.T) {
	var got reportPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.URL, "", discardLogger())
	d.Dispatch(context.Background(), "t1", nil)

	if got.ReportingEntityID != "system" {
		t.Errorf("default entity id = %q, want system", got.ReportingEntityID)
	}
}
