package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthHandler_BeforeFirstFetch(t *testing.T) {
	h := NewHealthHandler(&mockAlertService{})

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if v, ok := body["last_fetched_at"]; !ok || v != nil {
		t.Errorf("last_fetched_at = %v, want null", v)
	}
}

func TestHealthHandler_AfterFetch(t *testing.T) {
	h := NewHealthHandler(&mockAlertService{lastFetched: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)})

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["last_fetched_at"] != "2026-10-14T09:00:00.000Z" {
		t.Errorf("last_fetched_at = %v, want %q", body["last_fetched_at"], "2026-10-14T09:00:00.000Z")
	}
}

func TestHealthHandler_NilReporter(t *testing.T) {
	h := NewHealthHandler(nil)

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}
