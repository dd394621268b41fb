package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/mtaalerts/internal/model"
)

// TestWriteErrorResponse_WritesUnifiedFormat は統一エラーフォーマットでレスポンスが書き込まれることを検証する。
func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusInternalServerError, model.NewFetchFailedError("upstream exploded"))

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var raw map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if len(raw) != 2 {
		t.Errorf("レスポンスのキーは error と message のみであるべき: %v", raw)
	}
	if raw["error"] != "Failed to fetch MTA alerts" {
		t.Errorf("error = %q, want %q", raw["error"], "Failed to fetch MTA alerts")
	}
	if raw["message"] != "upstream exploded" {
		t.Errorf("message = %q, want %q", raw["message"], "upstream exploded")
	}
}

func TestWriteErrorResponse_DifferentStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		apiErr     *model.APIError
		wantLabel  string
	}{
		{"rate limited", http.StatusTooManyRequests, model.NewRateLimitedError(), "Too many requests"},
		{"no endpoints", http.StatusInternalServerError, model.NewNoEndpointsError(), "Failed to fetch MTA alerts"},
		{"internal", http.StatusInternalServerError, model.NewInternalError(), "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteErrorResponse(w, tt.statusCode, tt.apiErr)

			if w.Code != tt.statusCode {
				t.Errorf("status = %d, want %d", w.Code, tt.statusCode)
			}
			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response body: %v", err)
			}
			if body.Error != tt.wantLabel {
				t.Errorf("error = %q, want %q", body.Error, tt.wantLabel)
			}
			if body.Message != tt.apiErr.Message {
				t.Errorf("message = %q, want %q", body.Message, tt.apiErr.Message)
			}
		})
	}
}

// TestWriteInternalServerError_HidesDetails は内部エラーの詳細がクライアントに露出しないことを検証する。
func TestWriteInternalServerError_HidesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.Message != "Unknown error" {
		t.Errorf("message = %q, want %q", body.Message, "Unknown error")
	}
}
