package handler

import (
	"encoding/json"
	"net/http"
	"time"
)

// FetchStatusReporter は直近の取得完了時刻を報告する。
type FetchStatusReporter interface {
	LastFetchedAt() time.Time
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	reporter FetchStatusReporter
}

// NewHealthHandler はHealthHandlerを生成する。reporterはnilでもよい。
func NewHealthHandler(reporter FetchStatusReporter) *HealthHandler {
	return &HealthHandler{reporter: reporter}
}

type healthResponse struct {
	Status        string  `json:"status"`
	LastFetchedAt *string `json:"last_fetched_at"`
}

// Health はプロセスの稼働状態を返す。上流フィードの状態には依存しない。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h.reporter != nil {
		if t := h.reporter.LastFetchedAt(); !t.IsZero() {
			s := FormatTimestamp(t)
			resp.LastFetchedAt = &s
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
