package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/mtaalerts/internal/export"
	"github.com/hitoshi/mtaalerts/internal/middleware"
	"github.com/hitoshi/mtaalerts/internal/model"
)

// timestampLayout はISO-8601のUTCミリ秒精度。UTCでは末尾がZになる。
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// AlertService はアラートハンドラーが必要とするサービスインターフェース。
type AlertService interface {
	// GetAlerts は全エンドポイントから取得・正規化したアラート一覧を返す。
	GetAlerts(ctx context.Context, apiKey string) (*model.AlertSnapshot, error)
}

// AlertHandler はアラート一覧のHTTPハンドラー。
type AlertHandler struct {
	service AlertService
	baseURL string
	logger  *slog.Logger
}

// NewAlertHandler はAlertHandlerを生成する。
func NewAlertHandler(service AlertService, baseURL string, logger *slog.Logger) *AlertHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertHandler{
		service: service,
		baseURL: baseURL,
		logger:  logger,
	}
}

// alertsResponse はアラート一覧のAPIレスポンス。
type alertsResponse struct {
	Alerts    []model.Alert `json:"alerts"`
	Count     int           `json:"count"`
	Timestamp string        `json:"timestamp"`
}

// ListAlerts はアラート一覧を返す。
// GET /api/alerts?apiKey=
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.getSnapshot(w, r)
	if !ok {
		return
	}

	alerts := snapshot.Alerts
	if alerts == nil {
		alerts = []model.Alert{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(alertsResponse{
		Alerts:    alerts,
		Count:     len(alerts),
		Timestamp: FormatTimestamp(snapshot.FetchedAt),
	})
}

// AlertsRSS はアラート一覧をRSS 2.0で返す。
// GET /api/alerts.rss?apiKey=
func (h *AlertHandler) AlertsRSS(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.getSnapshot(w, r)
	if !ok {
		return
	}

	rss, err := export.ToRSS(snapshot, h.baseURL)
	if err != nil {
		h.logger.Error("failed to render rss",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(rss))
}

// getSnapshot はサービスを呼び出し、失敗時はエラーレスポンスを書き込んでfalseを返す。
func (h *AlertHandler) getSnapshot(w http.ResponseWriter, r *http.Request) (*model.AlertSnapshot, bool) {
	apiKey := r.URL.Query().Get("apiKey")

	snapshot, err := h.service.GetAlerts(r.Context(), apiKey)
	if err == nil && snapshot == nil {
		err = errors.New("alert service returned no snapshot")
	}
	if err != nil {
		h.logger.Error("failed to fetch alerts",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		)
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, toFetchError(err))
		return nil, false
	}
	return snapshot, true
}

// toFetchError はサービスエラーをクライアント向けのAPIErrorに変換する。
// ラベルは常に取得失敗を示し、メッセージには原因をそのまま載せる。
func toFetchError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return model.NewFetchFailedError(apiErr.Message)
	}
	return model.NewFetchFailedError(err.Error())
}

// FormatTimestamp はレスポンスのtimestamp表記（UTC、ミリ秒精度）に整形する。
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
