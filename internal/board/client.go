// Package board は /api/alerts を消費する表示層を提供する。
//
// 取得・クライアント側フィルタリング・定期ポーリング・端末への描画を担う。
// サーバー側にフィルタ用パラメータは存在しないため、絞り込みは全てここで行う。
package board

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/mtaalerts/internal/model"
)

// maxResponseSize はAPIレスポンスとして受け付ける最大バイト数。
const maxResponseSize = 10 * 1024 * 1024

// Response は /api/alerts の成功レスポンス。lastUpdatedはtime.Timeに復元される。
type Response struct {
	Alerts    []model.Alert `json:"alerts"`
	Count     int           `json:"count"`
	Timestamp time.Time     `json:"timestamp"`
}

// ServerError は200以外のレスポンスを表す。
type ServerError struct {
	StatusCode int
	Label      string
	Message    string
}

func (e *ServerError) Error() string {
	msg := fmt.Sprintf("failed to fetch alerts: %d", e.StatusCode)
	if e.Label != "" {
		msg += " " + e.Label
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Client はアラートAPIのHTTPクライアント。
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient はClientを生成する。apiKeyが空でなければクエリパラメータとして送る。
func NewClient(serverURL, apiKey string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(serverURL, "/") + "/api/alerts")
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", serverURL)
	}
	if apiKey != "" {
		q := u.Query()
		q.Set("apiKey", apiKey)
		u.RawQuery = q.Encode()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{endpoint: u.String(), httpClient: httpClient}, nil
}

// Fetch はアラート一覧を1回取得する。
func (c *Client) Fetch(ctx context.Context) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch alerts: %w", err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxResponseSize)

	if resp.StatusCode != http.StatusOK {
		serverErr := &ServerError{StatusCode: resp.StatusCode}
		var payload struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.NewDecoder(body).Decode(&payload) == nil {
			serverErr.Label = payload.Error
			serverErr.Message = payload.Message
		}
		return nil, serverErr
	}

	var out Response
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode alerts response: %w", err)
	}
	if out.Alerts == nil {
		out.Alerts = []model.Alert{}
	}
	return &out, nil
}
