// Package gtfsrt は上流GTFS-realtimeフィードの並列取得を提供する。
//
// 1エンドポイントの失敗はバッチ全体を失敗させない。失敗したエンドポイントには
// エンティティ0件のフィードを代入し、結果は常に入力と同じ長さ・同じ順序で返す。
package gtfsrt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/hitoshi/mtaalerts/internal/metrics"
	"github.com/hitoshi/mtaalerts/internal/model"
)

// APIKeyHeader は認証情報を付与するベンダー固有ヘッダー。
const APIKeyHeader = "x-api-key"

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxBodySize = 5 * 1024 * 1024
	userAgent          = "mtaalerts/1.0 (+GTFS-realtime alerts aggregator)"
)

// Client は複数エンドポイントからフィードを取得する。
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	metrics     metrics.MetricsCollector
	timeout     time.Duration
	maxBodySize int64
	cache       *responseCache
}

// Option はClientの設定を変更する。
type Option func(*Client)

// WithTimeout はエンドポイント1件あたりのタイムアウトを設定する。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxBodySize はレスポンスボディの最大サイズを設定する。
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithMetrics はメトリクスコレクタを設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithCache は取得成功したフィードをttlの間キャッシュする。ttlが0以下なら無効。
func WithCache(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.cache = newResponseCache(ttl)
		}
	}
}

// NewClient はClientを生成する。httpClientがnilの場合はhttp.DefaultClientを使う。
func NewClient(httpClient *http.Client, logger *slog.Logger, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		httpClient:  httpClient,
		logger:      logger,
		metrics:     metrics.Nop{},
		timeout:     defaultTimeout,
		maxBodySize: defaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// fetchError は1エンドポイントの取得失敗。reasonはメトリクスのラベル値。
type fetchError struct {
	reason string
	err    error
}

func (e *fetchError) Error() string { return e.reason + ": " + e.err.Error() }
func (e *fetchError) Unwrap() error { return e.err }

// FetchAll は全エンドポイントを同時に取得し、入力と同じ順序のTaggedFeedを返す。
// 個別の失敗は空フィードで代替する。エラーを返すのはエンドポイントが0件の場合と
// 親コンテキストがキャンセルされた場合のみ。
func (c *Client) FetchAll(ctx context.Context, endpoints []model.Endpoint, apiKey string) ([]model.TaggedFeed, error) {
	if len(endpoints) == 0 {
		return nil, model.NewNoEndpointsError()
	}

	feeds := make([]model.TaggedFeed, len(endpoints))
	var wg sync.WaitGroup
	for i, ep := range endpoints {
		wg.Add(1)
		go func(i int, ep model.Endpoint) {
			defer wg.Done()
			feeds[i] = model.TaggedFeed{Endpoint: ep, Message: c.fetchOrEmpty(ctx, ep, apiKey)}
		}(i, ep)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("feed fetch aborted: %w", err)
	}
	return feeds, nil
}

// fetchOrEmpty は1エンドポイントを取得し、失敗時は空フィードを返す。
func (c *Client) fetchOrEmpty(ctx context.Context, ep model.Endpoint, apiKey string) model.RawFeedMessage {
	endpointType := string(ep.Type)

	if c.cache != nil {
		if msg, ok := c.cache.get(ep.URL, apiKey); ok {
			c.logger.Debug("キャッシュ済みフィードを使用します",
				slog.String("endpoint_type", endpointType),
				slog.String("url", ep.URL),
			)
			return msg
		}
	}

	start := time.Now()
	msg, err := c.fetch(ctx, ep, apiKey)
	duration := time.Since(start)
	c.metrics.RecordFetchLatency(endpointType, duration)

	if err != nil {
		reason := metrics.ReasonNetwork
		var fe *fetchError
		if errors.As(err, &fe) {
			reason = fe.reason
		}
		c.metrics.RecordFetchFailure(endpointType, reason)
		c.logger.Warn("フィード取得に失敗したため空フィードで代替します",
			slog.String("endpoint_type", endpointType),
			slog.String("url", ep.URL),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
		return model.RawFeedMessage{}
	}

	c.metrics.RecordFetchSuccess(endpointType)
	c.logger.Info("feed fetched",
		slog.String("endpoint_type", endpointType),
		slog.String("url", ep.URL),
		slog.Int("entities", len(msg.Entity)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	if c.cache != nil {
		c.cache.set(ep.URL, apiKey, msg)
	}
	return msg
}

func (c *Client) fetch(ctx context.Context, ep model.Endpoint, apiKey string) (model.RawFeedMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.URL, nil)
	if err != nil {
		return model.RawFeedMessage{}, &fetchError{reason: metrics.ReasonNetwork, err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	if ep.Format == model.FeedFormatProtobuf {
		req.Header.Set("Accept", "application/x-protobuf")
	} else {
		req.Header.Set("Accept", "application/json")
	}
	if apiKey != "" {
		req.Header.Set(APIKeyHeader, apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.RawFeedMessage{}, &fetchError{reason: classifyTransportError(err), err: err}
	}
	defer resp.Body.Close()

	c.metrics.RecordUpstreamStatus(resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.RawFeedMessage{}, &fetchError{
			reason: metrics.ReasonHTTPStatus,
			err:    fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return model.RawFeedMessage{}, &fetchError{reason: classifyTransportError(err), err: err}
	}
	if int64(len(body)) > c.maxBodySize {
		return model.RawFeedMessage{}, &fetchError{
			reason: metrics.ReasonDecode,
			err:    fmt.Errorf("response body exceeds %d bytes", c.maxBodySize),
		}
	}

	msg, err := Decode(ep.Format, body)
	if err != nil {
		return model.RawFeedMessage{}, &fetchError{reason: metrics.ReasonDecode, err: err}
	}
	return msg, nil
}

// classifyTransportError はタイムアウトとそれ以外のネットワークエラーを区別する。
func classifyTransportError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return metrics.ReasonTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return metrics.ReasonTimeout
	}
	return metrics.ReasonNetwork
}
