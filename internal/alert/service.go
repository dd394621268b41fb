package alert

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hitoshi/mtaalerts/internal/metrics"
	"github.com/hitoshi/mtaalerts/internal/model"
)

// FeedFetcher は複数エンドポイントのフィード取得を行う。
type FeedFetcher interface {
	FetchAll(ctx context.Context, endpoints []model.Endpoint, apiKey string) ([]model.TaggedFeed, error)
}

// Service はフィード取得と変換を組み合わせてアラート一覧を提供する。
type Service struct {
	fetcher       FeedFetcher
	transformer   *Transformer
	endpoints     []model.Endpoint
	defaultAPIKey string
	metrics       metrics.MetricsCollector
	logger        *slog.Logger
	now           func() time.Time

	mu            sync.RWMutex
	lastFetchedAt time.Time
}

// ServiceConfig はServiceの依存関係。
type ServiceConfig struct {
	Fetcher       FeedFetcher
	Transformer   *Transformer
	Endpoints     []model.Endpoint
	DefaultAPIKey string
	Metrics       metrics.MetricsCollector
	Logger        *slog.Logger
	Now           func() time.Time
}

// NewService はServiceを生成する。
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		fetcher:       cfg.Fetcher,
		transformer:   cfg.Transformer,
		endpoints:     cfg.Endpoints,
		defaultAPIKey: cfg.DefaultAPIKey,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
		now:           cfg.Now,
	}
	if s.transformer == nil {
		s.transformer = NewTransformer(nil, nil)
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// GetAlerts は全エンドポイントからアラートを取得して正規化・重複除去した結果を返す。
// apiKeyが空の場合はプロセス既定の認証情報を使う。
// パイプライン内のpanicは回復してエラーとして返す。
func (s *Service) GetAlerts(ctx context.Context, apiKey string) (snapshot *model.AlertSnapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic recovered in alert pipeline",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			snapshot = nil
			err = fmt.Errorf("alert pipeline panic: %v", r)
		}
	}()

	if apiKey == "" {
		apiKey = s.defaultAPIKey
	}

	feeds, err := s.fetcher.FetchAll(ctx, s.endpoints, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feeds: %w", err)
	}

	alerts, stats := s.transformer.Transform(feeds)
	if alerts == nil {
		alerts = []model.Alert{}
	}
	fetchedAt := s.now()

	for reason, n := range stats.Rejected {
		s.metrics.RecordEntitiesRejected(reason, n)
	}
	s.metrics.RecordAlertsDeduplicated(stats.Deduplicated)
	s.metrics.SetAlertsServed(len(alerts))

	s.mu.Lock()
	s.lastFetchedAt = fetchedAt
	s.mu.Unlock()

	s.logger.Info("alerts transformed",
		slog.Int("feeds", len(feeds)),
		slog.Int("entities", stats.Entities),
		slog.Int("accepted", stats.Accepted),
		slog.Int("deduplicated", stats.Deduplicated),
		slog.Int("alerts", len(alerts)),
	)

	return &model.AlertSnapshot{
		Alerts:    alerts,
		FetchedAt: fetchedAt,
		Stats:     stats,
	}, nil
}

// LastFetchedAt は最後に成功したGetAlertsの時刻を返す。未実行ならゼロ値。
func (s *Service) LastFetchedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFetchedAt
}
