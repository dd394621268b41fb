package board

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/mtaalerts/internal/model"
)

// DefaultInterval はポーリング間隔の既定値。
const DefaultInterval = 60 * time.Second

// Fetcher はアラート一覧を取得する。
type Fetcher interface {
	Fetch(ctx context.Context) (*Response, error)
}

// State は描画に必要なボードの状態のスナップショット。
type State struct {
	Alerts        []model.Alert // 直近に取得成功した全件
	Visible       []model.Alert // フィルタ適用後
	Counts        Counts
	Filter        Filter
	Loaded        bool
	Refreshing    bool
	Err           error
	LastRefreshed time.Time
}

// Board はアラート一覧の表示状態を保持する。
// 取得に失敗しても直前の一覧とフィルタは保持し、エラーだけを記録する。
type Board struct {
	fetcher Fetcher
	logger  *slog.Logger
	now     func() time.Time

	mu            sync.RWMutex
	alerts        []model.Alert
	filter        Filter
	loaded        bool
	refreshing    bool
	err           error
	lastRefreshed time.Time
}

// New はBoardを生成する。
func New(fetcher Fetcher, filter Filter, logger *slog.Logger) *Board {
	if logger == nil {
		logger = slog.Default()
	}
	return &Board{
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
		alerts:  []model.Alert{},
		filter:  filter,
	}
}

// Refresh は一覧を再取得する。
func (b *Board) Refresh(ctx context.Context) error {
	b.mu.Lock()
	b.refreshing = true
	b.mu.Unlock()

	resp, err := b.fetcher.Fetch(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshing = false
	b.loaded = true

	if err != nil {
		b.err = err
		b.logger.Warn("アラートの更新に失敗しました。前回の一覧を表示し続けます",
			slog.String("error", err.Error()),
			slog.Int("kept_alerts", len(b.alerts)),
		)
		return err
	}

	b.alerts = resp.Alerts
	b.err = nil
	b.lastRefreshed = b.now()
	b.logger.Debug("alerts refreshed", slog.Int("count", len(resp.Alerts)))
	return nil
}

// SetFilter は絞り込み条件を変更する。一覧は再取得しない。
func (b *Board) SetFilter(f Filter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filter = f
}

// State は現在の状態を返す。
func (b *Board) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()

	alerts := make([]model.Alert, len(b.alerts))
	copy(alerts, b.alerts)

	return State{
		Alerts:        alerts,
		Visible:       b.filter.Apply(alerts),
		Counts:        CountAlerts(alerts),
		Filter:        b.filter,
		Loaded:        b.loaded,
		Refreshing:    b.refreshing,
		Err:           b.err,
		LastRefreshed: b.lastRefreshed,
	}
}

// Watch は直ちに1回取得し、その後intervalごとに再取得する。
// 取得のたびにonUpdateを呼ぶ。ctxがキャンセルされるまでブロックする。
func (b *Board) Watch(ctx context.Context, interval time.Duration, onUpdate func(State)) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	update := func() {
		b.Refresh(ctx)
		if onUpdate != nil {
			onUpdate(b.State())
		}
	}

	update()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			update()
		}
	}
}
