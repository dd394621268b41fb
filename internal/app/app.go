package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/mtaalerts/internal/alert"
	"github.com/hitoshi/mtaalerts/internal/board"
	"github.com/hitoshi/mtaalerts/internal/config"
	"github.com/hitoshi/mtaalerts/internal/gtfsrt"
	"github.com/hitoshi/mtaalerts/internal/handler"
	"github.com/hitoshi/mtaalerts/internal/logger"
	"github.com/hitoshi/mtaalerts/internal/metrics"
	"github.com/hitoshi/mtaalerts/internal/middleware"
	"github.com/hitoshi/mtaalerts/internal/model"
	"github.com/hitoshi/mtaalerts/internal/security"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	// watch はAPIサーバーのクライアントなのでサーバー設定を読み込まない。
	// 画面描画と混ざらないようログは標準エラー出力に書く。
	if cmd == CommandWatch {
		if w == nil {
			w = os.Stderr
		}
		logger.SetupDefault(w)
		opts, err := parseWatchFlags(args[1:], os.Stderr)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runWatch(ctx, opts, os.Stdout, slog.Default())
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.Int("endpoints", len(cfg.Endpoints)),
	)

	switch cmd {
	case CommandFetch:
		httpClient, err := newUpstreamClient(cfg)
		if err != nil {
			return err
		}
		return runFetch(context.Background(), cfg, httpClient, os.Stdout)
	default:
		return runServe(cfg)
	}
}

// newUpstreamClient はエンドポイントURLを検証し、内部ネットワークへ接続しないHTTPクライアントを返す。
func newUpstreamClient(cfg *config.Config) (*http.Client, error) {
	guard := security.NewUpstreamGuard()
	if err := guard.ValidateEndpoints(cfg.Endpoints); err != nil {
		return nil, fmt.Errorf("invalid feed endpoint: %w", err)
	}
	return guard.NewClient(cfg.FetchTimeout), nil
}

// newAlertService は取得・正規化・重複除去のパイプラインを組み立てる。
func newAlertService(cfg *config.Config, httpClient *http.Client, collector metrics.MetricsCollector, log *slog.Logger) (*alert.Service, error) {
	loc, err := time.LoadLocation(cfg.AlertTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid ALERT_TIMEZONE %q: %w", cfg.AlertTimezone, err)
	}

	fetcher := gtfsrt.NewClient(httpClient, log,
		gtfsrt.WithTimeout(cfg.FetchTimeout),
		gtfsrt.WithMaxBodySize(cfg.FetchMaxSize),
		gtfsrt.WithMetrics(collector),
		gtfsrt.WithCache(cfg.FeedCacheTTL),
	)

	normalizer := alert.NewNormalizer(
		alert.WithLocation(loc),
		alert.WithSanitizer(security.NewTextSanitizer()),
	)

	key := alert.DefaultKey
	if cfg.DedupIncludeDescription {
		key = alert.ContentKey
	}

	return alert.NewService(alert.ServiceConfig{
		Fetcher:       fetcher,
		Transformer:   alert.NewTransformer(normalizer, key),
		Endpoints:     cfg.Endpoints,
		DefaultAPIKey: cfg.MTAAPIKey,
		Metrics:       collector,
		Logger:        log,
	}), nil
}

// newRegistry はアプリケーションとランタイムのメトリクスを登録したレジストリを返す。
func newRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. 上流クライアントとメトリクス
	httpClient, err := newUpstreamClient(cfg)
	if err != nil {
		return err
	}
	reg, collector := newRegistry()

	// 2. アラートパイプライン
	svc, err := newAlertService(cfg, httpClient, collector, slog.Default())
	if err != nil {
		return err
	}

	// 3. ルーターの構築
	rlConfig := middleware.DefaultRateLimiterConfig(cfg.RateLimitGeneral)
	rlConfig.TrustForwardedFor = cfg.TrustForwardedFor
	rateLimiter := middleware.NewRateLimiter(rlConfig, slog.Default())
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		AlertService:      svc,
		BaseURL:           cfg.BaseURL,
		FetchStatus:       svc,
		MetricsHandler:    metrics.Handler(reg),
	})

	// 4. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.FetchTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// fetchOutput はfetchコマンドの出力。/api/alertsのレスポンスに変換統計を加えたもの。
type fetchOutput struct {
	Alerts    []model.Alert        `json:"alerts"`
	Count     int                  `json:"count"`
	Timestamp string               `json:"timestamp"`
	Stats     model.TransformStats `json:"stats"`
}

// runFetch はアラートを1回取得し、整形したJSONをoutに書き込む。
func runFetch(ctx context.Context, cfg *config.Config, httpClient *http.Client, out io.Writer) error {
	svc, err := newAlertService(cfg, httpClient, metrics.Nop{}, slog.Default())
	if err != nil {
		return err
	}

	snapshot, err := svc.GetAlerts(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to fetch alerts: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(fetchOutput{
		Alerts:    snapshot.Alerts,
		Count:     len(snapshot.Alerts),
		Timestamp: handler.FormatTimestamp(snapshot.FetchedAt),
		Stats:     snapshot.Stats,
	})
}

// watchOptions はwatchサブコマンドのオプション。
type watchOptions struct {
	server   string
	apiKey   string
	filter   board.Filter
	interval time.Duration
	width    int
	once     bool
}

func parseWatchFlags(args []string, errOut io.Writer) (watchOptions, error) {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(errOut)
	server := fs.String("server", "http://localhost:"+port, "alerts API base URL")
	apiKey := fs.String("apiKey", "", "MTA API key forwarded to the server")
	lineType := fs.String("lineType", board.All, "filter by line type: all, subway, rail")
	severity := fs.String("severity", board.All, "filter by severity: all, minor, moderate, major, planned")
	interval := fs.Duration("interval", board.DefaultInterval, "polling interval")
	width := fs.Int("width", board.DefaultWidth, "card width in columns")
	once := fs.Bool("once", false, "fetch and render once, then exit")

	if err := fs.Parse(args); err != nil {
		return watchOptions{}, err
	}

	filter, err := board.ParseFilter(*lineType, *severity)
	if err != nil {
		return watchOptions{}, err
	}
	if *interval <= 0 {
		return watchOptions{}, fmt.Errorf("interval must be positive, got %s", *interval)
	}

	return watchOptions{
		server:   *server,
		apiKey:   *apiKey,
		filter:   filter,
		interval: *interval,
		width:    *width,
		once:     *once,
	}, nil
}

// clearScreen はカーソルを左上に戻して画面を消去するANSIシーケンス。
const clearScreen = "\033[H\033[2J"

// runWatch はAPIサーバーをポーリングしてoutにアラートを描画する。
// 取得失敗時は前回の一覧を表示したままエラーを重ねて表示し、次の周期で再試行する。
func runWatch(ctx context.Context, opts watchOptions, out io.Writer, log *slog.Logger) error {
	client, err := board.NewClient(opts.server, opts.apiKey, nil)
	if err != nil {
		return err
	}
	b := board.New(client, opts.filter, log)
	renderer := board.NewRenderer(out, opts.width)

	if opts.once {
		fetchErr := b.Refresh(ctx)
		if err := renderer.Render(b.State()); err != nil {
			return err
		}
		return fetchErr
	}

	err = b.Watch(ctx, opts.interval, func(s board.State) {
		io.WriteString(out, clearScreen)
		if err := renderer.Render(s); err != nil {
			log.Error("failed to render board", slog.String("error", err.Error()))
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
