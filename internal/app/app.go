package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/layofflens/internal/analytics"
	"github.com/hitoshi/layofflens/internal/config"
	"github.com/hitoshi/layofflens/internal/database"
	"github.com/hitoshi/layofflens/internal/handler"
	"github.com/hitoshi/layofflens/internal/item"
	"github.com/hitoshi/layofflens/internal/logger"
	"github.com/hitoshi/layofflens/internal/metrics"
	"github.com/hitoshi/layofflens/internal/middleware"
	"github.com/hitoshi/layofflens/internal/worker"
	"github.com/hitoshi/layofflens/internal/worker/cleanup"
)

const (
	jobIngest = "ingest"
	jobPurge  = "purge"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから環境変数と .env ファイルを読み込む。
// .env で LOG_LEVEL が指定されている場合に備え、読み込み後にロガーを再設定する。
func Init(w io.Writer) (*config.Config, error) {
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, cfg.LogLevel)
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

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	log := slog.Default()

	log.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("storage_backend", cfg.StorageBackend),
		slog.String("search_provider", cfg.SearchProvider),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg, log)
	case CommandIngest:
		return runIngest(ctx, cfg, log)
	case CommandPurge:
		return runPurge(ctx, cfg, log)
	case CommandMigrate:
		return runMigrate(cfg, log)
	default:
		return runServe(ctx, cfg, log)
	}
}

// runServe はAPIサーバーモードで起動する。
// 保存先を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	st, err := openStorage(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer st.close()

	if err := st.store.EnsureTable(ctx); err != nil {
		log.Warn("failed to ensure table; reads may fail until it exists",
			slog.String("error", err.Error()),
		)
	}

	reg, mc := newMetricsRegistry()

	var ingester handler.Ingester
	pipeline, err := newPipeline(cfg, st.store, mc, log)
	if err != nil {
		log.Warn("manual ingest disabled", slog.String("error", err.Error()))
		ingester = unavailableIngester{err: fmt.Errorf("%w: %v", errIngestNotConfigured, err)}
	} else {
		ingester = pipeline
	}

	purgeJob := cleanup.NewPurgeJob(st.store, mc, log)
	purgeJob.RetentionDays = cfg.RetentionDays

	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(cfg.RateLimitGeneral), log)
	defer rateLimiter.Stop()

	if cfg.AdminToken == "" {
		log.Warn("ADMIN_TOKEN is not set; admin endpoints are disabled")
	}

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		AdminToken:        cfg.AdminToken,
		HealthChecker:     st.health,
		MetricsHandler:    metrics.Handler(reg),
		ItemService:       item.NewItemService(st.store, log),
		AnalyticsService:  analytics.NewService(st.store, log),
		Ingester:          ingester,
		Purger:            purgeJob,
	})

	// 手動取り込みはサイクル完了まで応答しないため書き込みタイムアウトを長く取る
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return serveUntilDone(ctx, server, log, "API server")
}

// runWorker はワーカーモードで起動する。
// 取り込みと削除をcronスケジュールで実行し、/metrics を別ポートで公開する。
// SIGINTまたはSIGTERMシグナルを受信すると実行中のジョブの完了を待って停止する。
func runWorker(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	st, err := openStorage(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer st.close()

	reg, mc := newMetricsRegistry()

	pipeline, err := newPipeline(cfg, st.store, mc, log)
	if err != nil {
		return fmt.Errorf("failed to build ingest pipeline: %w", err)
	}

	purgeJob := cleanup.NewPurgeJob(st.store, mc, log)
	purgeJob.RetentionDays = cfg.RetentionDays

	ingestJob := func(ctx context.Context) error {
		_, err := pipeline.RunCycle(ctx)
		return err
	}

	scheduler := worker.NewScheduler(cfg.ScheduleTimezone, log)
	if err := scheduler.Add(jobIngest, cfg.IngestSchedule, ingestJob); err != nil {
		return err
	}
	if err := scheduler.Add(jobPurge, cfg.PurgeSchedule, purgeJob.RunScheduled); err != nil {
		return err
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           metrics.SetupMetricsRoute(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("metrics server starting", slog.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	log.Info("worker starting",
		slog.String("ingest_schedule", cfg.IngestSchedule),
		slog.String("purge_schedule", cfg.PurgeSchedule),
		slog.String("timezone", cfg.ScheduleTimezone.String()),
		slog.Int("retention_days", cfg.RetentionDays),
	)

	if cfg.IngestOnStart {
		scheduler.RunNow(ctx, jobIngest, ingestJob)
	}

	// スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx)

	log.Info("worker stopped gracefully")
	return nil
}

// runIngest は取り込みサイクルを1回実行して終了する。
func runIngest(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	st, err := openStorage(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer st.close()

	pipeline, err := newPipeline(cfg, st.store, metrics.Nop{}, log)
	if err != nil {
		return fmt.Errorf("failed to build ingest pipeline: %w", err)
	}

	saved, err := pipeline.RunCycle(ctx)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	log.Info("ingest completed", slog.Int("saved_count", saved))
	return nil
}

// runPurge は保持期間を過ぎたレコードを1回削除して終了する。
func runPurge(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	st, err := openStorage(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer st.close()

	job := cleanup.NewPurgeJob(st.store, metrics.Nop{}, log)
	if _, err := job.Run(ctx, cfg.RetentionDays); err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。PostgreSQLバックエンドのみ対象。
func runMigrate(cfg *config.Config, log *slog.Logger) error {
	if cfg.StorageBackend != config.StoragePostgres {
		return fmt.Errorf("migrate requires STORAGE_BACKEND=%s: got %q", config.StoragePostgres, cfg.StorageBackend)
	}

	log.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info("database migrations completed successfully", slog.Uint64("schema_version", uint64(version)))
	return nil
}

// serveUntilDone はサーバーを起動し、ctxがキャンセルされたらグレースフルシャットダウンする。
// Listenに失敗した場合はそのエラーを返す。
func serveUntilDone(ctx context.Context, server *http.Server, log *slog.Logger, name string) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down " + name + "...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info(name + " stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// URL形式として解釈できない場合は全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
