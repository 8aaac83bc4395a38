package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/layofflens/internal/config"
	"github.com/hitoshi/layofflens/internal/database"
	"github.com/hitoshi/layofflens/internal/enrich"
	"github.com/hitoshi/layofflens/internal/handler"
	"github.com/hitoshi/layofflens/internal/item"
	"github.com/hitoshi/layofflens/internal/metrics"
	"github.com/hitoshi/layofflens/internal/repository"
	"github.com/hitoshi/layofflens/internal/search"
	"github.com/hitoshi/layofflens/internal/security"
	"github.com/hitoshi/layofflens/internal/worker/ingest"
)

// storage はプロセスで共有する保存先と、その後始末をまとめたもの。
type storage struct {
	store  *repository.RecordStore
	health handler.HealthChecker
	close  func() error
}

// openStorage は設定に応じたEntityTableを開き、RecordStoreを構築する。
// PostgreSQLの場合は接続確認まで行う。
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	var (
		table  repository.EntityTable
		health handler.HealthChecker
		closer = func() error { return nil }
	)

	switch cfg.StorageBackend {
	case config.StorageAzure:
		t, err := repository.NewAzureEntityTable(cfg.AzureConnectionString, cfg.TableName)
		if err != nil {
			return nil, fmt.Errorf("failed to create azure table client: %w", err)
		}
		table = t
		logger.Info("storage backend selected",
			slog.String("backend", config.StorageAzure),
			slog.String("table", cfg.TableName),
		)
	default:
		db, err := database.OpenAndPing(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		table = repository.NewPostgresEntityTable(db, cfg.TableName)
		health = db
		closer = db.Close
		logger.Info("database connection established",
			slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
			slog.String("table", cfg.TableName),
		)
	}

	return &storage{
		store:  repository.NewRecordStore(table, cfg.PartitionKey, logger),
		health: health,
		close:  closer,
	}, nil
}

// newMetricsRegistry はGo/プロセスの標準メトリクスとアプリのCollectorを登録したレジストリを返す。
func newMetricsRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// newSearchProvider は設定された検索プロバイダーを生成する。
func newSearchProvider(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (search.Provider, error) {
	switch cfg.SearchProvider {
	case config.ProviderGoogleNews:
		return search.NewGoogleNewsProvider(httpClient, logger), nil
	default:
		p, err := search.NewSerperProvider(httpClient, cfg.SerperAPIKey, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// newImageLookup は記事ページの探索を優先し、Serperのキーがあれば画像検索を後段に置いた探索チェーンを返す。
func newImageLookup(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (enrich.ImageLookup, error) {
	guard := security.NewSSRFGuard()
	chain := enrich.ChainLookup{
		enrich.NewPageImageLookup(guard.NewSafeClient(cfg.FetchTimeout), guard, logger),
	}

	if cfg.SerperAPIKey != "" {
		serperImages, err := enrich.NewSerperImageLookup(httpClient, cfg.SerperAPIKey, cfg.ImageLookupInterval, logger)
		if err != nil {
			return nil, err
		}
		chain = append(chain, serperImages)
	}
	return chain, nil
}

// newExtractor はAPIキーがあればClaudeによる抽出器を、なければ何もしない抽出器を返す。
func newExtractor(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) enrich.Extractor {
	if cfg.AnthropicAPIKey == "" {
		logger.Info("ANTHROPIC_API_KEY is not set; AI extraction disabled")
		return enrich.NoopExtractor{}
	}
	return enrich.NewClaudeExtractor(cfg.AnthropicAPIKey, cfg.ExtractorModel, httpClient, logger)
}

// newPipeline は取り込みパイプラインの全依存関係を組み立てる。
func newPipeline(cfg *config.Config, store *repository.RecordStore, mc metrics.MetricsCollector, logger *slog.Logger) (*ingest.Pipeline, error) {
	if err := cfg.RequireSearchCredentials(); err != nil {
		return nil, err
	}

	queries := search.DefaultQueries()
	if cfg.SearchQueriesFile != "" {
		q, err := search.LoadQueries(cfg.SearchQueriesFile)
		if err != nil {
			return nil, err
		}
		queries = q
	}

	httpClient := &http.Client{Timeout: cfg.FetchTimeout}

	provider, err := newSearchProvider(cfg, httpClient, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create search provider: %w", err)
	}
	lookup, err := newImageLookup(cfg, httpClient, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create image lookup: %w", err)
	}

	logger.Info("ingest pipeline configured",
		slog.String("provider", provider.Name()),
		slog.Int("news_queries", len(queries.News)),
		slog.Int("video_queries", len(queries.Video)),
		slog.Int("image_lookup_cap", cfg.ImageLookupCap),
		slog.Bool("ai_extraction", cfg.AnthropicAPIKey != ""),
	)

	return ingest.NewPipeline(
		search.NewClient(provider, queries, cfg.SearchResultsPerQuery, mc, logger),
		item.NewRecordBuilder(cfg.PartitionKey, security.NewTextSanitizer()),
		enrich.NewImageEnricher(lookup, mc, logger),
		newExtractor(cfg, httpClient, logger),
		store,
		mc,
		logger,
		cfg.ImageLookupCap,
	), nil
}

// unavailableIngester は取り込みの設定が不足しているserveプロセスで手動取り込みを拒否する。
type unavailableIngester struct {
	err error
}

func (u unavailableIngester) RunCycle(context.Context) (int, error) {
	return 0, u.err
}

var errIngestNotConfigured = errors.New("取り込みの設定が不足しています")
