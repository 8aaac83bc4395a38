package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ストレージバックエンド。
const (
	StoragePostgres = "postgres"
	StorageAzure    = "azure"
)

// 検索プロバイダー。
const (
	ProviderSerper     = "serper"
	ProviderGoogleNews = "googlenews"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Storage
	StorageBackend        string
	DatabaseURL           string
	AzureConnectionString string
	TableName             string
	PartitionKey          string

	// Search
	SearchProvider        string
	SerperAPIKey          string
	SearchResultsPerQuery int
	SearchQueriesFile     string

	// Enrichment
	ImageLookupCap      int
	ImageLookupInterval time.Duration
	AnthropicAPIKey     string
	ExtractorModel      string
	FetchTimeout        time.Duration

	// Schedule
	IngestSchedule   string
	PurgeSchedule    string
	ScheduleTimezone *time.Location
	IngestOnStart    bool
	RetentionDays    int

	// Admin
	AdminToken string

	// Server
	ServerPort        string
	MetricsPort       string
	CORSAllowedOrigin string
	RateLimitGeneral  int

	// Logging
	LogLevel string
}

// Load は .env ファイルと環境変数からConfigを読み込む。
// 設定値が不正な場合や必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	cfg := &Config{}

	cfg.StorageBackend = strings.ToLower(getEnvString("STORAGE_BACKEND", StoragePostgres))
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.AzureConnectionString = getEnvString("AZURE_STORAGE_CONNECTION_STRING", "UseDevelopmentStorage=true")
	cfg.TableName = getEnvString("TABLE_NAME", "layoffitems")
	cfg.PartitionKey = getEnvString("PARTITION_KEY", "layoffs")

	switch cfg.StorageBackend {
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("required environment variables are not set: %v", []string{"DATABASE_URL"})
		}
	case StorageAzure:
	default:
		return nil, fmt.Errorf("STORAGE_BACKEND must be %q or %q: got %q", StoragePostgres, StorageAzure, cfg.StorageBackend)
	}

	cfg.SearchProvider = strings.ToLower(getEnvString("SEARCH_PROVIDER", ProviderSerper))
	if cfg.SearchProvider != ProviderSerper && cfg.SearchProvider != ProviderGoogleNews {
		return nil, fmt.Errorf("SEARCH_PROVIDER must be %q or %q: got %q", ProviderSerper, ProviderGoogleNews, cfg.SearchProvider)
	}
	cfg.SerperAPIKey = os.Getenv("SERPER_API_KEY")
	cfg.SearchResultsPerQuery = getEnvInt("SEARCH_RESULTS_PER_QUERY", 10)
	cfg.SearchQueriesFile = os.Getenv("SEARCH_QUERIES_FILE")

	cfg.ImageLookupCap = getEnvInt("IMAGE_LOOKUP_CAP", 8)
	cfg.ImageLookupInterval = getEnvDuration("IMAGE_LOOKUP_INTERVAL", time.Second)
	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.ExtractorModel = getEnvString("EXTRACTOR_MODEL", "claude-3-5-haiku-latest")
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)

	cfg.IngestSchedule = getEnvString("INGEST_SCHEDULE", "0 9,21 * * *")
	cfg.PurgeSchedule = getEnvString("PURGE_SCHEDULE", "30 3 * * *")
	loc, err := time.LoadLocation(getEnvString("SCHEDULE_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("SCHEDULE_TIMEZONE is invalid: %w", err)
	}
	cfg.ScheduleTimezone = loc
	cfg.IngestOnStart = getEnvBool("INGEST_ON_START", false)
	cfg.RetentionDays = getEnvInt("RETENTION_DAYS", 90)

	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9090")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)

	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

// RequireSearchCredentials は取り込みに必要な認証情報が揃っているかを検証する。
// serve のように取り込みを行わないコマンドでは呼ばない。
func (c *Config) RequireSearchCredentials() error {
	if c.SearchProvider == ProviderSerper && c.SerperAPIKey == "" {
		return fmt.Errorf("required environment variables are not set: %v", []string{"SERPER_API_KEY"})
	}
	return nil
}

// loadEnvFiles は ENV_FILE、なければ .env.local と .env を読み込む。
// 既に設定済みの環境変数は上書きしない。
func loadEnvFiles() error {
	if path := os.Getenv("ENV_FILE"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("ENV_FILE の読み込みに失敗しました: %w", err)
		}
		return nil
	}
	for _, path := range []string{".env.local", ".env"} {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s の読み込みに失敗しました: %w", path, err)
		}
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
