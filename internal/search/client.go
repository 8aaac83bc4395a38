package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/layofflens/internal/metrics"
	"github.com/hitoshi/layofflens/internal/model"
)

// クエリのカテゴリ。メトリクスとログのラベルに使う。
const (
	CategoryNews  = "news"
	CategoryVideo = "video"
)

// DefaultResultsPerQuery は1クエリあたりの既定取得件数。
const DefaultResultsPerQuery = 10

// Queries はニュースと動画の検索クエリリスト。
type Queries struct {
	News  []string `yaml:"news"`
	Video []string `yaml:"video"`
}

// DefaultQueries は既定のクエリリストを返す。
func DefaultQueries() Queries {
	return Queries{
		News: []string{
			"tech layoffs OR job cuts",
			"AI layoffs OR automation job losses",
			"unemployment rate BLS",
		},
		Video: []string{
			"tech layoffs analysis site:youtube.com",
			"resume ATS tips 2025",
		},
	}
}

// LoadQueries はYAMLファイルからクエリリストを読み込む。
// ファイルで省略されたカテゴリは既定値のままにする。
func LoadQueries(path string) (Queries, error) {
	q := DefaultQueries()

	data, err := os.ReadFile(path)
	if err != nil {
		return q, fmt.Errorf("クエリファイルの読み込みに失敗しました: %w", err)
	}

	var fromFile Queries
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return q, fmt.Errorf("クエリファイルのパースに失敗しました: %w", err)
	}

	if news := compact(fromFile.News); len(news) > 0 {
		q.News = news
	}
	if video := compact(fromFile.Video); len(video) > 0 {
		q.Video = video
	}
	return q, nil
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Client は固定のクエリリストをProviderに対して順に実行する。
// 個別クエリの失敗はWARNログを出して0件として扱い、サイクル全体は止めない。再試行はしない。
type Client struct {
	provider Provider
	queries  Queries
	num      int
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewClient はClientの新しいインスタンスを生成する。
// numが0以下の場合は DefaultResultsPerQuery を使う。
func NewClient(provider Provider, queries Queries, num int, mc metrics.MetricsCollector, logger *slog.Logger) *Client {
	if num <= 0 {
		num = DefaultResultsPerQuery
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Client{
		provider: provider,
		queries:  queries,
		num:      num,
		metrics:  mc,
		logger:   logger,
	}
}

// FetchNews はニュース用クエリをすべて実行し、結果を連結して返す。
func (c *Client) FetchNews(ctx context.Context) []model.SearchResult {
	return c.run(ctx, CategoryNews, c.queries.News)
}

// FetchVideos は動画用クエリをすべて実行し、結果を連結して返す。
func (c *Client) FetchVideos(ctx context.Context) []model.SearchResult {
	return c.run(ctx, CategoryVideo, c.queries.Video)
}

func (c *Client) run(ctx context.Context, category string, queries []string) []model.SearchResult {
	all := make([]model.SearchResult, 0, len(queries)*c.num)

	for _, query := range queries {
		if ctx.Err() != nil {
			break
		}

		results, err := c.provider.Search(ctx, query, c.num)
		if err != nil {
			c.logger.Warn("検索クエリの実行に失敗しました。0件として扱います",
				slog.String("provider", c.provider.Name()),
				slog.String("category", category),
				slog.String("query", query),
				slog.String("error", err.Error()),
			)
			c.metrics.RecordSearchFailure(category)
			continue
		}

		c.logger.Debug("検索クエリを実行しました",
			slog.String("category", category),
			slog.String("query", query),
			slog.Int("result_count", len(results)),
		)
		all = append(all, results...)
	}

	return all
}
