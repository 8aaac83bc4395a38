// Package ingest は検索結果の取り込みサイクルを提供する。
// 1サイクルは検索、レコード組み立て、画像補完、AI抽出、スコアリング、保存を
// プロバイダーの返却順に1件ずつ逐次で行う。
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/layofflens/internal/enrich"
	"github.com/hitoshi/layofflens/internal/item"
	"github.com/hitoshi/layofflens/internal/metrics"
	"github.com/hitoshi/layofflens/internal/model"
	"github.com/hitoshi/layofflens/internal/repository"
)

// Searcher はニュースと動画の検索結果を返すインターフェース。search.Client が満たす。
type Searcher interface {
	FetchNews(ctx context.Context) []model.SearchResult
	FetchVideos(ctx context.Context) []model.SearchResult
}

// ImageEnricher は予算付きの画像補完インターフェース。enrich.ImageEnricher が満たす。
type ImageEnricher interface {
	Enrich(ctx context.Context, rec *model.FeedRecord, remaining int) int
}

// Pipeline は取り込みサイクルを実行する。
type Pipeline struct {
	searcher  Searcher
	builder   *item.RecordBuilder
	images    ImageEnricher
	extractor enrich.Extractor
	store     repository.RecordWriter
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	imageCap  int
	now       func() time.Time
}

// NewPipeline はPipelineの新しいインスタンスを生成する。
// imageCapは1サイクルあたりの画像探索回数の上限で、負の値は0として扱う。
func NewPipeline(
	searcher Searcher,
	builder *item.RecordBuilder,
	images ImageEnricher,
	extractor enrich.Extractor,
	store repository.RecordWriter,
	mc metrics.MetricsCollector,
	logger *slog.Logger,
	imageCap int,
) *Pipeline {
	if extractor == nil {
		extractor = enrich.NoopExtractor{}
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Pipeline{
		searcher:  searcher,
		builder:   builder,
		images:    images,
		extractor: extractor,
		store:     store,
		metrics:   mc,
		logger:    logger,
		imageCap:  max(imageCap, 0),
		now:       time.Now,
	}
}

// RunCycle は1回分の取り込みを実行し、保存に成功した件数を返す。
// 個別の検索・画像・抽出・保存の失敗はログに残して次へ進む。
// テーブル準備の失敗とコンテキストのキャンセルのみサイクルを中断してエラーを返す。
func (p *Pipeline) RunCycle(ctx context.Context) (int, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := p.logger.With(slog.String("run_id", runID))

	saved, err := p.run(ctx, logger)
	duration := time.Since(start)

	if err != nil {
		p.metrics.RecordCycle(metrics.CycleFailure, duration)
		logger.Error("取り込みサイクルが中断されました",
			slog.Int("saved_count", saved),
			slog.String("error", err.Error()),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
		return saved, err
	}

	p.metrics.RecordCycle(metrics.CycleSuccess, duration)
	logger.Info("取り込みサイクルが完了しました",
		slog.Int("saved_count", saved),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return saved, nil
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger) (int, error) {
	if err := p.store.EnsureTable(ctx); err != nil {
		return 0, fmt.Errorf("保存先の準備に失敗しました: %w", err)
	}

	news := p.searcher.FetchNews(ctx)
	videos := p.searcher.FetchVideos(ctx)
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	results := make([]model.SearchResult, 0, len(news)+len(videos))
	results = append(results, news...)
	results = append(results, videos...)

	logger.Info("取り込みサイクルを開始します",
		slog.Int("news_count", len(news)),
		slog.Int("video_count", len(videos)),
		slog.Int("image_budget", p.imageCap),
	)

	// 同一サイクルのレコードは同じ取り込み時刻を共有し、一覧ではスコア順に並ぶ
	now := p.now()
	remaining := p.imageCap
	seen := make(map[string]struct{}, len(results))
	saved, skipped, failed := 0, 0, 0

	for _, res := range results {
		if err := ctx.Err(); err != nil {
			return saved, err
		}

		rec, ok := p.builder.Build(res, now)
		if !ok {
			skipped++
			logger.Debug("不正なリンクの検索結果をスキップしました",
				slog.String("link", res.Link),
			)
			continue
		}
		if _, dup := seen[rec.RowKey]; dup {
			skipped++
			continue
		}
		seen[rec.RowKey] = struct{}{}

		if p.images != nil {
			remaining = p.images.Enrich(ctx, &rec, remaining)
		}

		p.applyFacts(ctx, logger, &rec)
		rec.Score = item.Score(rec.Title, rec.Snippet, rec.Date, now)

		if err := p.store.Upsert(ctx, &rec); err != nil {
			if ctx.Err() != nil {
				return saved, ctx.Err()
			}
			failed++
			p.metrics.RecordSaveFailure()
			logger.Warn("レコードの保存に失敗しました。次の記事へ進みます",
				slog.String("row_key", rec.RowKey),
				slog.String("link", rec.Link),
				slog.String("error", err.Error()),
			)
			continue
		}
		saved++
		p.metrics.RecordItemSaved()
	}

	logger.Info("取り込み結果",
		slog.Int("saved_count", saved),
		slog.Int("skipped_count", skipped),
		slog.Int("failed_count", failed),
		slog.Int("image_budget_left", remaining),
	)
	return saved, nil
}

// applyFacts はAI抽出の結果をレコードに反映する。失敗時は何も設定しない。
func (p *Pipeline) applyFacts(ctx context.Context, logger *slog.Logger, rec *model.FeedRecord) {
	facts, err := p.extractor.Extract(ctx, rec.Title, rec.Snippet)
	if err != nil {
		p.metrics.RecordExtractionFailure()
		logger.Debug("AI抽出に失敗しました",
			slog.String("row_key", rec.RowKey),
			slog.String("error", err.Error()),
		)
		return
	}
	rec.CompanyName = facts.CompanyName
	rec.LayoffCount = facts.LayoffCount
	rec.Sector = facts.Sector
}
