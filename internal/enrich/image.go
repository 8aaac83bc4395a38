// Package enrich は取り込み済みレコードへのベストエフォートな補完処理を提供する。
// 画像探索はサイクルごとの呼び出し予算内で行い、AI抽出は予算と無関係に全件へ行う。
// どちらの失敗もログに残すだけで呼び出し元へは伝播しない。
package enrich

import (
	"context"
	"log/slog"

	"github.com/hitoshi/layofflens/internal/item"
	"github.com/hitoshi/layofflens/internal/metrics"
	"github.com/hitoshi/layofflens/internal/model"
)

// DefaultImageLookupCap は1サイクルあたりの既定の画像探索回数。
// 画像検索APIの無料枠に合わせている。
const DefaultImageLookupCap = 8

// ImageRequest は画像探索1回分の入力。
type ImageRequest struct {
	URL       string
	Title     string
	ImageHint string
	Source    string
}

// ImageLookup は記事に対応する画像URLを外部から探すインターフェース。
// 見つからない場合は空文字とnilを返す。
type ImageLookup interface {
	Lookup(ctx context.Context, req ImageRequest) (string, error)
}

// ImageEnricher は画像のないレコードに対して予算内で画像探索を行う。
type ImageEnricher struct {
	lookup  ImageLookup
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewImageEnricher はImageEnricherの新しいインスタンスを生成する。
func NewImageEnricher(lookup ImageLookup, mc metrics.MetricsCollector, logger *slog.Logger) *ImageEnricher {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &ImageEnricher{
		lookup:  lookup,
		metrics: mc,
		logger:  logger,
	}
}

// Enrich はrecに画像がなければ1回だけ探索し、残り予算を返す。
// 既に画像があるレコードは予算を消費しない。remainingが0以下なら探索せずに0を返す。
// 探索は成否にかかわらず1単位を消費する。低品質な画像は採用しない。
func (e *ImageEnricher) Enrich(ctx context.Context, rec *model.FeedRecord, remaining int) int {
	if rec.ImageURL != "" {
		return remaining
	}
	if remaining <= 0 || e.lookup == nil {
		e.metrics.RecordImageLookup(metrics.ImageSkipped)
		return max(remaining, 0)
	}
	remaining--

	found, err := e.lookup.Lookup(ctx, ImageRequest{
		URL:    rec.Link,
		Title:  rec.Title,
		Source: rec.Source,
	})
	if err != nil {
		e.logger.Warn("画像探索に失敗しました",
			slog.String("row_key", rec.RowKey),
			slog.String("link", rec.Link),
			slog.String("error", err.Error()),
		)
		e.metrics.RecordImageLookup(metrics.ImageError)
		return remaining
	}

	img := item.AcceptableImage(found)
	if img == "" {
		if found != "" {
			e.logger.Debug("低品質な画像を除外しました",
				slog.String("row_key", rec.RowKey),
				slog.String("image_url", found),
			)
		}
		e.metrics.RecordImageLookup(metrics.ImageMissing)
		return remaining
	}

	rec.ImageURL = img
	e.metrics.RecordImageLookup(metrics.ImageFound)
	return remaining
}

// ChainLookup は複数のImageLookupを順に試し、最初に採用可能な画像を返す。
// 予算上はまとめて1回の探索として数える。
type ChainLookup []ImageLookup

// Lookup は各探索を順に試す。すべてが失敗した場合のみ最後のエラーを返す。
func (c ChainLookup) Lookup(ctx context.Context, req ImageRequest) (string, error) {
	var lastErr error
	succeeded := false
	for _, l := range c {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		img, err := l.Lookup(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}
		succeeded = true
		if img = item.AcceptableImage(img); img != "" {
			return img, nil
		}
	}
	if succeeded {
		return "", nil
	}
	return "", lastErr
}
