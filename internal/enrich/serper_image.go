package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/layofflens/internal/item"
	"github.com/hitoshi/layofflens/internal/search"
)

// serperImagesEndpoint はSerperの画像検索エンドポイント。
const serperImagesEndpoint = "https://google.serper.dev/images"

// serperImageCandidates は1回の画像検索で受け取る候補数。
const serperImageCandidates = 5

type serperImageRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

type serperImageResponse struct {
	Images []struct {
		ImageURL     string `json:"imageUrl"`
		ThumbnailURL string `json:"thumbnailUrl"`
		Link         string `json:"link"`
	} `json:"images"`
}

// SerperImageLookup は記事タイトルでSerperの画像検索を行う。
// 無料枠のレート制限に合わせ、呼び出し間隔をrate.Limiterで空ける。
type SerperImageLookup struct {
	httpClient *http.Client
	apiKey     string
	limiter    *rate.Limiter
	logger     *slog.Logger
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewSerperImageLookup はSerperImageLookupの新しいインスタンスを生成する。
// intervalが0以下の場合は間隔制御をしない。
func NewSerperImageLookup(httpClient *http.Client, apiKey string, interval time.Duration, logger *slog.Logger) (*SerperImageLookup, error) {
	if apiKey == "" {
		return nil, search.ErrMissingAPIKey
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &SerperImageLookup{
		httpClient: httpClient,
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
		endpoint:   serperImagesEndpoint,
	}, nil
}

// Lookup はタイトルで画像検索し、最初の採用可能な画像URLを返す。
func (s *SerperImageLookup) Lookup(ctx context.Context, req ImageRequest) (string, error) {
	query := req.Title
	if query == "" {
		return "", nil
	}
	if req.Source != "" {
		query = query + " " + req.Source
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("画像検索の待機が中断されました: %w", err)
	}

	var parsed serperImageResponse
	if err := search.PostSerper(ctx, s.httpClient, s.endpoint, s.apiKey, serperImageRequest{Q: query, Num: serperImageCandidates}, &parsed); err != nil {
		return "", err
	}

	for _, img := range parsed.Images {
		if u := item.AcceptableImage(img.ImageURL); u != "" {
			return u, nil
		}
		if u := item.AcceptableImage(img.ThumbnailURL); u != "" {
			return u, nil
		}
	}

	s.logger.Debug("画像検索で採用可能な画像が見つかりませんでした",
		slog.String("query", query),
		slog.Int("candidates", len(parsed.Images)),
	)
	return "", nil
}
