package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/layofflens/internal/model"
)

const (
	// serperSearchEndpoint はSerperのWeb検索エンドポイント。
	serperSearchEndpoint = "https://google.serper.dev/search"
	// maxResponseSize はレスポンスボディの読み取り上限（2MB）。
	maxResponseSize = 2 << 20
)

// serperRequest はSerper検索APIのリクエストボディ。
type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

// serperOrganic はSerperのorganic結果1件。
type serperOrganic struct {
	Title        string `json:"title"`
	Link         string `json:"link"`
	Snippet      string `json:"snippet"`
	Source       string `json:"source"`
	ImageURL     string `json:"imageUrl"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

type serperResponse struct {
	Organic []serperOrganic `json:"organic"`
}

// SerperProvider はSerper (google.serper.dev) を使う検索プロバイダー。
type SerperProvider struct {
	httpClient *http.Client
	apiKey     string
	logger     *slog.Logger
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewSerperProvider はSerperProviderの新しいインスタンスを生成する。
func NewSerperProvider(httpClient *http.Client, apiKey string, logger *slog.Logger) (*SerperProvider, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &SerperProvider{
		httpClient: httpClient,
		apiKey:     apiKey,
		logger:     logger,
		endpoint:   serperSearchEndpoint,
	}, nil
}

// Name はプロバイダー名を返す。
func (p *SerperProvider) Name() string { return "serper" }

// Search は1クエリ分の検索を実行し、organic結果を返却順のまま返す。
// organicが欠けたレスポンスは0件として扱う。
func (p *SerperProvider) Search(ctx context.Context, query string, num int) ([]model.SearchResult, error) {
	var parsed serperResponse
	if err := PostSerper(ctx, p.httpClient, p.endpoint, p.apiKey, serperRequest{Q: query, Num: num}, &parsed); err != nil {
		p.logger.Debug("Serper検索APIの呼び出しに失敗しました",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	results := make([]model.SearchResult, 0, len(parsed.Organic))
	for _, o := range parsed.Organic {
		results = append(results, model.SearchResult{
			Title:        o.Title,
			Link:         o.Link,
			Snippet:      o.Snippet,
			Source:       o.Source,
			ImageURL:     o.ImageURL,
			ThumbnailURL: o.ThumbnailURL,
		})
	}
	return results, nil
}

// PostSerper はSerper形式のJSON POSTを送り、2xxレスポンスをoutにデコードする。
// 画像検索 (enrich.SerperImageLookup) も同じ呼び出し規約を使う。
func PostSerper(ctx context.Context, client *http.Client, endpoint, apiKey string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("リクエストJSONの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", apiKey)
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("検索APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("検索APIがステータス %d を返しました", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}
