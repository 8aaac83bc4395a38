package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/layofflens/internal/model"
)

// googleNewsEndpoint はGoogle NewsのRSS検索エンドポイント。
const googleNewsEndpoint = "https://news.google.com/rss/search"

// GoogleNewsProvider はGoogle NewsのRSS検索をgofeedでパースする検索プロバイダー。
// APIキーが不要なため、Serperを使わない開発環境向けの代替として使う。
type GoogleNewsProvider struct {
	parser   *gofeed.Parser
	logger   *slog.Logger
	endpoint string // テスト用にエンドポイントを差し替え可能
	hl       string
	gl       string
}

// NewGoogleNewsProvider はGoogleNewsProviderの新しいインスタンスを生成する。
func NewGoogleNewsProvider(httpClient *http.Client, logger *slog.Logger) *GoogleNewsProvider {
	parser := gofeed.NewParser()
	parser.Client = httpClient
	parser.UserAgent = userAgent
	return &GoogleNewsProvider{
		parser:   parser,
		logger:   logger,
		endpoint: googleNewsEndpoint,
		hl:       "en-US",
		gl:       "US",
	}
}

// Name はプロバイダー名を返す。
func (p *GoogleNewsProvider) Name() string { return "googlenews" }

// Search はRSS検索を実行し、先頭からnum件を返す。
func (p *GoogleNewsProvider) Search(ctx context.Context, query string, num int) ([]model.SearchResult, error) {
	reqURL, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}
	q := reqURL.Query()
	q.Set("q", query)
	q.Set("hl", p.hl)
	q.Set("gl", p.gl)
	q.Set("ceid", p.gl+":"+strings.SplitN(p.hl, "-", 2)[0])
	reqURL.RawQuery = q.Encode()

	feed, err := p.parser.ParseURLWithContext(reqURL.String(), ctx)
	if err != nil {
		p.logger.Debug("Google News RSSの取得に失敗しました",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("Google News RSSの取得に失敗しました: %w", err)
	}

	results := make([]model.SearchResult, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		if num > 0 && len(results) >= num {
			break
		}
		results = append(results, convertNewsItem(it))
	}
	return results, nil
}

// convertNewsItem はRSSの記事1件を検索結果に変換する。
// Google Newsのタイトルは "見出し - 配信元" 形式のため、末尾を配信元として切り出す。
func convertNewsItem(it *gofeed.Item) model.SearchResult {
	res := model.SearchResult{
		Title:   it.Title,
		Link:    it.Link,
		Snippet: it.Description,
	}

	if i := strings.LastIndex(it.Title, " - "); i > 0 {
		res.Title = strings.TrimSpace(it.Title[:i])
		res.Source = strings.TrimSpace(it.Title[i+3:])
	}

	// LinkがなくGUIDがURL形式の場合はGUIDをLinkとして使用
	if res.Link == "" && (strings.HasPrefix(it.GUID, "http://") || strings.HasPrefix(it.GUID, "https://")) {
		res.Link = it.GUID
	}

	if it.Image != nil {
		res.ImageURL = it.Image.URL
	}
	for _, enc := range it.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			res.ThumbnailURL = enc.URL
			break
		}
	}

	return res
}
