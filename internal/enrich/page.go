package enrich

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// maxPageSize は記事ページの読み取り上限（2MB）。
const maxPageSize = 2 * 1024 * 1024

const pageUserAgent = "LayoffLens/1.0 (+https://github.com/hitoshi/layofflens)"

// URLValidator は取得前のURL検証インターフェース。security.SSRFGuardService が満たす。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// imageSelectors は代表画像を探すセレクタと属性。先頭ほど優先する。
var imageSelectors = []struct {
	selector string
	attr     string
}{
	{`meta[property="og:image:secure_url"]`, "content"},
	{`meta[property="og:image"]`, "content"},
	{`meta[name="og:image"]`, "content"},
	{`meta[name="twitter:image"]`, "content"},
	{`meta[name="twitter:image:src"]`, "content"},
	{`meta[property="twitter:image"]`, "content"},
	{`link[rel="image_src"]`, "href"},
}

// PageImageLookup は記事ページを取得し、OGP等のメタ情報から代表画像を読み取る。
type PageImageLookup struct {
	client    *http.Client
	validator URLValidator
	logger    *slog.Logger
}

// NewPageImageLookup はPageImageLookupの新しいインスタンスを生成する。
// clientにはSSRF対策済みのクライアントを渡す。validatorがnilの場合は事前検証をしない。
func NewPageImageLookup(client *http.Client, validator URLValidator, logger *slog.Logger) *PageImageLookup {
	return &PageImageLookup{
		client:    client,
		validator: validator,
		logger:    logger,
	}
}

// Lookup は記事ページの代表画像URLを返す。画像が宣言されていなければ空文字を返す。
func (p *PageImageLookup) Lookup(ctx context.Context, req ImageRequest) (string, error) {
	if req.URL == "" {
		return "", nil
	}

	if p.validator != nil {
		if err := p.validator.ValidateURL(req.URL); err != nil {
			return "", fmt.Errorf("URL検証に失敗しました: %w", err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	httpReq.Header.Set("User-Agent", pageUserAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("記事ページの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("記事ページがステータス %d を返しました", resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		p.logger.Debug("HTMLではないページのため画像探索をスキップします",
			slog.String("url", req.URL),
			slog.String("content_type", ct),
		)
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", fmt.Errorf("HTMLのパースに失敗しました: %w", err)
	}

	return extractPageImage(doc, resp.Request.URL), nil
}

// extractPageImage はドキュメントから代表画像を探し、base基準で絶対URLに解決する。
func extractPageImage(doc *goquery.Document, base *url.URL) string {
	for _, s := range imageSelectors {
		val, ok := doc.Find(s.selector).First().Attr(s.attr)
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		if val == "" {
			continue
		}
		ref, err := url.Parse(val)
		if err != nil {
			continue
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		return ref.String()
	}
	return ""
}
