package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hitoshi/layofflens/internal/model"
)

// DefaultExtractorModel はAI抽出に使う既定のモデル。
const DefaultExtractorModel = "claude-3-5-haiku-latest"

const extractorMaxTokens = 256

// ErrInconclusive は応答から構造化情報を読み取れなかった場合のエラー。
var ErrInconclusive = errors.New("抽出結果を判定できませんでした")

// Extractor はタイトルとスニペットから人員削減に関する構造化情報を抽出する。
// 失敗時はゼロ値のLayoffFactsとエラーを返し、呼び出し元はゼロ値をそのまま使う。
type Extractor interface {
	Extract(ctx context.Context, title, snippet string) (model.LayoffFacts, error)
}

// NoopExtractor は何も抽出しないExtractor。APIキー未設定時に使う。
type NoopExtractor struct{}

// Extract は常に空の結果を返す。
func (NoopExtractor) Extract(context.Context, string, string) (model.LayoffFacts, error) {
	return model.LayoffFacts{}, nil
}

const extractorSystemPrompt = `You extract facts from news headlines about layoffs.
Reply with a single JSON object and nothing else:
{"companyName": string or null, "layoffCount": integer or null, "sector": string or null}
companyName is the employer announcing the cuts. layoffCount is the number of jobs cut, only if stated.
sector is a short industry label such as "Technology", "Finance", "Retail", "Healthcare", "Media", "Automotive".
Use null for anything not stated or not about a layoff.`

// ClaudeExtractor はAnthropic Messages APIで抽出を行う。
type ClaudeExtractor struct {
	client anthropic.Client
	model  string
	logger *slog.Logger
}

// NewClaudeExtractor はClaudeExtractorの新しいインスタンスを生成する。
// 再試行はせず、失敗はその記事の抽出なしとして扱う。
func NewClaudeExtractor(apiKey, modelName string, httpClient *http.Client, logger *slog.Logger, opts ...option.RequestOption) *ClaudeExtractor {
	if modelName == "" {
		modelName = DefaultExtractorModel
	}
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if httpClient != nil {
		base = append(base, option.WithHTTPClient(httpClient))
	}
	return &ClaudeExtractor{
		client: anthropic.NewClient(append(base, opts...)...),
		model:  modelName,
		logger: logger,
	}
}

// Extract はタイトルとスニペットをモデルに送り、JSON応答を正規化して返す。
func (c *ClaudeExtractor) Extract(ctx context.Context, title, snippet string) (model.LayoffFacts, error) {
	prompt := fmt.Sprintf("Headline: %s\nSnippet: %s", title, snippet)

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: extractorMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: extractorSystemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return model.LayoffFacts{}, fmt.Errorf("Messages APIの呼び出しに失敗しました: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	facts, err := ParseFacts(text.String())
	if err != nil {
		c.logger.Debug("AI抽出の応答を解釈できませんでした",
			slog.String("title", title),
			slog.String("reply", text.String()),
		)
		return model.LayoffFacts{}, err
	}
	return facts, nil
}

// rawFacts はモデル応答のJSON。数値が文字列で返る場合もあるためanyで受ける。
type rawFacts struct {
	CompanyName any `json:"companyName"`
	LayoffCount any `json:"layoffCount"`
	Sector      any `json:"sector"`
}

// ParseFacts はモデルの応答テキストからJSONオブジェクトを取り出し、正規化する。
// 前後に説明文やコードフェンスが付いていても、最初の { から始まるオブジェクト1つだけを読む。
// 後続のテキストや2つ目のオブジェクトは無視する。
func ParseFacts(reply string) (model.LayoffFacts, error) {
	start := strings.Index(reply, "{")
	if start < 0 {
		return model.LayoffFacts{}, ErrInconclusive
	}

	var raw rawFacts
	if err := json.NewDecoder(strings.NewReader(reply[start:])).Decode(&raw); err != nil {
		return model.LayoffFacts{}, fmt.Errorf("%w: %v", ErrInconclusive, err)
	}

	return model.LayoffFacts{
		CompanyName: cleanText(raw.CompanyName),
		LayoffCount: cleanCount(raw.LayoffCount),
		Sector:      NormalizeSector(cleanText(raw.Sector)),
	}, nil
}

// isSentinel は「値なし」を意味する文字列かどうかを判定する。
func isSentinel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "null", "undefined", "unknown", "n/a", "na", "none":
		return true
	}
	return false
}

func cleanText(v any) string {
	s, ok := v.(string)
	if !ok || isSentinel(s) {
		return ""
	}
	return strings.Join(strings.Fields(s), " ")
}

func cleanCount(v any) *int {
	var n int
	switch t := v.(type) {
	case float64:
		n = int(t)
	case string:
		parsed, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(t), ",", ""))
		if err != nil {
			return nil
		}
		n = parsed
	default:
		return nil
	}
	if n <= 0 {
		return nil
	}
	return &n
}

// NormalizeSector はセクター名を単語ごとの先頭大文字に揃える。センチネル値は空文字にする。
func NormalizeSector(s string) string {
	if isSentinel(s) {
		return ""
	}
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
