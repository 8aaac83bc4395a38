// Package search は検索APIから人員削減関連のニュースと動画を取得する。
// クエリリストの実行は Client、個別APIとの通信は Provider 実装が担う。
package search

import (
	"context"
	"errors"

	"github.com/hitoshi/layofflens/internal/model"
)

// userAgent は外部APIへのリクエストに付与するUser-Agent。
const userAgent = "LayoffLens/1.0 (+https://github.com/hitoshi/layofflens)"

// ErrMissingAPIKey はAPIキーが未設定のままプロバイダーを生成しようとした場合に返す。
var ErrMissingAPIKey = errors.New("検索APIキーが設定されていません")

// Provider は1クエリ分の検索を行うインターフェース。
// 結果はプロバイダーの返却順のまま返す。
type Provider interface {
	Search(ctx context.Context, query string, num int) ([]model.SearchResult, error)
	Name() string
}
