// Package item はレコードの同一性判定・分類・スコアリングと一覧取得を提供する。
package item

import (
	"encoding/base64"
	"strings"
)

// maxRowKeyLength はRowKeyの最大長。
const maxRowKeyLength = 63

// rowKeyStripper はbase64出力からURLやキーに使えない文字を取り除く。
var rowKeyStripper = strings.NewReplacer("/", "", "+", "", "=", "")

// RowKey はリンクURLから決定的なレコードキーを導出する。
// リンクのbase64表現から "/", "+", "=" を除去し、先頭63文字に切り詰める。
// 同じリンクからは常に同じキーが得られる。
func RowKey(link string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(link))
	key := rowKeyStripper.Replace(encoded)
	if len(key) > maxRowKeyLength {
		key = key[:maxRowKeyLength]
	}
	return key
}
