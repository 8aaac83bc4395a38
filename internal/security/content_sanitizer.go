// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は検索プロバイダが返すタイトルやスニペットからHTMLを取り除き、
// 画面表示や保存に使えるプレーンテキストへ正規化する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はHTML断片をプレーンテキストへ変換する機能のインターフェースを定義する。
type TextSanitizer interface {
	// Clean はタグを全て除去し、HTMLエンティティをデコードし、連続する空白を1つにまとめる。
	// 空文字列の入力には空文字列を返す。
	Clean(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemonday.Policyはゴルーチンセーフなので1つを共有する。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はbluemondayのStrictPolicy（全タグ除去）を使うTextSanitizerを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Clean はHTML断片をプレーンテキストへ変換する。
func (s *textSanitizer) Clean(raw string) string {
	if raw == "" {
		return ""
	}
	// StrictPolicyはエンティティをエスケープしたまま返すため、最後にデコードする
	stripped := s.policy.Sanitize(raw)
	return strings.Join(strings.Fields(html.UnescapeString(stripped)), " ")
}
