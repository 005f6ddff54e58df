// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は請求書の説明や取引先名などの自由入力から
// HTMLタグを取り除き、プレーンテキストとして保存できる形にする。
// 保存された値はPDFとHTMLメールにそのまま埋め込まれる。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService は自由入力テキストのサニタイズ機能のインターフェース。
type TextSanitizerService interface {
	// Sanitize は全てのHTMLタグを除去したプレーンテキストを返す。
	// script・style要素は中身ごと除去し、前後の空白を取り除く。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフで、複数リクエストから同時に利用できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// bluemondayのStrictPolicy（許可タグなし）を使用する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はHTMLタグを除去する。
// StrictPolicyはテキスト中の記号をエンティティに変換するため、出力はアンエスケープして返す。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}
