// =============================================================================
// utils.go - ユーティリティ関数
// =============================================================================
//
// このファイルはパッケージ全体で使用する汎用的なヘルパー関数を提供します。
//
// 【このファイルで提供する機能】
//   - 文字列操作: 重複削除、空白正規化、切り詰め
//   - マークアップ除去: goquery によるテキスト化
//   - HTTP操作: フォームPOST
//
// =============================================================================
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// userAgent は全HTTPリクエストに付与する User-Agent
const userAgent = "pubmed-relay/1.0 (+https://github.com/pubmed-relay)"

// -----------------------------------------------------------------------------
// 文字列操作関数
// -----------------------------------------------------------------------------

// normalizeWhitespace は文字列内の連続する空白を単一スペースに正規化する
//
//	normalizeWhitespace("  hello   world  ")  // "hello world"
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// trimAll は各要素の前後の空白を除去する
func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.TrimSpace(s))
	}
	return out
}

// uniqStrings は文字列スライスから重複と空文字列を除去する（出現順は保持）
func uniqStrings(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// truncateString は文字列を指定した長さ（rune単位）に切り詰める
//
//	truncateString("Hello World", 8)  // "Hello..."
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// markupText はインラインマークアップ（<i>, <sup> 等）を含む断片から
// テキストだけを取り出し、空白を正規化して返す
//
// PubMed の ArticleTitle / AbstractText には書式タグが混ざるため、
// innerxml を goquery でパースしてテキスト化する。
func markupText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return normalizeWhitespace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return normalizeWhitespace(fragment)
	}
	return normalizeWhitespace(doc.Text())
}

// -----------------------------------------------------------------------------
// HTTP操作関数
// -----------------------------------------------------------------------------

// postForm はフォームエンコードのPOSTリクエストを送信する
//
// 長いクエリ文字列（数十誌分の誌名フィルタ）でもURL長制限に掛からないよう、
// E-utilities への呼び出しはすべてPOSTで行う。
// 呼び出し元でresp.Body.Close()を行う必要がある。
func postForm(ctx context.Context, client *http.Client, endpoint string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("request creation failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return resp, nil
}
