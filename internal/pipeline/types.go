// =============================================================================
// types.go - データ構造定義
// =============================================================================
//
// このファイルはPubMed Relay全体で使用するデータ構造（型）を定義します。
//
// 【このファイルで定義している型】
//   - Article:       PubMedから取得した論文情報
//   - ScoredArticle: キーワード一致スコア付きの論文
//   - Outcome:       1回の実行がどこで終わったか
//   - RunResult:     1回の実行結果
//
// =============================================================================
package pipeline

import "strings"

// -----------------------------------------------------------------------------
// Article - 論文情報
// -----------------------------------------------------------------------------
//
// EFetch（XML）から抽出した1件の論文を表します。
// 実行ごとに生成され、カード整形後に破棄されます。
//
// 【フィールドの説明】
//
//	ID:               PMID（検索サービスが発行する識別子）
//	Title:            論文タイトル（欠落時は "No Title"）
//	Authors:          著者表示名（先頭3名まで、"姓 イニシャル"）
//	AuthorsTruncated: 4名以上いた場合 true
//	PubDate:          "2024-Mar" / "2024" / "Unknown Date"
//	URL:              https://pubmed.ncbi.nlm.nih.gov/<id>/
//	Abstract:         AbstractText を空白1つで連結したもの
//	Journal:          掲載誌名
type Article struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Authors          []string `json:"authors,omitempty"`
	AuthorsTruncated bool     `json:"authorsTruncated,omitempty"`
	PubDate          string   `json:"pubDate"`
	URL              string   `json:"url"`
	Abstract         string   `json:"abstract,omitempty"`
	Journal          string   `json:"journal,omitempty"`
}

// AuthorLine は著者を ", " で連結し、省略があれば "..." を付けて返す
func (a Article) AuthorLine() string {
	line := strings.Join(a.Authors, ", ")
	if a.AuthorsTruncated {
		line += "..."
	}
	return line
}

// -----------------------------------------------------------------------------
// ScoredArticle - スコア付き論文
// -----------------------------------------------------------------------------
//
// Score は設定キーワードのうちタイトル+要旨に含まれた種類の数。
// Matched は一致したキーワード（設定順・元の大文字小文字を保持）。
type ScoredArticle struct {
	Article
	Score   int      `json:"score"`
	Matched []string `json:"matched,omitempty"`
}

// IDs は記事スライスからPMIDだけを取り出す
func IDs(articles []ScoredArticle) []string {
	out := make([]string, 0, len(articles))
	for _, a := range articles {
		out = append(out, a.ID)
	}
	return out
}

// -----------------------------------------------------------------------------
// Outcome / RunResult - 実行結果
// -----------------------------------------------------------------------------

// Outcome は1回の実行がどの終端状態に到達したかを表す
type Outcome string

const (
	OutcomeQuotaExhausted Outcome = "quota_exhausted" // 本日の上限に到達済み（検索しない）
	OutcomeNothingFound   Outcome = "nothing_found"   // 検索結果・取得結果が空
	OutcomeNothingNew     Outcome = "nothing_new"     // 全件が配信済み
	OutcomePreview        Outcome = "preview"         // Webhook未設定のためコンソール表示のみ
	OutcomeDelivered      Outcome = "delivered"       // 配信成功、履歴更新済み
	OutcomeDeliveryFailed Outcome = "delivery_failed" // 配信失敗、履歴は更新しない
)

// RunResult は Pipeline.Run の結果
type RunResult struct {
	Outcome    Outcome         `json:"outcome"`
	Remaining  int             `json:"remaining"`            // 実行開始時点の残り配信枠
	Candidates []ScoredArticle `json:"candidates,omitempty"` // スコア順に並べた全候補
	Delivered  []ScoredArticle `json:"delivered,omitempty"`  // 配信した（またはプレビューした）記事
}
