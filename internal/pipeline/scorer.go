// =============================================================================
// scorer.go - キーワード一致スコアリングと順位付け
// =============================================================================
//
// 【スコア】
//   Score = 設定キーワードのうち "タイトル 要旨" に（大文字小文字を無視した）
//           部分文字列として含まれる種類の数
//
//   設定側・本文側でキーワードが重複してもスコアは増えない。
//
// 【順位付け】
//   Score のみの安定ソート。同点は取得順（新しい順）のまま。
//   出版日での並べ替えは行わない。
//
// =============================================================================
package pipeline

import (
	"sort"
	"strings"
)

// Score は keywords に対する a の関連度を計算する
func Score(a Article, keywords []string) ScoredArticle {
	text := strings.ToLower(a.Title + " " + a.Abstract)

	seen := make(map[string]bool, len(keywords))
	var matched []string
	for _, k := range keywords {
		lk := strings.ToLower(strings.TrimSpace(k))
		if lk == "" || seen[lk] {
			continue
		}
		seen[lk] = true
		if strings.Contains(text, lk) {
			matched = append(matched, k)
		}
	}
	return ScoredArticle{Article: a, Score: len(matched), Matched: matched}
}

// RankArticles は in をスコア降順に安定ソートしたコピーを返す
func RankArticles(in []ScoredArticle) []ScoredArticle {
	out := append([]ScoredArticle(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// filterUnsent は sent に含まれるIDを順序を保ったまま除外する
func filterUnsent(ids []string, sent map[string]bool) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if sent[id] {
			continue
		}
		out = append(out, id)
	}
	return out
}
