// =============================================================================
// preview.go - コンソール表示
// =============================================================================
//
// Webhook 未設定時のプレビュー表と、history show の要約表を出力します。
// どちらも stdout（データ出力用）に書き、ログは stderr に出します。
//
// =============================================================================
package pipeline

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// PrintPreview はスコア順の候補一覧を表として書き出す
//
// 配信先が無い場合に配信の代わりに使う。
func PrintPreview(w io.Writer, articles []ScoredArticle) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Preview (webhook not configured)")

	t.AppendHeader(table.Row{"#", "Score", "Title", "Link"})
	for i, a := range articles {
		t.AppendRow(table.Row{i + 1, a.Score, truncateString(a.Title, 80), a.URL})
	}
	t.Render()
}

// PrintHistory は履歴レコードの要約を表として書き出す
func PrintHistory(w io.Writer, rec HistoryRecord, dailyLimit int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	remaining := dailyLimit - rec.Count
	if remaining < 0 {
		remaining = 0
	}
	t.AppendRows([]table.Row{
		{"Date", rec.Date},
		{"Sent today", rec.Count},
		{"Daily limit", dailyLimit},
		{"Remaining", remaining},
		{"Known IDs", len(rec.SentIDs)},
	})
	t.Render()
}
