// =============================================================================
// history.go - 配信履歴ストア
// =============================================================================
//
// 実行をまたいで共有する小さな配信記録を保存します:
//
//	{"date": "2026-10-16", "count": 3, "sent_ids": ["39012345", ...]}
//
// 【フィールド】
//   - count:    date の日に配信した件数。日付が変わると 0 に戻す
//   - sent_ids: 重複配信防止用のID集合。日付をまたいで保持し、
//               新しい順に MaxSentIDs 件まで残す
//
// ファイルは配信成功後にのみ、一時ファイル＋rename で丸ごと書き換える。
// ロックは行わない（同時に動く実行は1つだけ）。
//
// =============================================================================
package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const historyDateLayout = "2006-01-02"

// HistoryRecord は配信枠と重複防止のための永続レコード
type HistoryRecord struct {
	Date    string   `json:"date"`
	Count   int      `json:"count"`
	SentIDs []string `json:"sent_ids"`
}

// HistoryStore は HistoryRecord を読み書きする
type HistoryStore interface {
	Load() HistoryRecord
	Save(rec HistoryRecord) error
}

// Has は id が過去の実行で配信済みかどうかを返す
func (r HistoryRecord) Has(id string) bool {
	for _, s := range r.SentIDs {
		if s == id {
			return true
		}
	}
	return false
}

// SentSet は sent_ids を検索用の集合にして返す
func (r HistoryRecord) SentSet() map[string]bool {
	set := make(map[string]bool, len(r.SentIDs))
	for _, id := range r.SentIDs {
		set[id] = true
	}
	return set
}

// Reset はレコードを今日の日付に切り替える（count は 0、sent_ids は保持）
func (r *HistoryRecord) Reset(today string) {
	if r.Date == today {
		return
	}
	r.Date = today
	r.Count = 0
}

// MarkSent は ids の配信成功を記録する
//
// 既にあるIDは二重に追加しない。maxIDs > 0 の場合は古いものから削除し、
// 最大 maxIDs 件を残す。
func (r *HistoryRecord) MarkSent(ids []string, maxIDs int) {
	seen := r.SentSet()
	for _, id := range ids {
		r.Count++
		if seen[id] {
			continue
		}
		seen[id] = true
		r.SentIDs = append(r.SentIDs, id)
	}
	if maxIDs > 0 && len(r.SentIDs) > maxIDs {
		r.SentIDs = append([]string(nil), r.SentIDs[len(r.SentIDs)-maxIDs:]...)
	}
}

// FileHistory は1つのJSONファイルを使う HistoryStore
type FileHistory struct {
	path   string
	now    func() time.Time
	logger *zap.Logger
}

// NewFileHistory は path 用のストアを返す（now が nil なら time.Now）
func NewFileHistory(path string, now func() time.Time, logger *zap.Logger) *FileHistory {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileHistory{path: path, now: now, logger: logger}
}

// Path は保存先ファイルのパスを返す
func (h *FileHistory) Path() string { return h.path }

func (h *FileHistory) today() string {
	return h.now().Local().Format(historyDateLayout)
}

// Load はレコードを読み込む
//
// ファイルが無い・読めない場合は今日の空レコードを返す。
// 前日以前のレコードは count を 0 に戻して返す。
func (h *FileHistory) Load() HistoryRecord {
	today := h.today()
	fresh := HistoryRecord{Date: today, SentIDs: []string{}}

	b, err := os.ReadFile(h.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			h.logger.Warn("history unreadable, starting fresh", zap.String("path", h.path), zap.Error(err))
		}
		return fresh
	}

	var rec HistoryRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		h.logger.Warn("history corrupt, starting fresh", zap.String("path", h.path), zap.Error(err))
		return fresh
	}
	if rec.SentIDs == nil {
		rec.SentIDs = []string{}
	}
	if rec.Count < 0 {
		rec.Count = 0
	}
	rec.Reset(today)
	return rec
}

// Save は同じディレクトリの一時ファイル経由で rec を書き込む
func (h *FileHistory) Save(rec HistoryRecord) error {
	if rec.SentIDs == nil {
		rec.SentIDs = []string{}
	}
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	dir := filepath.Dir(h.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("create temp history: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // rename 成功後は何もしない

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp history: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp history: %w", err)
	}
	if err := os.Rename(tmpName, h.path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}
