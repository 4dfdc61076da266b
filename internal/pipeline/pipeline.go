// =============================================================================
// pipeline.go - 検索・順位付け・配信パイプライン
// =============================================================================
//
// 1回の Run は次の順に進みます:
//
//	履歴読み込み ─► 残り枠確認 ─► 検索 ─► 配信済み除外 ─► 取得＋スコア
//	      ─► スコア順ソート ─► 残り枠で切り詰め ─► 配信 or プレビュー
//	      ─► （配信成功時のみ）履歴更新・保存、アーカイブ
//
// 途中終了はすべて Outcome で表し、エラーにはしない。
// 履歴ファイルが変わるのは配信先が受理を返した後だけ。
//
// =============================================================================
package pipeline

import (
	"context"
	"errors"
	"io"
	"os"

	"go.uber.org/zap"
)

// Pipeline は1回の実行に使うコンポーネントをまとめる
type Pipeline struct {
	cfg      Config
	history  HistoryStore
	searcher Searcher
	fetcher  Fetcher
	notifier Notifier // nil = プレビューモード
	archiver Archiver // nil = アーカイブなし
	preview  io.Writer
	logger   *zap.Logger
}

// Option は Pipeline の設定を変更する
type Option func(*Pipeline)

// WithNotifier は配信先を設定する（未設定ならプレビューモード）
func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithArchiver は配信成功後のアーカイブ先を設定する
func WithArchiver(a Archiver) Option {
	return func(p *Pipeline) { p.archiver = a }
}

// WithPreviewOutput はプレビュー表の出力先を変更する（既定は os.Stdout）
func WithPreviewOutput(w io.Writer) Option {
	return func(p *Pipeline) { p.preview = w }
}

// WithLogger はロガーを設定する
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New はパイプラインを作成する（history, searcher, fetcher は必須）
func New(cfg Config, history HistoryStore, searcher Searcher, fetcher Fetcher, opts ...Option) (*Pipeline, error) {
	if history == nil || searcher == nil || fetcher == nil {
		return nil, errors.New("pipeline: history, searcher and fetcher are required")
	}
	p := &Pipeline{
		cfg:      cfg,
		history:  history,
		searcher: searcher,
		fetcher:  fetcher,
		preview:  os.Stdout,
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Run は検索→順位付け→配信を1回実行する
func (p *Pipeline) Run(ctx context.Context) RunResult {
	rec := p.history.Load()
	remaining := p.cfg.DailyLimit - rec.Count
	res := RunResult{Remaining: remaining}
	log := p.logger.With(zap.String("date", rec.Date), zap.Int("sent_today", rec.Count))

	if remaining <= 0 {
		log.Info("daily quota exhausted, skipping search", zap.Int("daily_limit", p.cfg.DailyLimit))
		res.Outcome = OutcomeQuotaExhausted
		return res
	}

	ids := p.searcher.Search(ctx, KeywordExpression(p.cfg.Keywords), p.cfg.Journals, p.cfg.PoolSize)
	if len(ids) == 0 {
		log.Info("no articles found")
		res.Outcome = OutcomeNothingFound
		return res
	}

	fresh := filterUnsent(ids, rec.SentSet())
	log.Info("search done", zap.Int("found", len(ids)), zap.Int("unsent", len(fresh)))
	if len(fresh) == 0 {
		res.Outcome = OutcomeNothingNew
		return res
	}

	ranked := RankArticles(p.fetcher.FetchAndScore(ctx, fresh, p.cfg.Keywords))
	res.Candidates = ranked

	top := ranked
	if len(top) > remaining {
		top = top[:remaining]
	}
	if len(top) == 0 {
		log.Info("no article details retrieved")
		res.Outcome = OutcomeNothingFound
		return res
	}

	if p.notifier == nil {
		log.Info("webhook not configured, printing preview", zap.Int("candidates", len(ranked)))
		PrintPreview(p.preview, ranked)
		res.Delivered = top
		res.Outcome = OutcomePreview
		return res
	}

	if !p.notifier.Deliver(ctx, top) {
		log.Warn("delivery not confirmed, history unchanged", zap.Int("articles", len(top)))
		res.Outcome = OutcomeDeliveryFailed
		return res
	}
	res.Delivered = top
	res.Outcome = OutcomeDelivered

	rec.MarkSent(IDs(top), p.cfg.MaxSentIDs)
	if err := p.history.Save(rec); err != nil {
		log.Error("failed to save history", zap.Error(err))
	} else {
		log.Info("history updated", zap.Int("sent_today", rec.Count), zap.Int("known_ids", len(rec.SentIDs)))
	}

	if p.archiver != nil {
		if err := p.archiver.Archive(ctx, top); err != nil {
			log.Warn("archive incomplete", zap.Error(err))
		}
	}
	return res
}
