// =============================================================================
// wiring.go - ロガーと本番コンポーネントの組み立て
// =============================================================================
//
// CLI と Lambda の両方から呼ばれる共通の組み立て処理です。
//
// 【配信先の決定】
//   - --dry-run:            プレビューのみ（Webhook 設定は無視）
//   - Webhook 未設定/不正:   プレビューのみ（警告ログ）
//   - Webhook 設定済み:      Feishu 配信（Notion 設定があればアーカイブも）
//
// =============================================================================
package pipeline

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger は stderr 向けのJSONロガーを返す
//
// debug=true の場合はコンソール形式・debugレベルの開発用ロガーになる。
func NewLogger(debug bool) (*zap.Logger, error) {
	var zcfg zap.Config
	if debug {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zcfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	l, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return l, nil
}

// BuildOptions は Config に含めない実行ごとの切り替え
type BuildOptions struct {
	// DryRun は Webhook があってもプレビューのみにする
	DryRun bool
	// Preview はプレビュー表の出力先
	Preview io.Writer
	// Now は履歴の日付判定に使う時計（nil なら time.Now）
	Now func() time.Time
}

// Build は cfg に従って本番用のコンポーネントを組み立てる
func Build(cfg Config, opts BuildOptions, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, w := range cfg.Warnings {
		logger.Warn("ignored configuration value", zap.String("reason", w))
	}

	history := NewFileHistory(cfg.HistoryPath, opts.Now, logger.Named("history"))
	client := NewPubMedClient(cfg.EUtils, cfg.Timeouts, logger)

	pOpts := []Option{WithLogger(logger.Named("pipeline"))}
	if opts.Preview != nil {
		pOpts = append(pOpts, WithPreviewOutput(opts.Preview))
	}

	switch {
	case opts.DryRun:
		logger.Info("dry run: delivery disabled")
	case !cfg.HasWebhook():
		logger.Warn("FEISHU_WEBHOOK_URL not set, running in preview mode")
	default:
		n, err := NewFeishuNotifier(cfg.Webhook, cfg.Keywords, cfg.Timeouts.Deliver, logger)
		if err != nil {
			return nil, err
		}
		pOpts = append(pOpts, WithNotifier(n))

		if cfg.Notion.Enabled() {
			a, err := NewNotionArchiver(cfg.Notion, logger)
			if err != nil {
				return nil, err
			}
			pOpts = append(pOpts, WithArchiver(a))
		}
	}

	return New(cfg, history, client, client, pOpts...)
}
