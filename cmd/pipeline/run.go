// =============================================================================
// run.go - run コマンド（1回実行）
// =============================================================================
//
// cron や systemd timer などの外部スケジューラから呼ぶ想定です。
// SIGINT/SIGTERM を受けると実行中のHTTP呼び出しを中断します。
//
// =============================================================================
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pubmed-relay/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Search, rank and deliver once",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runOnce(ctx, cfg, logger)
		return nil
	},
}

// runOnce はパイプラインを新しく組み立てて1回実行する
//
// 失敗はログに出すだけで、呼び出し元には返さない。
func runOnce(ctx context.Context, cfg pipeline.Config, logger *zap.Logger) {
	logger.Info("starting run",
		zap.Strings("keywords", cfg.Keywords),
		zap.Int("journals", len(cfg.Journals)),
		zap.Int("daily_limit", cfg.DailyLimit),
		zap.String("history", cfg.HistoryPath),
	)

	p, err := pipeline.Build(cfg, pipeline.BuildOptions{DryRun: flagDryRun, Preview: os.Stdout}, logger)
	if err != nil {
		logger.Error("cannot build pipeline", zap.Error(err))
		return
	}

	res := p.Run(ctx)
	logger.Info("run finished",
		zap.String("outcome", string(res.Outcome)),
		zap.Int("candidates", len(res.Candidates)),
		zap.Int("delivered", len(res.Delivered)),
	)
}
