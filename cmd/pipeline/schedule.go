// =============================================================================
// schedule.go - schedule コマンド（常駐実行）
// =============================================================================
//
// cron式（5フィールド、既定 "0 9 * * *"）に従って run と同じ処理を繰り返します。
//
//   pipeline schedule                   設定ファイルの schedule を使用
//   pipeline schedule --cron "*/30 * * * *"
//
// 前回の実行が終わっていない場合、その回はスキップします。
//
// =============================================================================
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var flagSchedule string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run on a cron schedule until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		spec := cfg.Schedule
		if flagSchedule != "" {
			spec = flagSchedule
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cronLog := cronLogger{logger.Named("cron").Sugar()}
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		c := cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		)

		// 毎回パイプラインを作り直して履歴を読み込むので、日付の切り替えは
		// 個別に起動した場合と同じになる
		if _, err := c.AddFunc(spec, func() { runOnce(ctx, cfg, logger) }); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", spec, err)
		}

		logger.Info("scheduler started", zap.String("schedule", spec))
		c.Start()
		<-ctx.Done()

		logger.Info("stopping scheduler")
		<-c.Stop().Done()
		return nil
	},
}

func init() {
	scheduleCmd.Flags().StringVar(&flagSchedule, "cron", "", "cron expression (overrides config schedule)")
}

// cronLogger は zap を cron.Logger として使うためのアダプタ
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
