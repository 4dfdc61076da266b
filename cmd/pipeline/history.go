// =============================================================================
// history.go - history コマンド（履歴ファイルの確認・調整）
// =============================================================================
//
//   pipeline history show    日付・本日の配信数・残り枠・保持ID数を表示
//   pipeline history reset   本日の配信数を 0 に戻す（sent_ids は保持）
//
// =============================================================================
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pubmed-relay/internal/pipeline"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect or adjust the delivery history",
}

var historyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print today's quota usage and the number of known IDs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		store := pipeline.NewFileHistory(cfg.HistoryPath, nil, logger)
		fmt.Fprintf(os.Stdout, "History file: %s\n", store.Path())
		pipeline.PrintHistory(os.Stdout, store.Load(), cfg.DailyLimit)
		return nil
	},
}

var historyResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset today's sent count to zero (sent IDs are kept)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		store := pipeline.NewFileHistory(cfg.HistoryPath, nil, logger)
		rec := store.Load()
		rec.Count = 0
		if err := store.Save(rec); err != nil {
			return fmt.Errorf("save history: %w", err)
		}
		logger.Info("sent count reset", zap.String("date", rec.Date), zap.Int("known_ids", len(rec.SentIDs)))
		return nil
	},
}

func init() {
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyResetCmd)
}
