// =============================================================================
// main.go - PubMed Relay CLI のエントリーポイント
// =============================================================================
//
// PubMed から新着論文を検索し、キーワード一致数で順位付けして、
// 1日の配信上限までを Feishu（飛書）グループに配信するCLIツールです。
//
// =============================================================================
// 【コマンド一覧】
// =============================================================================
//
//   pipeline run               1回だけ実行（外部スケジューラ向け）
//   pipeline schedule          cron式に従って繰り返し実行（常駐）
//   pipeline history show      履歴ファイルの内容を表示
//   pipeline history reset     本日の配信数を0に戻す（sent_ids は保持）
//   pipeline version           バージョン表示
//
// ▼ 共通フラグ
//   --config    YAML設定ファイル（省略時は既定値＋環境変数のみ）
//   --debug     開発用ログ（コンソール形式、debugレベル）
//   --dry-run   Webhookが設定されていてもプレビュー表示のみ
//
// =============================================================================
// 【処理フロー】（run）
// =============================================================================
//
//   .env読み込み → 設定組み立て → 履歴読み込み → 残り枠確認 → ESearch
//   → 配信済み除外 → EFetch＋スコアリング → ソート → 枠で切り詰め
//   → Feishu配信（未設定ならプレビュー） → 成功時のみ履歴保存
//
// 実行経路はすべて終了コード0で終わる。失敗はログにのみ現れる。
//
// =============================================================================
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv" // .env ファイル読み込み
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pubmed-relay/internal/pipeline"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	flagConfig string
	flagDebug  bool
	flagDryRun bool
)

var rootCmd = &cobra.Command{
	Use:           "pipeline",
	Short:         "Push new PubMed articles to a Feishu group",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pubmed-relay %s (commit: %s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "console logging at debug level")
	rootCmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "print a preview instead of delivering")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup は .env・設定・ロガーを用意する
func setup() (pipeline.Config, *zap.Logger, error) {
	logger, err := pipeline.NewLogger(flagDebug)
	if err != nil {
		return pipeline.Config{}, nil, err
	}

	// .env ファイルが無くても続行する（環境変数のみで動作）
	if err := godotenv.Load(); err != nil {
		logger.Debug(".env file not loaded, using environment variables only", zap.Error(err))
	}

	cfg, err := pipeline.LoadConfig(flagConfig)
	if err != nil {
		return pipeline.Config{}, logger, fmt.Errorf("load config: %w", err)
	}
	return cfg, logger, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}
