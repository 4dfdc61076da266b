// =============================================================================
// Lambda: pubmed-digest
// =============================================================================
//
// EventBridge のスケジュールで1日1回起動し、PubMed の新着論文を
// Feishu グループに配信するLambda関数
//
// 環境変数:
//   - FEISHU_WEBHOOK_URL:  配信先Webhook（未設定ならプレビューのみ）
//   - PUBMED_KEYWORDS:     検索キーワード（カンマ区切り）
//   - PUBMED_JOURNALS:     対象誌（セミコロン区切り、任意）
//   - PUBMED_POOL_SIZE:    検索候補数（デフォルト: 50）
//   - PUBMED_DAILY_LIMIT:  1日の配信上限（デフォルト: 10）
//   - PUBMED_HISTORY_PATH: 履歴ファイル（デフォルト: /tmp/pubmed-relay/history.json）
//   - CONFIG_PATH:         YAML設定ファイル（任意、関数パッケージに同梱）
//   - NCBI_API_KEY / NCBI_EMAIL: E-utilities 利用者情報（任意）
//   - NOTION_TOKEN / NOTION_DATABASE_ID: 配信済み記事のアーカイブ（任意）
//
// /tmp はコンテナ再利用の間しか残らないため、履歴を長期保持する場合は
// PUBMED_HISTORY_PATH を EFS のマウント先に向けること。
//
// =============================================================================
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"pubmed-relay/internal/pipeline"
)

const lambdaHistoryPath = "/tmp/pubmed-relay/history.json"

// Response はLambdaレスポンス
type Response struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Outcome    string `json:"outcome"`
	Candidates int    `json:"candidates"`
	Delivered  int    `json:"delivered"`
}

// Handler はLambdaのメインハンドラー
//
// 設定エラー以外はすべて StatusCode 200 で返す（失敗はログのみ）。
func Handler(ctx context.Context, event interface{}) (Response, error) {
	logger, err := pipeline.NewLogger(os.Getenv("DEBUG") != "")
	if err != nil {
		return Response{StatusCode: 500, Message: err.Error()}, err
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting pubmed-digest Lambda")

	// 1. 環境変数から設定を読み込む
	if os.Getenv("PUBMED_HISTORY_PATH") == "" {
		os.Setenv("PUBMED_HISTORY_PATH", lambdaHistoryPath)
	}
	cfg, err := pipeline.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return Response{StatusCode: 400, Message: err.Error()}, err
	}

	// 2. 実行
	p, err := pipeline.Build(cfg, pipeline.BuildOptions{Preview: os.Stdout}, logger)
	if err != nil {
		logger.Error("cannot build pipeline", zap.Error(err))
		return Response{StatusCode: 500, Message: err.Error()}, err
	}
	res := p.Run(ctx)

	logger.Info("run finished",
		zap.String("outcome", string(res.Outcome)),
		zap.Int("candidates", len(res.Candidates)),
		zap.Int("delivered", len(res.Delivered)),
	)

	return Response{
		StatusCode: 200,
		Message:    fmt.Sprintf("outcome=%s delivered=%d", res.Outcome, len(res.Delivered)),
		Outcome:    string(res.Outcome),
		Candidates: len(res.Candidates),
		Delivered:  len(res.Delivered),
	}, nil
}

func main() {
	// ローカル実行用。Lambda上では .env は存在しない
	_ = godotenv.Load()
	lambda.Start(Handler)
}
