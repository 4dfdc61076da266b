// =============================================================================
// config.go - パイプライン設定
// =============================================================================
//
// このファイルは設定の読み込みと検証を行います。
//
// 【読み込み順序】（後のものが優先）
//  1. DefaultConfig() の既定値
//  2. YAMLファイル（-config で指定、省略可）
//  3. 環境変数（.env は呼び出し側で godotenv により読み込み済み）
//
// 【設定グループ】
//   - Keywords / Journals: 検索条件
//   - PoolSize / DailyLimit / MaxSentIDs: ランキングと配信枠
//   - EUtils:   NCBI E-utilities 接続設定
//   - Timeouts: 各HTTP呼び出しのタイムアウト
//   - Notion:   配信済み記事のアーカイブ先（任意）
//
// 構築後の Config は値として各コンポーネントに渡し、以後変更しない。
//
// =============================================================================
package pipeline

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// 設定構造体
// =============================================================================

// Config はパイプラインの全設定を保持する
type Config struct {
	// Keywords はOR結合される検索キーワード（設定順がスコアの一致順になる）
	Keywords []string `yaml:"keywords"`

	// Journals は対象誌の許可リスト（空なら誌名フィルタなし）
	Journals []string `yaml:"journals"`

	// PoolSize は検索で取得する候補数（DailyLimit 以上）
	PoolSize int `yaml:"pool_size"`

	// DailyLimit は1日あたりの最大配信数
	DailyLimit int `yaml:"daily_limit"`

	// MaxSentIDs は sent_ids の保持件数（0 = 無制限、それ以外は PoolSize 以上）
	MaxSentIDs int `yaml:"max_sent_ids"`

	// HistoryPath は履歴JSONファイルのパス
	HistoryPath string `yaml:"history_path"`

	// Schedule は schedule コマンドで使うcron式（5フィールド）
	Schedule string `yaml:"schedule"`

	EUtils   EUtilsConfig   `yaml:"eutils"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`

	// Webhook は配信先。nil は未設定（プレビューモード）を意味する
	Webhook *url.URL `yaml:"-"`

	// Notion は配信済み記事のアーカイブ先（Token が空なら無効）
	Notion NotionConfig `yaml:"-"`

	// Warnings は読み込み時に無視した設定値（Build でログ出力する）
	Warnings []string `yaml:"-"`
}

// EUtilsConfig はNCBI E-utilitiesへの接続設定
type EUtilsConfig struct {
	BaseURL        string `yaml:"base_url"`
	ArticleBaseURL string `yaml:"article_base_url"`
	Tool           string `yaml:"tool"`
	Email          string `yaml:"email"`
	APIKey         string `yaml:"-"`
}

// TimeoutsConfig は各HTTP呼び出しのタイムアウト
type TimeoutsConfig struct {
	Search  time.Duration `yaml:"search"`
	Fetch   time.Duration `yaml:"fetch"`
	Deliver time.Duration `yaml:"deliver"`
}

// NotionConfig はNotionアーカイブ設定
type NotionConfig struct {
	Token      string
	DatabaseID string
}

// Enabled はNotionアーカイブが有効かどうかを返す
func (c NotionConfig) Enabled() bool {
	return c.Token != "" && c.DatabaseID != ""
}

// HasWebhook は配信先が設定されているかどうかを返す
func (c *Config) HasWebhook() bool {
	return c.Webhook != nil
}

// =============================================================================
// 既定値
// =============================================================================

const (
	DefaultEUtilsBaseURL  = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	DefaultArticleBaseURL = "https://pubmed.ncbi.nlm.nih.gov"
	DefaultTool           = "pubmed-relay"
	DefaultSchedule       = "0 9 * * *"
)

// DefaultKeywords は設定ファイルが無い場合の検索キーワード
var DefaultKeywords = []string{"Cancer Immunotherapy"}

// DefaultConfig は既定値を埋めた Config を返す
func DefaultConfig() Config {
	return Config{
		Keywords:    append([]string(nil), DefaultKeywords...),
		PoolSize:    50,
		DailyLimit:  10,
		MaxSentIDs:  5000,
		HistoryPath: DefaultHistoryPath(),
		Schedule:    DefaultSchedule,
		EUtils: EUtilsConfig{
			BaseURL:        DefaultEUtilsBaseURL,
			ArticleBaseURL: DefaultArticleBaseURL,
			Tool:           DefaultTool,
		},
		Timeouts: TimeoutsConfig{
			Search:  15 * time.Second,
			Fetch:   30 * time.Second,
			Deliver: 15 * time.Second,
		},
	}
}

// DefaultHistoryPath は $XDG_DATA_HOME/pubmed-relay/history.json を返す
func DefaultHistoryPath() string {
	return filepath.Join(xdg.DataHome, "pubmed-relay", "history.json")
}

// =============================================================================
// 読み込み
// =============================================================================

// LoadConfig は既定値 → YAMLファイル → 環境変数 の順に設定を組み立てる
//
// path が空の場合はファイルを読まない。
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}
	cfg.Keywords = uniqStrings(trimAll(cfg.Keywords))
	cfg.Journals = uniqStrings(trimAll(cfg.Journals))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv は環境変数で設定を上書きする
//
// getenv を引数にしているのはテストで環境を差し替えるため。
func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("PUBMED_KEYWORDS"); v != "" {
		cfg.Keywords = strings.Split(v, ",")
	}
	// 誌名にはカンマが含まれることがあるためセミコロン区切り
	if v := getenv("PUBMED_JOURNALS"); v != "" {
		cfg.Journals = strings.Split(v, ";")
	}
	if v := getenv("PUBMED_POOL_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PUBMED_POOL_SIZE: %w", err)
		}
		cfg.PoolSize = n
	}
	if v := getenv("PUBMED_DAILY_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PUBMED_DAILY_LIMIT: %w", err)
		}
		cfg.DailyLimit = n
	}
	if v := getenv("PUBMED_HISTORY_PATH"); v != "" {
		cfg.HistoryPath = v
	}
	if v := getenv("NCBI_API_KEY"); v != "" {
		cfg.EUtils.APIKey = v
	}
	if v := getenv("NCBI_EMAIL"); v != "" {
		cfg.EUtils.Email = v
	}

	// 不正なURL（テンプレートのプレースホルダ等）は未設定扱いにしてプレビューで続行する
	if v := strings.TrimSpace(getenv("FEISHU_WEBHOOK_URL")); v != "" {
		u, err := parseWebhook(v)
		if err != nil {
			cfg.Warnings = append(cfg.Warnings, err.Error()+"; delivery disabled")
		} else {
			cfg.Webhook = u
		}
	}

	cfg.Notion = NotionConfig{
		Token:      getenv("NOTION_TOKEN"),
		DatabaseID: getenv("NOTION_DATABASE_ID"),
	}
	return nil
}

// parseWebhook はWebhook URLを検証して返す（エラーにURL自体は含めない）
func parseWebhook(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.New("FEISHU_WEBHOOK_URL: not a valid URL")
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.New("FEISHU_WEBHOOK_URL: want absolute http(s) URL")
	}
	return u, nil
}

// Validate は設定値の整合性を検証する
func (c *Config) Validate() error {
	var errs []error
	if len(c.Keywords) == 0 {
		errs = append(errs, errors.New("at least one keyword is required"))
	}
	if c.DailyLimit < 1 {
		errs = append(errs, fmt.Errorf("daily_limit must be >= 1, got %d", c.DailyLimit))
	}
	if c.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("pool_size must be >= 1, got %d", c.PoolSize))
	} else if c.PoolSize < c.DailyLimit {
		errs = append(errs, fmt.Errorf("pool_size (%d) must be >= daily_limit (%d)", c.PoolSize, c.DailyLimit))
	}
	// 1回の検索候補より保持数が少ないと、配信直後のIDが追い出されて再配信される
	if c.MaxSentIDs < 0 {
		errs = append(errs, fmt.Errorf("max_sent_ids must be >= 0, got %d", c.MaxSentIDs))
	} else if c.MaxSentIDs > 0 && c.MaxSentIDs < c.PoolSize {
		errs = append(errs, fmt.Errorf("max_sent_ids (%d) must be 0 or >= pool_size (%d)", c.MaxSentIDs, c.PoolSize))
	}
	if c.HistoryPath == "" {
		errs = append(errs, errors.New("history_path is required"))
	}
	if c.EUtils.BaseURL == "" {
		errs = append(errs, errors.New("eutils.base_url is required"))
	}
	return errors.Join(errs...)
}
