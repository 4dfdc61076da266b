// =============================================================================
// notion.go - Notion アーカイブ
// =============================================================================
//
// 配信に成功した論文を Notion データベースに1件1ページで保存します。
// NOTION_TOKEN と NOTION_DATABASE_ID の両方がある場合のみ有効です。
//
// 【データベースのプロパティ】
//
//	Title (title), URL (url), PMID (rich text), Journal (select),
//	Score (number), Keywords (multi-select), Authors (rich text),
//	Published (rich text), Abstract (rich text)
//
// アーカイブの失敗は配信結果に影響しません（ログのみ）。
//
// =============================================================================
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"
	"go.uber.org/zap"
)

// Archiver は配信済み記事をチャット以外の場所に保存する
type Archiver interface {
	Archive(ctx context.Context, articles []ScoredArticle) error
}

// NotionArchiver は既存のNotionデータベースに1記事1ページを作成する
type NotionArchiver struct {
	client *notionapi.Client
	dbID   notionapi.DatabaseID
	logger *zap.Logger
}

// NewNotionArchiver は設定されたデータベース向けのアーカイバを作成する
func NewNotionArchiver(cfg NotionConfig, logger *zap.Logger) (*NotionArchiver, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("NOTION_TOKEN is required")
	}
	if cfg.DatabaseID == "" {
		return nil, fmt.Errorf("NOTION_DATABASE_ID is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotionArchiver{
		client: notionapi.NewClient(notionapi.Token(cfg.Token)),
		dbID:   notionapi.DatabaseID(cfg.DatabaseID),
		logger: logger.Named("notion"),
	}, nil
}

// Archive は全記事を保存する
//
// 個別の失敗はログに出して残りを続行し、失敗件数をエラーで返す。
func (na *NotionArchiver) Archive(ctx context.Context, articles []ScoredArticle) error {
	failed := 0
	for _, a := range articles {
		if _, err := na.client.Page.Create(ctx, notionPageRequest(na.dbID, a)); err != nil {
			failed++
			na.logger.Warn("failed to archive article", zap.String("pmid", a.ID), zap.Error(err))
		}
	}
	if failed > 0 {
		return fmt.Errorf("archived %d of %d articles", len(articles)-failed, len(articles))
	}
	return nil
}

// notionPageRequest は1記事をデータベースのプロパティに対応付ける
func notionPageRequest(dbID notionapi.DatabaseID, a ScoredArticle) *notionapi.PageCreateRequest {
	properties := notionapi.Properties{
		"Title": notionapi.TitleProperty{
			Type:  notionapi.PropertyTypeTitle,
			Title: richText(a.Title),
		},
		"URL": notionapi.URLProperty{
			Type: notionapi.PropertyTypeURL,
			URL:  a.URL,
		},
		"PMID": notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(a.ID),
		},
		"Score": notionapi.NumberProperty{
			Type:   notionapi.PropertyTypeNumber,
			Number: float64(a.Score),
		},
		"Published": notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(a.PubDate),
		},
	}

	if a.Journal != "" {
		// select の選択肢名にはカンマを使えない
		properties["Journal"] = notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: truncateString(stripCommas(a.Journal), 100)},
		}
	}
	if len(a.Matched) > 0 {
		opts := make([]notionapi.Option, 0, len(a.Matched))
		for _, k := range a.Matched {
			opts = append(opts, notionapi.Option{Name: truncateString(stripCommas(k), 100)})
		}
		properties["Keywords"] = notionapi.MultiSelectProperty{
			Type:        notionapi.PropertyTypeMultiSelect,
			MultiSelect: opts,
		}
	}
	if authors := a.AuthorLine(); authors != "" {
		properties["Authors"] = notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(authors),
		}
	}
	if a.Abstract != "" {
		properties["Abstract"] = notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(truncateString(a.Abstract, 2000)), // Notionの上限
		}
	}

	return &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: dbID,
		},
		Properties: properties,
	}
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{{Text: &notionapi.Text{Content: s}}}
}

func stripCommas(s string) string {
	return normalizeWhitespace(strings.ReplaceAll(s, ",", " "))
}
