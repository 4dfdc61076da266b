// =============================================================================
// feishu.go - Feishu / Lark webhook notifier
// =============================================================================
//
// Sends one interactive card per run to a custom-bot webhook:
//
//	{
//	  "msg_type": "interactive",
//	  "card": {
//	    "config":   {"wide_screen_mode": true},
//	    "header":   {"template": "blue", "title": {"tag": "plain_text", "content": "..."}},
//	    "elements": [ {div lark_md title+link}, {div lark_md meta}, {hr}, ... ]
//	  }
//	}
//
// The bot answers {"code": 0, "msg": "success"} on acceptance. Older bot
// versions answer {"StatusCode": 0}. Anything else is a failed delivery.
//
// =============================================================================
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNoWebhook is returned when a notifier is built without a destination.
var ErrNoWebhook = errors.New("feishu webhook is not configured")

// Notifier delivers ranked articles. It reports whether delivery was
// confirmed.
type Notifier interface {
	Deliver(ctx context.Context, articles []ScoredArticle) bool
}

// FeishuNotifier posts cards to a Feishu custom-bot webhook.
type FeishuNotifier struct {
	webhook  *url.URL
	keywords []string
	client   *http.Client
	logger   *zap.Logger
}

// NewFeishuNotifier returns a notifier for webhook. keywords only feed the
// card header.
func NewFeishuNotifier(webhook *url.URL, keywords []string, timeout time.Duration, logger *zap.Logger) (*FeishuNotifier, error) {
	if webhook == nil {
		return nil, ErrNoWebhook
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeishuNotifier{
		webhook:  webhook,
		keywords: keywords,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.Named("feishu"),
	}, nil
}

// -----------------------------------------------------------------------------
// Card payload
// -----------------------------------------------------------------------------

// FeishuMessage is the webhook request body.
type FeishuMessage struct {
	MsgType string     `json:"msg_type"`
	Card    feishuCard `json:"card"`
}

type feishuCard struct {
	Config   feishuCardConfig `json:"config"`
	Header   feishuHeader     `json:"header"`
	Elements []feishuElement  `json:"elements"`
}

type feishuCardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

type feishuHeader struct {
	Template string     `json:"template"`
	Title    feishuText `json:"title"`
}

type feishuText struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

type feishuElement struct {
	Tag  string      `json:"tag"`
	Text *feishuText `json:"text,omitempty"`
}

func mdDiv(content string) feishuElement {
	return feishuElement{Tag: "div", Text: &feishuText{Tag: "lark_md", Content: content}}
}

// BuildCard renders articles into the webhook payload.
func BuildCard(keywords []string, articles []ScoredArticle) FeishuMessage {
	elements := make([]feishuElement, 0, len(articles)*3)
	for i, a := range articles {
		elements = append(elements, mdDiv(fmt.Sprintf("📄 **%d. [%s](%s)**", i+1, a.Title, a.URL)))

		var meta strings.Builder
		fmt.Fprintf(&meta, "⭐ Score: %d", a.Score)
		if len(a.Matched) > 0 {
			fmt.Fprintf(&meta, " (%s)", strings.Join(a.Matched, ", "))
		}
		if authors := a.AuthorLine(); authors != "" {
			fmt.Fprintf(&meta, "\n👤 Authors: %s", authors)
		}
		fmt.Fprintf(&meta, "\n📅 Date: %s", a.PubDate)
		if a.Journal != "" {
			fmt.Fprintf(&meta, "\n📚 Journal: %s", a.Journal)
		}
		elements = append(elements, mdDiv(meta.String()))
		elements = append(elements, feishuElement{Tag: "hr"})
	}

	return FeishuMessage{
		MsgType: "interactive",
		Card: feishuCard{
			Config: feishuCardConfig{WideScreenMode: true},
			Header: feishuHeader{
				Template: "blue",
				Title: feishuText{
					Tag:     "plain_text",
					Content: "🔬 PubMed digest: " + truncateString(strings.Join(keywords, ", "), 100),
				},
			},
			Elements: elements,
		},
	}
}

// feishuResponse covers both the current and the legacy response shape.
type feishuResponse struct {
	Code       *int   `json:"code"`
	Msg        string `json:"msg"`
	StatusCode *int   `json:"StatusCode"`
}

func (r feishuResponse) accepted() bool {
	if r.Code != nil {
		return *r.Code == 0
	}
	return r.StatusCode != nil && *r.StatusCode == 0
}

// Deliver posts the card once. It returns true only when the bot confirms
// acceptance.
func (n *FeishuNotifier) Deliver(ctx context.Context, articles []ScoredArticle) bool {
	if len(articles) == 0 {
		return false
	}
	if err := n.deliver(ctx, articles); err != nil {
		n.logger.Error("delivery failed", zap.Int("articles", len(articles)), zap.Error(err))
		return false
	}
	n.logger.Info("delivered", zap.Int("articles", len(articles)))
	return true
}

func (n *FeishuNotifier) deliver(ctx context.Context, articles []ScoredArticle) error {
	body, err := json.Marshal(BuildCard(n.keywords, articles))
	if err != nil {
		return fmt.Errorf("encode card: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhook.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request creation failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("User-Agent", userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var out feishuResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !out.accepted() {
		code := -1
		if out.Code != nil {
			code = *out.Code
		} else if out.StatusCode != nil {
			code = *out.StatusCode
		}
		return fmt.Errorf("webhook rejected card: code=%d msg=%q", code, out.Msg)
	}
	return nil
}
