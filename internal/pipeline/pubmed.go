// =============================================================================
// pubmed.go - NCBI E-utilities client
// =============================================================================
//
// Two calls per run:
//
//	ESearch  POST {base}/esearch.fcgi  db=pubmed term=... retmode=json sort=pub_date
//	EFetch   POST {base}/efetch.fcgi   db=pubmed id=1,2,3 retmode=xml
//
// Both are attempted once. Transport, status and parse errors are logged
// and turned into an empty result so the run ends gracefully.
//
// API documentation: https://www.ncbi.nlm.nih.gov/books/NBK25499/
//
// =============================================================================
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Searcher returns candidate PMIDs for a query, newest first.
type Searcher interface {
	Search(ctx context.Context, keywordExpr string, journals []string, maxResults int) []string
}

// Fetcher retrieves and scores the records behind ids.
type Fetcher interface {
	FetchAndScore(ctx context.Context, ids []string, keywords []string) []ScoredArticle
}

// PubMedClient implements Searcher and Fetcher against E-utilities.
type PubMedClient struct {
	cfg          EUtilsConfig
	searchClient *http.Client
	fetchClient  *http.Client
	logger       *zap.Logger
}

// NewPubMedClient builds a client with separate timeouts for the short
// search call and the larger batch fetch.
func NewPubMedClient(cfg EUtilsConfig, timeouts TimeoutsConfig, logger *zap.Logger) *PubMedClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ArticleBaseURL == "" {
		cfg.ArticleBaseURL = DefaultArticleBaseURL
	}
	return &PubMedClient{
		cfg:          cfg,
		searchClient: &http.Client{Timeout: timeouts.Search},
		fetchClient:  &http.Client{Timeout: timeouts.Fetch},
		logger:       logger.Named("pubmed"),
	}
}

// esearchResponse is the part of the ESearch JSON we read.
type esearchResponse struct {
	ESearchResult struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// KeywordExpression ORs the quoted keywords together:
//
//	"Cancer Immunotherapy" OR "CAR-T"
func KeywordExpression(keywords []string) string {
	parts := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if q := quoteTerm(k); q != "" {
			parts = append(parts, q)
		}
	}
	return strings.Join(parts, " OR ")
}

// BuildQuery adds the journal allow-list to keywordExpr:
//
//	(kw) AND ("Nature"[Journal] OR "Cell"[Journal])
//
// With no journals the keyword expression is returned unchanged.
func BuildQuery(keywordExpr string, journals []string) string {
	clauses := make([]string, 0, len(journals))
	for _, j := range journals {
		if q := quoteTerm(j); q != "" {
			clauses = append(clauses, q+"[Journal]")
		}
	}
	if len(clauses) == 0 {
		return keywordExpr
	}
	return "(" + keywordExpr + ") AND (" + strings.Join(clauses, " OR ") + ")"
}

// quoteTerm wraps s in double quotes. Embedded quotes would end the phrase
// early and are dropped.
func quoteTerm(s string) string {
	s = normalizeWhitespace(strings.ReplaceAll(s, `"`, ""))
	if s == "" {
		return ""
	}
	return `"` + s + `"`
}

// baseForm carries the parameters shared by every E-utilities call.
func (c *PubMedClient) baseForm() url.Values {
	form := url.Values{}
	form.Set("db", "pubmed")
	if c.cfg.Tool != "" {
		form.Set("tool", c.cfg.Tool)
	}
	if c.cfg.Email != "" {
		form.Set("email", c.cfg.Email)
	}
	if c.cfg.APIKey != "" {
		form.Set("api_key", c.cfg.APIKey)
	}
	return form
}

func (c *PubMedClient) endpoint(name string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + name
}

// Search runs ESearch and returns up to maxResults PMIDs, newest first.
// Any failure is logged and yields nil.
func (c *PubMedClient) Search(ctx context.Context, keywordExpr string, journals []string, maxResults int) []string {
	term := BuildQuery(keywordExpr, journals)

	form := c.baseForm()
	form.Set("term", term)
	form.Set("retmode", "json")
	form.Set("retmax", strconv.Itoa(maxResults))
	form.Set("sort", "pub_date")

	ids, err := c.search(ctx, form)
	if err != nil {
		c.logger.Warn("search failed", zap.Error(err))
		return nil
	}
	c.logger.Debug("search done", zap.Int("ids", len(ids)), zap.Int("journals", len(journals)))
	return ids
}

func (c *PubMedClient) search(ctx context.Context, form url.Values) ([]string, error) {
	resp, err := postForm(ctx, c.searchClient, c.endpoint("esearch.fcgi"), form)
	if err != nil {
		return nil, fmt.Errorf("esearch: %w", err)
	}
	defer resp.Body.Close()

	var out esearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("esearch: JSON parse failed: %w", err)
	}
	return uniqStrings(trimAll(out.ESearchResult.IDList)), nil
}

// FetchAndScore retrieves all ids in one EFetch call, maps each record and
// scores it against keywords. The result keeps EFetch order; ranking is the
// caller's job. Any request-level failure is logged and yields nil.
func (c *PubMedClient) FetchAndScore(ctx context.Context, ids []string, keywords []string) []ScoredArticle {
	if len(ids) == 0 {
		return nil
	}

	articles, err := c.fetch(ctx, ids)
	if err != nil {
		c.logger.Warn("fetch failed", zap.Int("ids", len(ids)), zap.Error(err))
		return nil
	}

	out := make([]ScoredArticle, 0, len(articles))
	for _, a := range articles {
		out = append(out, Score(a, keywords))
	}
	return out
}

func (c *PubMedClient) fetch(ctx context.Context, ids []string) ([]Article, error) {
	form := c.baseForm()
	form.Set("id", strings.Join(ids, ","))
	form.Set("retmode", "xml")

	resp, err := postForm(ctx, c.fetchClient, c.endpoint("efetch.fcgi"), form)
	if err != nil {
		return nil, fmt.Errorf("efetch: %w", err)
	}
	defer resp.Body.Close()

	articles, skipped, err := ParseArticleSet(resp.Body, c.cfg.ArticleBaseURL)
	if err != nil {
		return nil, fmt.Errorf("efetch: %w", err)
	}
	for _, e := range skipped {
		c.logger.Warn("skipping record", zap.Error(e))
	}
	return articles, nil
}
