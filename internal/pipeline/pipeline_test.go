package pipeline

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// fakes
// -----------------------------------------------------------------------------

type memHistory struct {
	rec     HistoryRecord
	saves   int
	saveErr error
}

func (m *memHistory) Load() HistoryRecord {
	rec := m.rec
	rec.SentIDs = append([]string(nil), m.rec.SentIDs...)
	return rec
}

func (m *memHistory) Save(rec HistoryRecord) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.rec = rec
	return nil
}

type fakeSearcher struct {
	ids         []string
	calls       int
	gotMax      int
	gotJournals []string
	gotExpr     string
}

func (f *fakeSearcher) Search(_ context.Context, expr string, journals []string, maxResults int) []string {
	f.calls++
	f.gotExpr = expr
	f.gotJournals = journals
	f.gotMax = maxResults
	return f.ids
}

// fakeFetcher scores articles from a fixed catalogue, in requested order.
type fakeFetcher struct {
	catalogue map[string]Article
	gotIDs    []string
}

func (f *fakeFetcher) FetchAndScore(_ context.Context, ids []string, keywords []string) []ScoredArticle {
	f.gotIDs = ids
	var out []ScoredArticle
	for _, id := range ids {
		if a, ok := f.catalogue[id]; ok {
			out = append(out, Score(a, keywords))
		}
	}
	return out
}

type fakeNotifier struct {
	ok   bool
	sent [][]ScoredArticle
}

func (f *fakeNotifier) Deliver(_ context.Context, articles []ScoredArticle) bool {
	f.sent = append(f.sent, articles)
	return f.ok
}

type fakeArchiver struct {
	archived []ScoredArticle
	err      error
}

func (f *fakeArchiver) Archive(_ context.Context, articles []ScoredArticle) error {
	f.archived = append(f.archived, articles...)
	return f.err
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Keywords = []string{"Diabetes", "Insulin"}
	cfg.Journals = []string{"Diabetes Care"}
	cfg.DailyLimit = 2
	cfg.PoolSize = 20
	cfg.MaxSentIDs = 0
	return cfg
}

func catalogue() map[string]Article {
	m := map[string]Article{
		"1": {ID: "1", Title: "Unrelated cardiology paper"},
		"2": {ID: "2", Title: "Insulin pumps", Abstract: "in diabetes"},
		"3": {ID: "3", Title: "New Diabetes Drug"},
		"4": {ID: "4", Title: "Insulin resistance"},
	}
	for id, a := range m {
		a.URL = ArticleURL(DefaultArticleBaseURL, id)
		m[id] = a
	}
	return m
}

func newTestPipeline(t *testing.T, cfg Config, h HistoryStore, s Searcher, f Fetcher, opts ...Option) *Pipeline {
	t.Helper()
	opts = append([]Option{WithPreviewOutput(&bytes.Buffer{})}, opts...)
	p, err := New(cfg, h, s, f, opts...)
	require.NoError(t, err)
	return p
}

// -----------------------------------------------------------------------------
// tests
// -----------------------------------------------------------------------------

func TestRun_DeliversTopRankedWithinQuota(t *testing.T) {
	h := &memHistory{rec: HistoryRecord{Date: "2026-10-16", SentIDs: []string{}}}
	s := &fakeSearcher{ids: []string{"1", "2", "3", "4"}}
	f := &fakeFetcher{catalogue: catalogue()}
	n := &fakeNotifier{ok: true}
	a := &fakeArchiver{}

	res := newTestPipeline(t, testConfig(), h, s, f, WithNotifier(n), WithArchiver(a)).Run(context.Background())

	assert.Equal(t, OutcomeDelivered, res.Outcome)
	assert.Equal(t, 2, res.Remaining)
	assert.Equal(t, []string{"2", "3", "4", "1"}, IDs(res.Candidates), "score desc, ties keep fetch order")
	assert.Equal(t, []string{"2", "3"}, IDs(res.Delivered))

	require.Len(t, n.sent, 1)
	assert.Equal(t, []string{"2", "3"}, IDs(n.sent[0]))

	assert.Equal(t, 1, h.saves)
	assert.Equal(t, 2, h.rec.Count)
	assert.Equal(t, []string{"2", "3"}, h.rec.SentIDs)
	assert.Equal(t, []string{"2", "3"}, IDs(a.archived))

	assert.Equal(t, `"Diabetes" OR "Insulin"`, s.gotExpr)
	assert.Equal(t, []string{"Diabetes Care"}, s.gotJournals)
	assert.Equal(t, 20, s.gotMax, "search uses the full pool size")
}

func TestRun_QuotaExhaustedSkipsSearch(t *testing.T) {
	cfg := testConfig()
	cfg.DailyLimit = 10
	h := &memHistory{rec: HistoryRecord{Date: "2026-10-16", Count: 10}}
	s := &fakeSearcher{ids: []string{"1"}}

	res := newTestPipeline(t, cfg, h, s, &fakeFetcher{}).Run(context.Background())

	assert.Equal(t, OutcomeQuotaExhausted, res.Outcome)
	assert.Equal(t, 0, s.calls)
	assert.Equal(t, 0, h.saves)
}

func TestRun_FiltersAlreadySent(t *testing.T) {
	h := &memHistory{rec: HistoryRecord{Date: "2026-10-16", SentIDs: []string{"2", "3"}}}
	s := &fakeSearcher{ids: []string{"1", "2", "3"}}
	f := &fakeFetcher{catalogue: catalogue()}
	n := &fakeNotifier{ok: true}

	res := newTestPipeline(t, testConfig(), h, s, f, WithNotifier(n)).Run(context.Background())

	assert.Equal(t, []string{"1"}, f.gotIDs)
	assert.Equal(t, OutcomeDelivered, res.Outcome)
	assert.Equal(t, []string{"2", "3", "1"}, h.rec.SentIDs)
}

func TestRun_NothingFound(t *testing.T) {
	h := &memHistory{rec: HistoryRecord{Date: "2026-10-16"}}
	n := &fakeNotifier{ok: true}

	res := newTestPipeline(t, testConfig(), h, &fakeSearcher{}, &fakeFetcher{}, WithNotifier(n)).Run(context.Background())

	assert.Equal(t, OutcomeNothingFound, res.Outcome)
	assert.Empty(t, n.sent)
	assert.Equal(t, 0, h.saves)
}

func TestRun_AllAlreadySent(t *testing.T) {
	h := &memHistory{rec: HistoryRecord{Date: "2026-10-16", SentIDs: []string{"1", "2"}}}
	f := &fakeFetcher{catalogue: catalogue()}

	res := newTestPipeline(t, testConfig(), h, &fakeSearcher{ids: []string{"1", "2"}}, f).Run(context.Background())

	assert.Equal(t, OutcomeNothingNew, res.Outcome)
	assert.Nil(t, f.gotIDs, "no fetch when everything was sent")
}

func TestRun_FetchReturnsNothing(t *testing.T) {
	h := &memHistory{rec: HistoryRecord{Date: "2026-10-16"}}
	n := &fakeNotifier{ok: true}
	f := &fakeFetcher{catalogue: map[string]Article{}}

	res := newTestPipeline(t, testConfig(), h, &fakeSearcher{ids: []string{"9"}}, f, WithNotifier(n)).Run(context.Background())

	assert.Equal(t, OutcomeNothingFound, res.Outcome)
	assert.Empty(t, n.sent)
}

func TestRun_DeliveryFailureLeavesHistory(t *testing.T) {
	h := &memHistory{rec: HistoryRecord{Date: "2026-10-16", Count: 0, SentIDs: []string{}}}
	s := &fakeSearcher{ids: []string{"2", "3"}}
	n := &fakeNotifier{ok: false}
	a := &fakeArchiver{}
	p := newTestPipeline(t, testConfig(), h, s, &fakeFetcher{catalogue: catalogue()}, WithNotifier(n), WithArchiver(a))

	res := p.Run(context.Background())
	assert.Equal(t, OutcomeDeliveryFailed, res.Outcome)
	assert.Empty(t, res.Delivered)
	assert.Equal(t, 0, h.saves)
	assert.Empty(t, a.archived)

	// The next run offers the same candidates again.
	n.ok = true
	res = p.Run(context.Background())
	assert.Equal(t, OutcomeDelivered, res.Outcome)
	require.Len(t, n.sent, 2)
	assert.Equal(t, IDs(n.sent[0]), IDs(n.sent[1]))
}

func TestRun_PreviewModeDoesNotTouchHistory(t *testing.T) {
	h := &memHistory{rec: HistoryRecord{Date: "2026-10-16", Count: 1, SentIDs: []string{"9"}}}
	out := &bytes.Buffer{}
	cfg := testConfig()
	cfg.DailyLimit = 2

	p, err := New(cfg, h, &fakeSearcher{ids: []string{"1", "2", "3", "4"}}, &fakeFetcher{catalogue: catalogue()}, WithPreviewOutput(out))
	require.NoError(t, err)
	res := p.Run(context.Background())

	assert.Equal(t, OutcomePreview, res.Outcome)
	assert.Equal(t, 0, h.saves)
	assert.Equal(t, 1, h.rec.Count)
	assert.Equal(t, []string{"9"}, h.rec.SentIDs)
	assert.Len(t, res.Delivered, 1, "quota still applies to what would be sent")

	// Preview lists every candidate with its link.
	for _, id := range []string{"1", "2", "3", "4"} {
		assert.Contains(t, out.String(), ArticleURL(DefaultArticleBaseURL, id))
	}
}

func TestRun_SaveErrorIsNotFatal(t *testing.T) {
	h := &memHistory{rec: HistoryRecord{Date: "2026-10-16"}, saveErr: errors.New("disk full")}
	a := &fakeArchiver{}
	p := newTestPipeline(t, testConfig(), h, &fakeSearcher{ids: []string{"3"}}, &fakeFetcher{catalogue: catalogue()},
		WithNotifier(&fakeNotifier{ok: true}), WithArchiver(a))

	res := p.Run(context.Background())
	assert.Equal(t, OutcomeDelivered, res.Outcome)
	assert.Equal(t, 1, h.saves)
	assert.Equal(t, []string{"3"}, IDs(a.archived), "archive still runs")
}

func TestRun_ArchiveErrorIsNotFatal(t *testing.T) {
	h := &memHistory{rec: HistoryRecord{Date: "2026-10-16"}}
	p := newTestPipeline(t, testConfig(), h, &fakeSearcher{ids: []string{"3"}}, &fakeFetcher{catalogue: catalogue()},
		WithNotifier(&fakeNotifier{ok: true}), WithArchiver(&fakeArchiver{err: errors.New("notion down")}))

	assert.Equal(t, OutcomeDelivered, p.Run(context.Background()).Outcome)
	assert.Equal(t, []string{"3"}, h.rec.SentIDs)
}

func TestRun_QuotaBoundary(t *testing.T) {
	tests := []struct {
		name       string
		limit      int
		sentToday  int
		candidates []string
		want       int
	}{
		{"quota smaller than candidates", 3, 1, []string{"1", "2", "3", "4"}, 2},
		{"candidates smaller than quota", 10, 0, []string{"1", "2"}, 2},
		{"exactly equal", 2, 0, []string{"3", "4"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.DailyLimit = tt.limit
			cfg.PoolSize = 20
			h := &memHistory{rec: HistoryRecord{Date: "2026-10-16", Count: tt.sentToday}}
			n := &fakeNotifier{ok: true}

			res := newTestPipeline(t, cfg, h, &fakeSearcher{ids: tt.candidates}, &fakeFetcher{catalogue: catalogue()}, WithNotifier(n)).
				Run(context.Background())

			assert.Len(t, res.Delivered, tt.want)
			assert.Len(t, h.rec.SentIDs, tt.want)
			assert.Equal(t, tt.sentToday+tt.want, h.rec.Count)
			assert.LessOrEqual(t, h.rec.Count, tt.limit)
		})
	}
}

// Two runs against the same search results with a real file store: the
// second run has nothing new to send, on the same day and on the next.
func TestRun_IdempotentAcrossRunsAndDays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	cfg := testConfig()
	cfg.DailyLimit = 5
	s := &fakeSearcher{ids: []string{"2", "3", "4"}}
	n := &fakeNotifier{ok: true}

	day1 := NewFileHistory(path, fixedClock("2026-10-16"), nil)
	res := newTestPipeline(t, cfg, day1, s, &fakeFetcher{catalogue: catalogue()}, WithNotifier(n)).Run(context.Background())
	require.Equal(t, OutcomeDelivered, res.Outcome)
	require.Len(t, res.Delivered, 3)

	res = newTestPipeline(t, cfg, day1, s, &fakeFetcher{catalogue: catalogue()}, WithNotifier(n)).Run(context.Background())
	assert.Equal(t, OutcomeNothingNew, res.Outcome)

	day2 := NewFileHistory(path, fixedClock("2026-10-17"), nil)
	assert.Equal(t, 0, day2.Load().Count, "new day resets the count")
	res = newTestPipeline(t, cfg, day2, s, &fakeFetcher{catalogue: catalogue()}, WithNotifier(n)).Run(context.Background())
	assert.Equal(t, OutcomeNothingNew, res.Outcome, "sent ids still suppress re-delivery")
	assert.Len(t, n.sent, 1)
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(testConfig(), nil, &fakeSearcher{}, &fakeFetcher{})
	assert.Error(t, err)
}

// With the smallest retention the config accepts, ids delivered today are
// still known tomorrow.
func TestRun_MinimumRetentionKeepsDedupAcrossDays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	cfg := testConfig()
	cfg.PoolSize = 3
	cfg.DailyLimit = 3
	cfg.MaxSentIDs = 3
	require.NoError(t, cfg.Validate())

	s := &fakeSearcher{ids: []string{"2", "3", "4"}}
	n := &fakeNotifier{ok: true}

	day1 := NewFileHistory(path, fixedClock("2026-10-16"), nil)
	res := newTestPipeline(t, cfg, day1, s, &fakeFetcher{catalogue: catalogue()}, WithNotifier(n)).Run(context.Background())
	require.Equal(t, OutcomeDelivered, res.Outcome)
	require.Len(t, res.Delivered, 3)

	day2 := NewFileHistory(path, fixedClock("2026-10-17"), nil)
	res = newTestPipeline(t, cfg, day2, s, &fakeFetcher{catalogue: catalogue()}, WithNotifier(n)).Run(context.Background())
	assert.Equal(t, OutcomeNothingNew, res.Outcome)
	assert.Len(t, n.sent, 1)
	assert.ElementsMatch(t, []string{"2", "3", "4"}, day2.Load().SentIDs)
}

func TestValidate_RejectsRetentionThatEvictsFreshDeliveries(t *testing.T) {
	cfg := testConfig()
	cfg.PoolSize = 3
	cfg.DailyLimit = 3
	cfg.MaxSentIDs = 1
	assert.ErrorContains(t, cfg.Validate(), "max_sent_ids")
}
