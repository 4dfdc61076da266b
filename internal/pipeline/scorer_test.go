package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		abstract    string
		keywords    []string
		wantScore   int
		wantMatched []string
	}{
		{
			name:        "title only",
			title:       "New Diabetes Drug",
			keywords:    []string{"Diabetes"},
			wantScore:   1,
			wantMatched: []string{"Diabetes"},
		},
		{
			name:        "case insensitive in abstract",
			title:       "A trial",
			abstract:    "Patients with TYPE 2 DIABETES and obesity.",
			keywords:    []string{"type 2 diabetes", "Obesity", "asthma"},
			wantScore:   2,
			wantMatched: []string{"type 2 diabetes", "Obesity"},
		},
		{
			name:        "repeated text counts once",
			title:       "insulin insulin insulin",
			keywords:    []string{"Insulin"},
			wantScore:   1,
			wantMatched: []string{"Insulin"},
		},
		{
			name:        "duplicate keywords count once, first casing wins",
			title:       "PD-1 blockade",
			keywords:    []string{"PD-1", "pd-1", "PD-1"},
			wantScore:   1,
			wantMatched: []string{"PD-1"},
		},
		{
			name:      "no match",
			title:     "Unrelated",
			abstract:  "Nothing here.",
			keywords:  []string{"cancer"},
			wantScore: 0,
		},
		{
			name:        "substring containment",
			title:       "Immunotherapies in practice",
			keywords:    []string{"immunotherap"},
			wantScore:   1,
			wantMatched: []string{"immunotherap"},
		},
		{
			name:        "title and abstract joined by a space",
			title:       "cancer",
			abstract:    "vaccine",
			keywords:    []string{"cancer vaccine", "cancervaccine"},
			wantScore:   1,
			wantMatched: []string{"cancer vaccine"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(Article{ID: "1", Title: tt.title, Abstract: tt.abstract}, tt.keywords)
			assert.Equal(t, tt.wantScore, got.Score)
			assert.Equal(t, tt.wantMatched, got.Matched)
			assert.Equal(t, "1", got.ID)
		})
	}
}

func TestScore_KeywordOrderInvariant(t *testing.T) {
	a := Article{Title: "CAR-T therapy for lymphoma", Abstract: "Cytokine release syndrome was rare."}
	k1 := []string{"CAR-T", "lymphoma", "cytokine", "melanoma"}
	k2 := []string{"melanoma", "cytokine", "lymphoma", "CAR-T"}

	assert.Equal(t, Score(a, k1).Score, Score(a, k2).Score)
	assert.Equal(t, 3, Score(a, k1).Score)
}

func TestRankArticles_StableDescending(t *testing.T) {
	in := []ScoredArticle{
		{Article: Article{ID: "a"}, Score: 1},
		{Article: Article{ID: "b"}, Score: 3},
		{Article: Article{ID: "c"}, Score: 1},
		{Article: Article{ID: "d"}, Score: 3},
		{Article: Article{ID: "e"}, Score: 0},
		{Article: Article{ID: "f"}, Score: 1},
	}

	got := RankArticles(in)
	assert.Equal(t, []string{"b", "d", "a", "c", "f", "e"}, IDs(got))
	assert.Equal(t, "a", in[0].ID, "input is not reordered")
}

func TestFilterUnsent(t *testing.T) {
	got := filterUnsent([]string{"1", "2", "3"}, map[string]bool{"2": true, "3": true})
	assert.Equal(t, []string{"1"}, got)

	assert.Empty(t, filterUnsent([]string{"2"}, map[string]bool{"2": true}))
}
