package enhancer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Ayash-Bera/deathstroke/internal/enhancer/mock"
	"github.com/Ayash-Bera/deathstroke/internal/models"
	"github.com/Ayash-Bera/deathstroke/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errQuota = errors.New("429 quota exceeded")

func newTestEnhancer(t *testing.T, model *mock.Model) *Enhancer {
	t.Helper()
	e, err := New(model, utils.NewDiscardLogger(),
		WithPoolSize(3),
		WithRetryConfig(RetryConfig{MaxRetries: 0}),
	)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func results(titles ...string) []models.SearchResult {
	out := make([]models.SearchResult, len(titles))
	for i, title := range titles {
		out[i] = models.SearchResult{
			Link:    "https://example.com/" + title,
			Title:   title,
			Snippet: "snippet for " + title,
			Rank:    float64(i + 1),
		}
	}
	return out
}

func scored(r models.SearchResult, score float64) models.SearchResult {
	r.SemanticScore = &score
	return r
}

func TestNew_RequiresModel(t *testing.T) {
	_, err := New(nil, utils.NewDiscardLogger())
	assert.ErrorIs(t, err, ErrModelRequired)
}

func TestExpandQuery(t *testing.T) {
	model := mock.NewScriptedModel(mock.Script{
		Expand: func(prompt string) (string, error) {
			return "  rust ownership borrowing lifetimes memory safety references move semantics borrow checker tutorial guide examples book chapter extra words\n", nil
		},
	})
	e := newTestEnhancer(t, model)

	expanded, err := e.ExpandQuery(context.Background(), "rust ownership", "de")
	require.NoError(t, err)
	assert.Len(t, strings.Fields(expanded), MaxExpansionTokens)
	assert.True(t, strings.HasPrefix(expanded, "rust ownership borrowing"))

	prompts := model.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Original query: rust ownership")
	assert.Contains(t, prompts[0], "country with code DE")
}

func TestExpandQuery_NoLocaleHint(t *testing.T) {
	model := mock.NewScriptedModel(mock.Script{
		Expand: func(string) (string, error) { return "rust ownership rules", nil },
	})
	e := newTestEnhancer(t, model)

	_, err := e.ExpandQuery(context.Background(), "rust ownership", "")
	require.NoError(t, err)
	assert.NotContains(t, model.Prompts()[0], "country with code")
}

func TestExpandQuery_Failures(t *testing.T) {
	e := newTestEnhancer(t, mock.NewScriptedModel(mock.Script{
		Expand: func(string) (string, error) { return "", errQuota },
	}))
	_, err := e.ExpandQuery(context.Background(), "q", "")
	assert.ErrorIs(t, err, errQuota)

	e = newTestEnhancer(t, mock.NewScriptedModel(mock.Script{
		Expand: func(string) (string, error) { return " \n", nil },
	}))
	_, err = e.ExpandQuery(context.Background(), "q", "")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestRankSemantically(t *testing.T) {
	e := newTestEnhancer(t, mock.NewScriptedModel(mock.Script{
		Score: mock.ByTitle(map[string]string{"a": "8.0", "b": "3.0", "c": "9.5"}),
	}))
	in := results("a", "b", "c")

	out, err := e.RankSemantically(context.Background(), "rust ownership", in)
	require.NoError(t, err)

	require.Len(t, out, 3)
	assert.InDelta(t, 0.1, out[0].Rank, 1e-9)
	assert.InDelta(t, 0.5, out[1].Rank, 1e-9)
	assert.InDelta(t, 0.1, out[2].Rank, 1e-9)
	assert.Equal(t, 8.0, *out[0].SemanticScore)
	assert.Equal(t, 3.0, *out[1].SemanticScore)
	assert.Equal(t, 9.5, *out[2].SemanticScore)

	// input untouched
	assert.Equal(t, 1.0, in[0].Rank)
	assert.Nil(t, in[0].SemanticScore)
}

func TestRankSemantically_FallbackToNeutral(t *testing.T) {
	e := newTestEnhancer(t, mock.NewScriptedModel(mock.Script{
		Score: func(prompt string) (string, error) {
			if strings.Contains(prompt, "Document title: a\n") {
				return "", errQuota
			}
			return "not a number", nil
		},
	}))

	out, err := e.RankSemantically(context.Background(), "q", results("a", "b"))
	require.NoError(t, err)

	assert.Equal(t, NeutralScore, *out[0].SemanticScore)
	assert.Equal(t, NeutralScore, *out[1].SemanticScore)
	assert.InDelta(t, MinRank, out[0].Rank, 1e-9)
	assert.InDelta(t, MinRank, out[1].Rank, 1e-9)
}

func TestRankSemantically_ScaleEchoCountsAsNeutral(t *testing.T) {
	e := newTestEnhancer(t, mock.NewScriptedModel(mock.Script{
		Score: mock.ByTitle(map[string]string{
			"a": "On a scale of 0 to 10, I'd say 9",
			"b": "1. Score: 9",
		}),
	}))
	in := results("a", "b")
	in[0].Rank, in[1].Rank = 10, 10

	out, err := e.RankSemantically(context.Background(), "q", in)
	require.NoError(t, err)

	assert.Equal(t, NeutralScore, *out[0].SemanticScore)
	assert.InDelta(t, 7.5, out[0].Rank, 1e-9)
	assert.Equal(t, 9.0, *out[1].SemanticScore)
	assert.InDelta(t, 5.5, out[1].Rank, 1e-9)
}

func TestRankSemantically_RanksStayPositive(t *testing.T) {
	e := newTestEnhancer(t, mock.NewScriptedModel(mock.Script{
		Score: func(string) (string, error) { return "10", nil },
	}))

	in := make([]models.SearchResult, 12)
	for i := range in {
		in[i] = models.SearchResult{Link: fmt.Sprintf("https://e.com/%d", i), Title: fmt.Sprint(i), Rank: float64(i + 1)}
	}

	out, err := e.RankSemantically(context.Background(), "q", in)
	require.NoError(t, err)
	for i, r := range out {
		assert.Greater(t, r.Rank, 0.0)
		assert.GreaterOrEqual(t, r.Rank, MinRank)
		assert.InDelta(t, AdjustRank(float64(i+1), 10), r.Rank, 1e-9)
	}
}

func TestRankSemantically_CancelledContextAbortsStage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newTestEnhancer(t, mock.NewScriptedModel(mock.Script{
		Score: func(string) (string, error) { return "9", nil },
	}))
	in := results("a")

	out, err := e.RankSemantically(ctx, "q", in)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, in, out)
}

func TestFilterContent(t *testing.T) {
	model := mock.NewScriptedModel(mock.Script{
		Verdict: mock.ByTitle(map[string]string{"spam": "FILTER", "fine": "KEEP", "broken": ""}),
	})
	e := newTestEnhancer(t, model)

	in := results("trusted", "spam", "fine", "broken")
	in[0] = scored(in[0], 7.0)
	in[1] = scored(in[1], 3.0)

	out, err := e.FilterContent(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, in[0].Rank, out[0].Rank)
	assert.Equal(t, in[1].Rank+FilterPenalty, out[1].Rank)
	assert.Equal(t, in[2].Rank, out[2].Rank)
	assert.Equal(t, in[3].Rank, out[3].Rank)
	assert.Len(t, out, 4)

	// the trusted result is never judged
	assert.Equal(t, 3, model.CallCount())
	for _, p := range model.Prompts() {
		assert.NotContains(t, p, "Document title: trusted\n")
	}
}

func TestFilterContent_FailuresApplyNoPenalty(t *testing.T) {
	e := newTestEnhancer(t, mock.NewScriptedModel(mock.Script{
		Verdict: func(string) (string, error) { return "", errQuota },
	}))
	in := results("a", "b")

	out, err := e.FilterContent(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in[0].Rank, out[0].Rank)
	assert.Equal(t, in[1].Rank, out[1].Rank)
}

func TestGenerateImprovedSnippets(t *testing.T) {
	longHTML := "<html>" + strings.Repeat("x", 200) + "</html>"
	good := "Ownership is Rust's rule set for managing memory without a garbage collector."

	model := mock.NewScriptedModel(mock.Script{
		Snippet: func(string) (string, error) { return good, nil },
	})
	e := newTestEnhancer(t, model)

	in := make([]models.SearchResult, 7)
	for i := range in {
		in[i] = models.SearchResult{
			Link:    fmt.Sprintf("https://e.com/%d", i),
			Snippet: "original",
			Rank:    float64(7 - i), // index 6 is best
			HTML:    longHTML,
		}
	}
	in[5].HTML = "<p>short</p>"

	out, err := e.GenerateImprovedSnippets(context.Background(), in)
	require.NoError(t, err)

	// top five by rank are indices 6,5,4,3,2; index 5 has too little HTML
	assert.Equal(t, good, out[6].Snippet)
	assert.Equal(t, "original", out[5].Snippet)
	assert.Equal(t, good, out[4].Snippet)
	assert.Equal(t, good, out[3].Snippet)
	assert.Equal(t, good, out[2].Snippet)
	assert.Equal(t, "original", out[1].Snippet)
	assert.Equal(t, "original", out[0].Snippet)
	assert.Equal(t, 4, model.CallCount())
}

func TestGenerateImprovedSnippets_LengthWindow(t *testing.T) {
	html := strings.Repeat("a", MaxHTMLChars+500)
	tests := []struct {
		name    string
		answer  string
		applied bool
	}{
		{"too short", "Too short.", false},
		{"exactly twenty", strings.Repeat("s", 20), false},
		{"twenty one", strings.Repeat("s", 21), true},
		{"two forty nine", strings.Repeat("s", 249), true},
		{"exactly two fifty", strings.Repeat("s", 250), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := mock.NewScriptedModel(mock.Script{
				Snippet: func(string) (string, error) { return tt.answer, nil },
			})
			e := newTestEnhancer(t, model)
			in := []models.SearchResult{{Link: "https://e.com", Snippet: "original", Rank: 1, HTML: html}}

			out, err := e.GenerateImprovedSnippets(context.Background(), in)
			require.NoError(t, err)
			if tt.applied {
				assert.Equal(t, tt.answer, out[0].Snippet)
			} else {
				assert.Equal(t, "original", out[0].Snippet)
			}

			prompt := model.Prompts()[0]
			assert.Contains(t, prompt, strings.Repeat("a", MaxHTMLChars))
			assert.NotContains(t, prompt, strings.Repeat("a", MaxHTMLChars+1))
		})
	}
}

func TestGenerateImprovedSnippets_ErrorKeepsOriginal(t *testing.T) {
	e := newTestEnhancer(t, mock.NewScriptedModel(mock.Script{
		Snippet: func(string) (string, error) { return "", errQuota },
	}))
	in := []models.SearchResult{{Link: "https://e.com", Snippet: "original", Rank: 1, HTML: strings.Repeat("h", 150)}}

	out, err := e.GenerateImprovedSnippets(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "original", out[0].Snippet)
}

func TestGenerate_RetriesTransientErrors(t *testing.T) {
	calls := 0
	model := mock.NewScriptedModel(mock.Script{
		Expand: func(string) (string, error) {
			calls++
			if calls < 3 {
				return "", errQuota
			}
			return "rust ownership rules", nil
		},
	})
	e, err := New(model, utils.NewDiscardLogger(), WithPoolSize(1), WithRateLimit(1000),
		WithRetryConfig(RetryConfig{MaxRetries: 2, BaseDelay: 0, MaxDelay: 0}))
	require.NoError(t, err)
	defer e.Close()

	expanded, err := e.ExpandQuery(context.Background(), "rust ownership", "")
	require.NoError(t, err)
	assert.Equal(t, "rust ownership rules", expanded)
	assert.Equal(t, 3, calls)
}
