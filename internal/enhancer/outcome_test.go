package enhancer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseScore(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"8", 8, true},
		{" 9.5\n", 9.5, true},
		{"Score: 7.25", 7.25, true},
		{"8/10", 8, true},
		{"42", 10, true},
		{"-3", 0, true},
		{"very relevant", NeutralScore, false},
		{"", NeutralScore, false},
		{"NaN", NeutralScore, false},
		{"Inf", NeutralScore, false},
		{"**7**", 7, true},
		{"6.", 6, true},
		{"7 out of 10", 7, true},
		{"1. Score: 9", 9, true},
		{"Relevance score: 6.5", 6.5, true},
		{"rating = 3", 3, true},
		{"On a scale of 0 to 10, I'd say 8", NeutralScore, false},
		{"0-10: 9", NeutralScore, false},
		{"I would rate it 2 of 5 stars", NeutralScore, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			outcome := ParseScore(tt.input)
			assert.Equal(t, tt.ok, outcome.Ok())
			assert.Equal(t, tt.want, outcome.Or(NeutralScore))
		})
	}
}

func TestParseVerdict(t *testing.T) {
	assert.Equal(t, Filter, ParseVerdict("FILTER").Or(Keep))
	assert.Equal(t, Filter, ParseVerdict(" filter.\n").Or(Keep))
	assert.Equal(t, Keep, ParseVerdict("KEEP").Or(Filter))

	unknown := ParseVerdict("Probably filter this one")
	assert.ErrorIs(t, unknown.Err, ErrUnknownVerdict)
	assert.Equal(t, Keep, unknown.Or(Keep))

	assert.ErrorIs(t, ParseVerdict("  ").Err, ErrEmptyResponse)
}

func TestTruncateTokens(t *testing.T) {
	long := "one two three four five six seven eight nine ten eleven twelve thirteen fourteen fifteen sixteen seventeen"
	assert.Equal(t, "one two three four five six seven eight nine ten eleven twelve thirteen fourteen fifteen", TruncateTokens(long, MaxExpansionTokens))
	assert.Equal(t, "rust ownership borrow", TruncateTokens("  rust\nownership   borrow ", MaxExpansionTokens))
	assert.Empty(t, TruncateTokens(" \n ", MaxExpansionTokens))
}

func TestPrefixRunes(t *testing.T) {
	assert.Equal(t, "héll", prefixRunes("héllo", 4))
	assert.Equal(t, "abc", prefixRunes("abc", 10))
}

func TestAdjustRank(t *testing.T) {
	assert.Equal(t, MinRank, AdjustRank(1, 8))
	assert.Equal(t, 0.5, AdjustRank(2, 3))
	assert.Equal(t, MinRank, AdjustRank(3, 9.5))
	assert.Equal(t, 7.5, AdjustRank(10, 5))
}
