package categoriser

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeSplitsOnPunctuationAndLowercases(t *testing.T) {
	words := tokenize("Hello, World! It's fine.")
	assert.Equal(t, []string{"hello", "world", "it's", "fine"}, words)
}

func TestBuilderRanksMostFrequentFirst(t *testing.T) {
	b := NewProfileBuilder(1)
	b.AddText("aaa bbb aaa aaa ccc")
	sorted := b.Build(10)
	require.NotEmpty(t, sorted.Ngrams)
	// every word contributes two "|" boundary markers: 10 of them vs 9 "a"s.
	assert.Equal(t, "|", sorted.Ngrams[0])
}

func TestBuildCapsAtMaxNgrams(t *testing.T) {
	b := NewProfileBuilder(1)
	b.AddText("a b c d e")
	sorted := b.Build(2)
	assert.Len(t, sorted.Ngrams, 2)
}

func TestDistanceToSelfIsZero(t *testing.T) {
	b := NewProfileBuilder(3)
	b.AddText("the quick brown fox jumps over the lazy dog")
	sorted := b.Build(10)
	profile := profileFromSorted(sorted)

	assert.Equal(t, uint32(0), sorted.Distance(profile))
}

func TestDistanceIncreasesForDissimilarText(t *testing.T) {
	en := NewProfileBuilder(3)
	en.AddText("the quick brown fox jumps over the lazy dog repeatedly and often")
	enProfile := profileFromSorted(en.Build(50))

	fr := NewProfileBuilder(3)
	fr.AddText("le renard brun rapide saute par dessus le chien paresseux souvent")
	frSorted := fr.Build(50)

	selfDistance := frSorted.Distance(profileFromSorted(frSorted))
	crossDistance := frSorted.Distance(enProfile)
	assert.Less(t, selfDistance, crossDistance)
}

func TestProfileJSONRoundTrip(t *testing.T) {
	b := NewProfileBuilder(2)
	b.AddText("alpha beta gamma")
	profile := profileFromSorted(b.Build(20))

	data, err := json.Marshal(profile)
	require.NoError(t, err)

	var back Profile
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, profile.Positions, back.Positions)
}
