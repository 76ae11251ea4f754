// Package categoriser implements n-gram language/content profiling and
// categorisation, grounded on ngramcat/profile.cc and ngramcat/categoriser.cc:
// build a frequency-ranked n-gram profile from sample text for each label,
// then classify new text by the rank-distance of its own profile against
// each target.
package categoriser

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/cuemby/restpose/pkg/rperrors"
)

const defaultMaxNgrams = math.MaxUint32 >> 1

// Profile is a frequency-ranked n-gram profile: positions maps an n-gram to
// its rank (0 = most frequent) among the profile's ngrams.
type Profile struct {
	MaxNgrams uint32
	Positions map[string]uint32
}

// SortedProfile is a profile kept in descending-frequency order, the form
// produced directly from sample text and compared against stored Profiles.
type SortedProfile struct {
	MaxNgrams uint32
	Ngrams    []string
}

// sortedFromProfile rebuilds the ordered ngram list from a Profile's
// rank map.
func sortedFromProfile(p Profile) SortedProfile {
	ngrams := make([]string, len(p.Positions))
	for ngram, pos := range p.Positions {
		ngrams[pos] = ngram
	}
	return SortedProfile{MaxNgrams: p.MaxNgrams, Ngrams: ngrams}
}

// profileFromSorted builds the rank map from an ordered ngram list.
func profileFromSorted(s SortedProfile) Profile {
	positions := make(map[string]uint32, len(s.Ngrams))
	for pos, ngram := range s.Ngrams {
		positions[ngram] = uint32(pos)
	}
	return Profile{MaxNgrams: s.MaxNgrams, Positions: positions}
}

// Distance measures how far the sorted profile s is from the target profile
// other: for each ngram present in both, the absolute difference in rank; for
// ngrams present in s but missing from other, the maximum possible penalty.
// Missing ngrams (if s is shorter than the shared rank count) are penalised
// at the maximum too, so sparse profiles never look artificially close.
func (s SortedProfile) Distance(other Profile) uint32 {
	ngramCount := s.MaxNgrams
	if other.MaxNgrams < ngramCount {
		ngramCount = other.MaxNgrams
	}

	var count uint32
	size := uint32(len(s.Ngrams))
	if size < ngramCount {
		count += (ngramCount - size) * ngramCount
	}

	limit := size
	if ngramCount < limit {
		limit = ngramCount
	}
	for i := uint32(0); i < limit; i++ {
		pos, ok := other.Positions[s.Ngrams[i]]
		if !ok {
			count += ngramCount
			continue
		}
		if pos > i {
			count += pos - i
		} else {
			count += i - pos
		}
	}
	return count
}

type profileJSON struct {
	Ngrams    []string `json:"ngrams"`
	MaxNgrams uint32   `json:"max_ngrams"`
}

// MarshalJSON renders a Profile the way the original serialises it: via its
// sorted form, as {"ngrams": [...], "max_ngrams": N}.
func (p Profile) MarshalJSON() ([]byte, error) {
	sorted := sortedFromProfile(p)
	return json.Marshal(profileJSON{Ngrams: sorted.Ngrams, MaxNgrams: sorted.MaxNgrams})
}

// UnmarshalJSON parses a Profile from its sorted JSON form.
func (p *Profile) UnmarshalJSON(data []byte) error {
	var pj profileJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return rperrors.Wrap(rperrors.KindInvalidValue, "invalid ngram profile", err)
	}
	if pj.MaxNgrams == 0 {
		pj.MaxNgrams = defaultMaxNgrams
	}
	*p = profileFromSorted(SortedProfile{MaxNgrams: pj.MaxNgrams, Ngrams: pj.Ngrams})
	return nil
}

// ProfileBuilder accumulates n-gram counts from sample text, generalising
// NGramProfileBuilder's term-tokenising walk to Go's unicode tables rather
// than Xapian's.
type ProfileBuilder struct {
	maxNgramLength int
	counts         map[string]uint32
}

// NewProfileBuilder creates a builder generating ngrams up to maxNgramLength
// characters long.
func NewProfileBuilder(maxNgramLength int) *ProfileBuilder {
	return &ProfileBuilder{maxNgramLength: maxNgramLength, counts: make(map[string]uint32)}
}

// AddText tokenises input into words (runs of letters, digits, and internal
// apostrophes), wraps each in boundary markers, and accumulates counts for
// every substring up to maxNgramLength runes.
func (b *ProfileBuilder) AddText(input string) {
	for _, word := range tokenize(input) {
		b.addNgrams("|" + word + "|")
	}
}

func (b *ProfileBuilder) addNgrams(term string) {
	runes := []rune(term)
	for start := range runes {
		for sublen := 1; sublen <= b.maxNgramLength && start+sublen <= len(runes); sublen++ {
			b.counts[string(runes[start:start+sublen])]++
		}
	}
}

// tokenize splits text into words: maximal runs of letters/digits, with a
// single internal apostrophe or hyphen allowed to join two word characters.
func tokenize(text string) []string {
	var words []string
	var cur strings.Builder
	runes := []rune(text)
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for i, r := range runes {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(unicode.ToLower(r))
			continue
		}
		if (r == '\'' || r == '-') && cur.Len() > 0 && i+1 < len(runes) {
			next := runes[i+1]
			if unicode.IsLetter(next) || unicode.IsDigit(next) {
				cur.WriteRune(r)
				continue
			}
		}
		flush()
	}
	flush()
	return words
}

type ngramFreq struct {
	ngram string
	freq  uint32
}

// Build produces a SortedProfile holding the maxNgrams most frequent ngrams
// seen so far, ties broken by ngram text ascending (matching NGramFreq's
// operator<).
func (b *ProfileBuilder) Build(maxNgrams uint32) SortedProfile {
	items := make([]ngramFreq, 0, len(b.counts))
	for ngram, freq := range b.counts {
		items = append(items, ngramFreq{ngram: ngram, freq: freq})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].freq != items[j].freq {
			return items[i].freq > items[j].freq
		}
		return items[i].ngram < items[j].ngram
	})
	if uint32(len(items)) > maxNgrams {
		items = items[:maxNgrams]
	}
	ngrams := make([]string, len(items))
	for i, it := range items {
		ngrams[i] = it.ngram
	}
	return SortedProfile{MaxNgrams: maxNgrams, Ngrams: ngrams}
}
