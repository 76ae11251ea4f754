package categoriser

import (
	"encoding/json"
	"sort"

	"github.com/cuemby/restpose/pkg/rperrors"
)

// Categoriser classifies text against a set of labelled n-gram profiles,
// grounded on ngramcat/categoriser.cc.
type Categoriser struct {
	labels   []string
	profiles map[string]Profile

	// AccuracyThreshold is the proportion of the best (lowest) distance
	// that other candidates must be within to also be reported as a
	// match.
	AccuracyThreshold float64
	// MaxNgramLength is the longest n-gram (in runes) used when building
	// profiles from sample text.
	MaxNgramLength int
	// MaxNgrams caps how many of the most frequent ngrams are kept in a
	// built profile.
	MaxNgrams uint32
	// MaxCandidates bounds how many labels may tie for the best match
	// before the result is treated as too ambiguous to report.
	MaxCandidates int
}

// defaults chosen to match the teacher's typical production tuning: tight
// enough to separate similar scripts, loose enough to tolerate short inputs.
const (
	DefaultAccuracyThreshold = 1.05
	DefaultMaxNgramLength    = 4
	DefaultMaxNgrams         = 400
	DefaultMaxCandidates     = 1
)

// New creates a Categoriser with the default tuning.
func New() *Categoriser {
	return &Categoriser{
		profiles:          make(map[string]Profile),
		AccuracyThreshold: DefaultAccuracyThreshold,
		MaxNgramLength:    DefaultMaxNgramLength,
		MaxNgrams:         DefaultMaxNgrams,
		MaxCandidates:     DefaultMaxCandidates,
	}
}

// AddTargetProfile registers a pre-built profile under label. It is an error
// to add the same label twice.
func (c *Categoriser) AddTargetProfile(label string, profile Profile) error {
	if _, exists := c.profiles[label]; exists {
		return rperrors.Invalidf("categoriser already has a target profile for label %q", label)
	}
	c.profiles[label] = profile
	c.labels = append(c.labels, label)
	return nil
}

// AddTargetProfileFromText builds a profile from sample text and registers
// it under label.
func (c *Categoriser) AddTargetProfileFromText(label, sampleText string) error {
	builder := NewProfileBuilder(c.MaxNgramLength)
	builder.AddText(sampleText)
	sorted := builder.Build(c.MaxNgrams)
	return c.AddTargetProfile(label, profileFromSorted(sorted))
}

type candidate struct {
	label    string
	distance uint32
}

// Categorise classifies a pre-built sorted profile, returning the matching
// labels in increasing distance order. An empty result means the input was
// too ambiguous to classify (more than MaxCandidates tied within the
// accuracy threshold of the best match).
func (c *Categoriser) Categorise(profile SortedProfile) []string {
	if len(c.labels) == 0 {
		return nil
	}

	candidates := make([]candidate, 0, len(c.labels))
	for _, label := range c.labels {
		candidates = append(candidates, candidate{
			label:    label,
			distance: profile.Distance(c.profiles[label]),
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].label < candidates[j].label
	})

	best := float64(candidates[0].distance)
	threshold := best * c.AccuracyThreshold
	var results []string
	for _, cand := range candidates {
		if float64(cand.distance) > threshold {
			break
		}
		results = append(results, cand.label)
	}

	if len(results) > c.MaxCandidates {
		return nil
	}
	return results
}

// CategoriseText tokenises and profiles text, then classifies it.
func (c *Categoriser) CategoriseText(text string) []string {
	builder := NewProfileBuilder(c.MaxNgramLength)
	builder.AddText(text)
	return c.Categorise(builder.Build(c.MaxNgrams))
}

type categoriserJSON struct {
	AccuracyThreshold float64            `json:"accuracy_threshold"`
	MaxNgramLength    int                `json:"max_ngram_length"`
	MaxNgrams         uint32             `json:"max_ngrams"`
	MaxCandidates     int                `json:"max_candidates"`
	Profiles          map[string]Profile `json:"profiles"`
}

// ToJSON serialises the categoriser's tuning and target profiles.
func (c *Categoriser) ToJSON() ([]byte, error) {
	return json.Marshal(categoriserJSON{
		AccuracyThreshold: c.AccuracyThreshold,
		MaxNgramLength:    c.MaxNgramLength,
		MaxNgrams:         c.MaxNgrams,
		MaxCandidates:     c.MaxCandidates,
		Profiles:          c.profiles,
	})
}

// FromJSON parses a categoriser previously serialised with ToJSON.
func FromJSON(data []byte) (*Categoriser, error) {
	var cj categoriserJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return nil, rperrors.Wrap(rperrors.KindInvalidValue, "invalid categoriser JSON", err)
	}
	c := New()
	c.AccuracyThreshold = cj.AccuracyThreshold
	c.MaxNgramLength = cj.MaxNgramLength
	c.MaxNgrams = cj.MaxNgrams
	c.MaxCandidates = cj.MaxCandidates
	labels := make([]string, 0, len(cj.Profiles))
	for label := range cj.Profiles {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		c.profiles[label] = cj.Profiles[label]
		c.labels = append(c.labels, label)
	}
	return c, nil
}
