package querybuilder

import (
	"encoding/json"

	"github.com/cuemby/restpose/pkg/rperrors"
)

// AllDocuments is the sentinel value for Size/CheckAtLeast meaning "every
// matching document", per spec's "-1 in size or checkatleast means all
// documents".
const AllDocuments = -1

// SearchRequest is the caller-supplied search execution payload of spec
// §4.6: {query, from, size, checkatleast, info, display, verbose}.
type SearchRequest struct {
	Query        json.RawMessage   `json:"query"`
	From         int               `json:"from"`
	Size         int               `json:"size"`
	CheckAtLeast int               `json:"checkatleast"`
	Info         []json.RawMessage `json:"info"`
	Display      []string          `json:"display"`
	Verbose      bool              `json:"verbose"`
}

// ParseSearchRequest decodes a search request, applying from=0, size=10,
// checkatleast=0 when the corresponding member is absent.
func ParseSearchRequest(data []byte) (*SearchRequest, error) {
	var raw struct {
		Query        json.RawMessage   `json:"query"`
		From         *int              `json:"from"`
		Size         *int              `json:"size"`
		CheckAtLeast *int              `json:"checkatleast"`
		Info         []json.RawMessage `json:"info"`
		Display      []string          `json:"display"`
		Verbose      bool              `json:"verbose"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, rperrors.Wrap(rperrors.KindInvalidValue, "invalid search request", err)
	}
	if len(raw.Query) == 0 {
		return nil, rperrors.New(rperrors.KindInvalidValue, "search request requires a query")
	}
	req := &SearchRequest{
		Query:   raw.Query,
		Info:    raw.Info,
		Display: raw.Display,
		Verbose: raw.Verbose,
		Size:    10,
	}
	if raw.From != nil {
		req.From = *raw.From
	}
	if raw.Size != nil {
		req.Size = *raw.Size
	}
	if raw.CheckAtLeast != nil {
		req.CheckAtLeast = *raw.CheckAtLeast
	}
	return req, nil
}

// MatchBounds carries the lower_bound/estimated/upper_bound match-count
// triple the backend reports for an MSet.
type MatchBounds struct {
	LowerBound int `json:"matches_lower_bound"`
	Estimated  int `json:"matches_estimated"`
	UpperBound int `json:"matches_upper_bound"`
}

// SearchResponse is the response object described in spec §4.6: echoed
// pagination parameters, match-count bounds, the selected stored fields per
// hit, and one result object per attached match spy.
type SearchResponse struct {
	From         int               `json:"from"`
	Size         int               `json:"size"`
	CheckAtLeast int               `json:"checkatleast"`
	MatchBounds
	Items []map[string]interface{} `json:"items"`
	Info  []interface{}            `json:"info"`
}
