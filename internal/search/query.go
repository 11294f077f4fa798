package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Params configures a catalog query.
type Params struct {
	Query string
	Genre string // slug; empty = all genres

	MinBPM int
	MaxBPM int

	Limit  int
	Offset int
}

// DefaultLimit caps results when Params.Limit is zero.
const DefaultLimit = 20

// Result is one page of hits.
type Result struct {
	Query  string       `json:"query"`
	Total  uint64       `json:"total"`
	TookMs int64        `json:"took_ms"`
	Hits   []Hit        `json:"hits"`
	Genres []FacetCount `json:"genres,omitempty"`
}

// Hit is one matching track.
type Hit struct {
	ID         string            `json:"id"`
	Score      float64           `json:"score"`
	Name       string            `json:"name"`
	Genre      string            `json:"genre"`
	BPM        int               `json:"bpm,omitempty"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// FacetCount is a facet value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search executes a catalog query.
func (s *TrackIndex) Search(ctx context.Context, params Params) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	req := bleve.NewSearchRequestOptions(buildQuery(params), limit, params.Offset, false)
	req.SortBy([]string{"-_score", "id"})
	req.AddFacet("genre", bleve.NewFacetRequest("genre", 5))
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField("name")
	req.Fields = []string{"id", "name", "genre", "bpm"}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	out := &Result{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(res.Hits)),
	}
	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Score: h.Score}
		if n, ok := h.Fields["name"].(string); ok {
			hit.Name = n
		}
		if g, ok := h.Fields["genre"].(string); ok {
			hit.Genre = g
		}
		if b, ok := h.Fields["bpm"].(float64); ok {
			hit.BPM = int(b)
		}
		if len(h.Fragments) > 0 {
			hit.Highlights = make(map[string]string)
			for field, fragments := range h.Fragments {
				if len(fragments) > 0 {
					hit.Highlights[field] = fragments[0]
				}
			}
		}
		out.Hits = append(out.Hits, hit)
	}

	if f, ok := res.Facets["genre"]; ok && f.Terms != nil {
		for _, term := range f.Terms.Terms() {
			out.Genres = append(out.Genres, FacetCount{Value: term.Term, Count: term.Count})
		}
	}
	return out, nil
}

// buildQuery ANDs the text match with the filters.
func buildQuery(params Params) query.Query {
	var queries []query.Query

	if q := strings.TrimSpace(params.Query); q != "" {
		nameMatch := bleve.NewMatchQuery(q)
		nameMatch.SetField("name")
		nameMatch.SetBoost(3.0)

		// Typo tolerance, applied to the analyzed terms
		fuzzy := bleve.NewMatchQuery(q)
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("name")
		fuzzy.SetBoost(0.8)

		textQueries := []query.Query{nameMatch, fuzzy}

		// Autocomplete on the last word
		words := strings.Fields(strings.ToLower(q))
		if last := words[len(words)-1]; len(last) >= 2 {
			prefix := bleve.NewPrefixQuery(last)
			prefix.SetField("name")
			prefix.SetBoost(0.5)
			textQueries = append(textQueries, prefix)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if params.Genre != "" {
		gq := bleve.NewTermQuery(params.Genre)
		gq.SetField("genre")
		queries = append(queries, gq)
	}

	if params.MinBPM > 0 || params.MaxBPM > 0 {
		var lo, hi *float64
		if params.MinBPM > 0 {
			v := float64(params.MinBPM)
			lo = &v
		}
		if params.MaxBPM > 0 {
			v := float64(params.MaxBPM)
			hi = &v
		}
		inclusive := true
		rq := bleve.NewNumericRangeInclusiveQuery(lo, hi, &inclusive, &inclusive)
		rq.SetField("bpm")
		queries = append(queries, rq)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}
