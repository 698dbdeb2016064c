// Package query compiles a user's raw search input into one of three bleve
// query shapes (exact term, Levenshtein-automaton fuzzy, anchored prefix
// regex) conjoined with a language filter, executes it against the shared
// index reader, and ranks results the way bm25.go's Search does: analyze,
// compile, SearchInContext, map hits back to stored fields.
package query

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"

	"github.com/mmtftr/dictv/internal/analyzer"
	dictverrors "github.com/mmtftr/dictv/internal/errors"
	"github.com/mmtftr/dictv/internal/schema"
	"github.com/mmtftr/dictv/internal/store"
)

// Mode selects one of the three query strategies.
type Mode string

const (
	ModeExact  Mode = "exact"
	ModeFuzzy  Mode = "fuzzy"
	ModePrefix Mode = "prefix"
)

// DefaultLimit is Search's fallback for a negative limit. validate rejects a
// negative limit first, so Search never applies it; limit == 0 is a valid
// "return nothing" request (see Search).
const DefaultLimit = 20

// Request is the compiled input to Search.
type Request struct {
	RawQuery    string
	Mode        Mode
	Language    string
	MaxDistance int // only meaningful when Mode == ModeFuzzy
	Limit       int
}

// Result is one ranked headword match.
type Result struct {
	Word         string  `json:"word"`
	Definition   string  `json:"definition"`
	Language     string  `json:"language"`
	EditDistance int     `json:"edit_distance"`
	Score        float64 `json:"score"`
}

// Response wraps the ranked results with the measured wall-clock time.
type Response struct {
	Results   []Result
	ElapsedMs float64
}

var validLanguages = map[string]bool{"de-en": true, "en-de": true}

// Search validates req, compiles it into a bleve query, executes it against
// s, and returns ranked results. An empty (after trim) or analyzed-to-empty
// raw_query is not an error: it short-circuits to zero results per §4.E.
func Search(ctx context.Context, s *store.Store, req Request) (Response, error) {
	start := time.Now()

	if err := validate(req); err != nil {
		return Response{}, err
	}

	trimmed := strings.TrimSpace(req.RawQuery)
	if trimmed == "" {
		return Response{ElapsedMs: elapsedMs(start)}, nil
	}

	analyzed := analyzer.Analyze(trimmed)
	if len(analyzed) == 0 {
		return Response{ElapsedMs: elapsedMs(start)}, nil
	}
	// analyzer.Key collapses every analyzed token into one string with no
	// separator — the same collapsing the indexer applies to WordKeyField
	// (schema.WordKeyField), so a multi-token headword like "E-Mail"
	// (WordField terms "e","mail" at two positions) still has a single
	// matchable term here instead of silently missing term-level queries.
	analyzedQuery := analyzer.Key(trimmed)

	limit := req.Limit
	if limit == 0 {
		return Response{ElapsedMs: elapsedMs(start)}, nil
	}
	if limit < 0 {
		limit = DefaultLimit
	}

	headwordQuery, err := compileHeadwordQuery(req.Mode, analyzedQuery, req.MaxDistance)
	if err != nil {
		return Response{}, err
	}

	langQuery := bleve.NewTermQuery(req.Language)
	langQuery.SetField(schema.LanguageField)

	conjoined := bleve.NewConjunctionQuery(headwordQuery, langQuery)

	searchRequest := bleve.NewSearchRequest(conjoined)
	searchRequest.Size = limit
	searchRequest.Fields = []string{schema.WordField, schema.DefinitionField, schema.LanguageField}

	idx, err := s.Index()
	if err != nil {
		return Response{}, dictverrors.New(dictverrors.ErrCodeIndexCorrupt, "index store unavailable", err)
	}
	defer s.Release()

	searchResult, err := idx.SearchInContext(ctx, searchRequest)
	if err != nil {
		return Response{}, dictverrors.New(dictverrors.ErrCodeIndexCorrupt, "search execution failed", err)
	}

	results := make([]Result, 0, len(searchResult.Hits))
	for _, hit := range searchResult.Hits {
		word := fieldString(hit.Fields, schema.WordField)
		definition := fieldString(hit.Fields, schema.DefinitionField)
		language := fieldString(hit.Fields, schema.LanguageField)

		dist := 0
		if req.Mode == ModeFuzzy {
			dist = damerauLevenshtein(analyzedQuery, analyzer.Key(word))
		}

		results = append(results, Result{
			Word:         word,
			Definition:   definition,
			Language:     language,
			EditDistance: dist,
			Score:        hit.Score,
		})
	}

	sortResults(results)

	return Response{Results: results, ElapsedMs: elapsedMs(start)}, nil
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

func validate(req Request) error {
	switch req.Mode {
	case ModeExact, ModeFuzzy, ModePrefix:
	default:
		return dictverrors.New(dictverrors.ErrCodeInvalidMode, fmt.Sprintf("unknown mode %q", req.Mode), nil)
	}

	if !validLanguages[req.Language] {
		return dictverrors.New(dictverrors.ErrCodeInvalidLanguage, fmt.Sprintf("unknown language %q", req.Language), nil)
	}

	if req.Mode == ModeFuzzy && req.MaxDistance != 1 && req.MaxDistance != 2 {
		return dictverrors.New(dictverrors.ErrCodeInvalidDistance, fmt.Sprintf("max_distance must be 1 or 2, got %d", req.MaxDistance), nil)
	}

	if req.Limit < 0 {
		return dictverrors.New(dictverrors.ErrCodeInvalidLimit, "limit must be >= 0", nil)
	}

	return nil
}

// compileHeadwordQuery builds the bleve query shape for mode, as described
// in spec §4.E: exact term match, Levenshtein-automaton fuzzy match
// (transposition counted as one edit via bleve's vellum-backed Fuzzy
// query), or an anchored prefix regex with the query's metacharacters
// escaped so a user typing "." or "*" can't inject a regex.
//
// All three target schema.WordKeyField, not schema.WordField: WordField is
// indexed with the multi-token boundary tokenizer, so a headword with an
// internal separator (e.g. "E-Mail") becomes two terms ("e", "mail") at two
// positions and never appears as a single term in the term dictionary.
// WordKeyField carries the same headword collapsed to one already-folded
// term (analyzer.Key), which is exactly what analyzedQuery is here, so a
// single-term query against it matches regardless of internal separators.
func compileHeadwordQuery(mode Mode, analyzedQuery string, maxDistance int) (bleve.Query, error) {
	switch mode {
	case ModeExact:
		q := bleve.NewTermQuery(analyzedQuery)
		q.SetField(schema.WordKeyField)
		return q, nil

	case ModeFuzzy:
		q := bleve.NewFuzzyQuery(analyzedQuery)
		q.SetField(schema.WordKeyField)
		q.Fuzziness = maxDistance
		q.Prefix = 0
		return q, nil

	case ModePrefix:
		pattern := regexp.QuoteMeta(analyzedQuery) + ".*"
		q := bleve.NewRegexpQuery(pattern)
		q.SetField(schema.WordKeyField)
		return q, nil

	default:
		return nil, dictverrors.New(dictverrors.ErrCodeInvalidMode, fmt.Sprintf("unknown mode %q", mode), nil)
	}
}

func fieldString(fields map[string]interface{}, name string) string {
	v, ok := fields[name]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// sortResults applies invariant 5: score desc, edit_distance asc, word asc.
func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].EditDistance != results[j].EditDistance {
			return results[i].EditDistance < results[j].EditDistance
		}
		return results[i].Word < results[j].Word
	})
}

// damerauLevenshtein computes the optimal-string-alignment edit distance
// between a and b, counting an adjacent transposition as a single edit (the
// same metric the fuzzy matcher is scored against; see the glossary entry
// for "edit distance"). Operates on runes so multi-byte folded characters
// count as one position.
func damerauLevenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	// d[i][j] holds the distance between ra[:i] and rb[:j].
	d := make([][]int, la+1)
	for i := range d {
		d[i] = make([]int, lb+1)
		d[i][0] = i
	}
	for j := 0; j <= lb; j++ {
		d[0][j] = j
	}

	for i := 1; i <= la; i++ {
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}

			del := d[i-1][j] + 1
			ins := d[i][j-1] + 1
			sub := d[i-1][j-1] + cost
			best := del
			if ins < best {
				best = ins
			}
			if sub < best {
				best = sub
			}

			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				trans := d[i-2][j-2] + cost
				if trans < best {
					best = trans
				}
			}

			d[i][j] = best
		}
	}

	return d[la][lb]
}
