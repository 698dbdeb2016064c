// Package schema builds the bleve index mapping shared by the indexer and
// the query engine: word, definition and language fields backed by a
// custom diacritic-folding analyzer registered the way the teacher
// registers its code analyzer — a tokenizer plus a chain of token filters —
// plus a single-term word_key field for term-level queries and an unindexed
// source_feed field.
package schema

import (
	"fmt"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"

	"github.com/mmtftr/dictv/internal/analyzer"
)

// isTokenRune mirrors analyzer's token-boundary rule (unexported there).
func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

const (
	// TokenizerName is the registered name of the non-alphanumeric-boundary
	// tokenizer.
	TokenizerName = "dictv_tokenizer"

	// FoldFilterName is the registered name of the ASCII-fold token filter.
	FoldFilterName = "dictv_ascii_fold"

	// AnalyzerName is the registered name of the combined analyzer: tokenize,
	// lowercase, ASCII-fold. It mirrors analyzer.Analyze exactly, so words
	// indexed via this mapping and queries analyzed with analyzer.Analyze
	// always land on the same terms.
	AnalyzerName = "dictv_analyzer"

	// WordField is the headword field name. It is indexed with the
	// multi-token dictv_analyzer (one term per position), used for storage
	// and for any future positional/phrase matching.
	WordField = "word"
	// WordKeyField holds the same headword collapsed to a single
	// already-folded term (analyzer.Key), indexed with bleve's keyword
	// analyzer so it is never re-tokenized. Term-level queries (exact,
	// fuzzy, prefix-regex) run against this field instead of WordField:
	// a multi-token headword like "E-Mail" indexes on WordField as two
	// terms at two positions ("e", "mail"), which a single-term query
	// would never match, but collapses to one term ("email") here.
	WordKeyField = "word_key"
	// DefinitionField is the definition text field name.
	DefinitionField = "definition"
	// LanguageField is the exact-keyed language tag field name.
	LanguageField = "language"
	// SourceFeedField is an unindexed metadata field recording which .dict.dz
	// file an entry came from, for per-feed stats reporting.
	SourceFeedField = "source_feed"
)

func init() {
	_ = registry.RegisterTokenizer(TokenizerName, tokenizerConstructor)
	_ = registry.RegisterTokenFilter(FoldFilterName, foldFilterConstructor)
}

// Document is the bleve document shape indexed for every DictEntry.
type Document struct {
	Word       string `json:"word"`
	WordKey    string `json:"word_key"`
	Definition string `json:"definition"`
	Language   string `json:"language"`
	SourceFeed string `json:"source_feed,omitempty"`
}

// BleveType satisfies bleve's classifier-based mapping dispatch.
func (Document) BleveType() string { return "dict_entry" }

// New builds the index mapping: word/definition analyzed with the
// diacritic-folding analyzer, language as an exact-keyed field via bleve's
// built-in keyword analyzer, source_feed stored but not indexed.
func New() (mapping.IndexMapping, error) {
	im := bleve.NewIndexMapping()

	if err := im.AddCustomAnalyzer(AnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": TokenizerName,
		"token_filters": []string{
			lowercase.Name,
			FoldFilterName,
		},
	}); err != nil {
		return nil, fmt.Errorf("add custom analyzer: %w", err)
	}

	docMapping := bleve.NewDocumentMapping()

	wordField := bleve.NewTextFieldMapping()
	wordField.Analyzer = AnalyzerName
	wordField.Store = true
	docMapping.AddFieldMappingsAt(WordField, wordField)

	wordKeyField := bleve.NewTextFieldMapping()
	wordKeyField.Analyzer = keyword.Name
	wordKeyField.Store = false
	docMapping.AddFieldMappingsAt(WordKeyField, wordKeyField)

	defField := bleve.NewTextFieldMapping()
	defField.Analyzer = AnalyzerName
	defField.Store = true
	docMapping.AddFieldMappingsAt(DefinitionField, defField)

	langField := bleve.NewTextFieldMapping()
	langField.Analyzer = keyword.Name
	langField.Store = true
	docMapping.AddFieldMappingsAt(LanguageField, langField)

	feedField := bleve.NewTextFieldMapping()
	feedField.Index = false
	feedField.Store = true
	docMapping.AddFieldMappingsAt(SourceFeedField, feedField)

	im.AddDocumentMapping(Document{}.BleveType(), docMapping)
	im.DefaultMapping = docMapping
	im.DefaultAnalyzer = AnalyzerName
	im.TypeField = "_unused_type_field"
	im.DefaultType = Document{}.BleveType()

	return im, nil
}

// tokenizerConstructor builds the non-alphanumeric-boundary tokenizer.
func tokenizerConstructor(_ map[string]interface{}, _ *registry.Cache) (analysis.Tokenizer, error) {
	return boundaryTokenizer{}, nil
}

// boundaryTokenizer splits input on rune boundaries that are not letters
// or digits, exactly like analyzer.Analyze's tokenization step.
type boundaryTokenizer struct{}

func (boundaryTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	var stream analysis.TokenStream

	start := -1
	pos := 1
	flush := func(end int) {
		if start < 0 {
			return
		}
		stream = append(stream, &analysis.Token{
			Term:     []byte(text[start:end]),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		start = -1
	}

	for i, r := range text {
		if isTokenRune(r) {
			if start < 0 {
				start = i
			}
		} else {
			flush(i)
		}
	}
	flush(len(text))

	return stream
}

// foldFilterConstructor builds the ASCII-fold token filter.
func foldFilterConstructor(_ map[string]interface{}, _ *registry.Cache) (analysis.TokenFilter, error) {
	return foldFilter{}, nil
}

// foldFilter ASCII-folds each already-lowercased token using the same
// foldMap as analyzer.Analyze, so indexed terms match query-time analysis.
type foldFilter struct{}

func (foldFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	for _, tok := range input {
		tok.Term = []byte(analyzer.AnalyzeOne(string(tok.Term)))
	}
	return input
}
