// Package analyzer implements the diacritic-insensitive text analysis
// pipeline shared by the indexer and the query compiler: tokenize on
// non-alphanumeric runes, Unicode-lowercase-fold, then ASCII-fold so that
// "grüßen" and "grussen" land on the same tokens.
package analyzer

import (
	"strings"
	"unicode"
)

// ID identifies this analyzer's rule set. It is persisted into an index's
// meta.json at build time and compared against on open; a mismatch means
// the index was built with different folding rules and must be rebuilt.
const ID = "ascii-folding-v1"

// foldMap maps BMP runes with diacritics or ligatures to their bare ASCII
// (or near-ASCII) equivalents. It is total and stable: every rune maps to
// exactly one output, and that output never changes between runs.
var foldMap = map[rune]string{
	'ä': "a", 'Ä': "a",
	'ö': "o", 'Ö': "o",
	'ü': "u", 'Ü': "u",
	'ß': "ss",
	'à': "a", 'á': "a", 'â': "a", 'ã': "a", 'å': "a", 'ā': "a",
	'è': "e", 'é': "e", 'ê': "e", 'ë': "e", 'ē': "e",
	'ì': "i", 'í': "i", 'î': "i", 'ï': "i", 'ī': "i",
	'ò': "o", 'ó': "o", 'ô': "o", 'õ': "o", 'ø': "o", 'ō': "o",
	'ù': "u", 'ú': "u", 'û': "u", 'ū': "u",
	'ñ': "n",
	'ç': "c",
	'ý': "y", 'ÿ': "y",
}

// isTokenRune reports whether r is part of a token (letters and digits);
// everything else is a token boundary.
func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// foldRune lowercases and ASCII-folds a single rune, writing its output
// (which may be more than one byte) to b. Runes with no folding entry and
// no case mapping pass through unchanged.
func foldRune(b *strings.Builder, r rune) {
	lower := unicode.ToLower(r)
	if repl, ok := foldMap[lower]; ok {
		b.WriteString(repl)
		return
	}
	b.WriteRune(lower)
}

// fold lowercases and ASCII-folds a token. Tokens that fold to the empty
// string (never occurs for the current foldMap, but kept as an explicit
// rule for degenerate future entries) are dropped by the caller.
func fold(token string) string {
	var b strings.Builder
	b.Grow(len(token))
	for _, r := range token {
		foldRune(&b, r)
	}
	return b.String()
}

// Analyze tokenizes text on non-alphanumeric rune boundaries and folds
// each token to a diacritic-insensitive, lowercase form. Empty folds are
// dropped; the result may be shorter than the raw token count.
func Analyze(text string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		if folded := fold(current.String()); folded != "" {
			tokens = append(tokens, folded)
		}
		current.Reset()
	}

	for _, r := range text {
		if isTokenRune(r) {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

// AnalyzeOne folds a single already-tokenized word (no boundary
// splitting), used by the query compiler when the caller has already
// established that raw_query is a single headword candidate.
func AnalyzeOne(word string) string {
	return fold(word)
}

// Key concatenates Analyze's tokens with no separator, producing the single
// term a multi-token headword (e.g. "E-Mail" -> "e","mail") collapses to for
// exact/fuzzy/prefix term-level matching. The indexer and the query compiler
// both call this exact function so a headword's term-dictionary entry and a
// query's compiled term always agree, per the shared-analyzer contract.
func Key(text string) string {
	return strings.Join(Analyze(text), "")
}
