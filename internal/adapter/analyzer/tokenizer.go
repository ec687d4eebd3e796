package analyzer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"ragqa/internal/port"
)

// DefaultMaxPieceRunes bounds how many runes a single token may span.
// Longer words are split into pieces, approximating subword tokenizers.
const DefaultMaxPieceRunes = 6

// Tokenizer splits text into model-style tokens and normalised terms.
type Tokenizer struct {
	stopwords     map[string]struct{}
	maxPieceRunes int
}

var _ port.Tokenizer = (*Tokenizer)(nil)

// NewTokenizer creates a new Tokenizer. maxPieceRunes <= 0 selects the default.
func NewTokenizer(maxPieceRunes int) *Tokenizer {
	if maxPieceRunes <= 0 {
		maxPieceRunes = DefaultMaxPieceRunes
	}
	return &Tokenizer{
		stopwords:     defaultStopwords(),
		maxPieceRunes: maxPieceRunes,
	}
}

// Spans returns the byte ranges of every token in text. Words (letters,
// digits, underscore) become one or more pieces of at most maxPieceRunes
// runes, every other non-space rune is a token of its own, whitespace is
// never part of a token.
func (t *Tokenizer) Spans(text string) []port.Span {
	var spans []port.Span

	wordStart, wordRunes := -1, 0
	flush := func(end int) {
		if wordStart >= 0 {
			spans = append(spans, port.Span{Start: wordStart, End: end})
			wordStart, wordRunes = -1, 0
		}
	}

	for i, r := range text {
		switch {
		case isWordRune(r):
			if wordStart >= 0 && wordRunes == t.maxPieceRunes {
				flush(i)
			}
			if wordStart < 0 {
				wordStart = i
			}
			wordRunes++
		case unicode.IsSpace(r):
			flush(i)
		default:
			flush(i)
			spans = append(spans, port.Span{Start: i, End: i + utf8.RuneLen(r)})
		}
	}
	flush(len(text))

	return spans
}

// CountTokens returns the number of tokens Spans would produce.
func (t *Tokenizer) CountTokens(text string) int {
	return len(t.Spans(text))
}

// Terms returns lowercased words with stopwords and one-rune words removed.
// It is used for lexical features, not for chunk boundaries.
func (t *Tokenizer) Terms(text string) []string {
	words := splitWords(text)
	terms := make([]string, 0, len(words))

	for _, word := range words {
		word = strings.ToLower(word)
		if utf8.RuneCountInString(word) < 2 {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		terms = append(terms, word)
	}

	return terms
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// splitWords splits text into words using unicode word boundaries.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	for _, r := range text {
		if isWordRune(r) {
			current.WriteRune(r)
		} else if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}

// defaultStopwords returns a set of common English stopwords.
func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"no", "can", "do", "does", "did", "been", "being", "would",
		"could", "should", "may", "might", "must", "shall", "which",
		"who", "whom", "what", "when", "where", "why", "how", "all",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
