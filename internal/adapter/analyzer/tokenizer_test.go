package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spanTexts(text string, tok *Tokenizer) []string {
	var out []string
	for _, s := range tok.Spans(text) {
		out = append(out, text[s.Start:s.End])
	}
	return out
}

func TestTokenizer_SpansWordsAndPunctuation(t *testing.T) {
	tok := NewTokenizer(0)

	assert.Equal(t, []string{"Hello", ",", "world", "!"}, spanTexts("Hello, world!", tok))
}

func TestTokenizer_SpansSplitLongWords(t *testing.T) {
	tok := NewTokenizer(4)

	assert.Equal(t, []string{"inte", "rnat", "iona", "l"}, spanTexts("international", tok))
}

func TestTokenizer_SpansSkipWhitespace(t *testing.T) {
	tok := NewTokenizer(0)

	spans := tok.Spans("  a \n\t b  ")
	require.Len(t, spans, 2)
	assert.Equal(t, 2, spans[0].Start)
	assert.Equal(t, 3, spans[0].End)
}

func TestTokenizer_SpansUnicode(t *testing.T) {
	tok := NewTokenizer(0)

	text := "café — naïve"
	assert.Equal(t, []string{"café", "—", "naïve"}, spanTexts(text, tok))
}

func TestTokenizer_CountTokens(t *testing.T) {
	tok := NewTokenizer(0)

	assert.Equal(t, 0, tok.CountTokens(""))
	assert.Equal(t, 0, tok.CountTokens("   \n"))
	assert.Equal(t, 4, tok.CountTokens("one two, three"))
}

func TestTokenizer_TermsRemovesStopwords(t *testing.T) {
	tok := NewTokenizer(0)

	assert.Equal(t, []string{"quick", "brown", "fox"}, tok.Terms("The quick brown fox"))
}

func TestTokenizer_TermsShortWordRemoval(t *testing.T) {
	tok := NewTokenizer(0)

	assert.Empty(t, tok.Terms("a I"))
}
