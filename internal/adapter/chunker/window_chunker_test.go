package chunker

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/adapter/analyzer"
	"ragqa/internal/domain"
)

func TestNewWindowChunker_Validation(t *testing.T) {
	tests := []struct {
		name    string
		unit    Unit
		size    int
		overlap int
	}{
		{"unknown unit", Unit("word"), 100, 10},
		{"zero size", UnitChar, 0, 0},
		{"negative overlap", UnitChar, 100, -1},
		{"overlap equals size", UnitChar, 100, 100},
		{"overlap exceeds size", UnitToken, 10, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWindowChunker(tt.unit, tt.size, tt.overlap, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		})
	}
}

func TestWindowChunker_TwoPageScenario(t *testing.T) {
	c, err := NewWindowChunker(UnitChar, 500, 50, nil)
	require.NoError(t, err)

	pages := []domain.Page{
		{Number: 1, Text: strings.Repeat("A ", 300)},
		{Number: 2, Text: strings.Repeat("B ", 100)},
	}

	chunks, err := c.Chunk("report.pdf", pages)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 0, chunks[0].Order)
	assert.Equal(t, 1, chunks[1].Page)
	assert.Equal(t, 1, chunks[1].Order)

	// The second window starts inside the first and reaches page 2.
	assert.Equal(t, chunks[0].End-50, chunks[1].Start)
	assert.True(t, strings.HasPrefix(chunks[1].Text, "A"))
	assert.True(t, strings.HasSuffix(chunks[1].Text, "B"))

	assert.Equal(t, "report.pdf::p1::o0", chunks[0].ID)
	for _, ch := range chunks {
		assert.Equal(t, "report.pdf", ch.Source)
		assert.LessOrEqual(t, len([]rune(ch.Text)), 500)
	}
}

func TestWindowChunker_Invariants(t *testing.T) {
	c, err := NewWindowChunker(UnitChar, 120, 20, nil)
	require.NoError(t, err)

	words := []string{"retrieval", "augmented", "generation", "over", "pdf", "pages", "with", "overlap"}
	var pages []domain.Page
	for p := 1; p <= 4; p++ {
		var sb strings.Builder
		for i := 0; i < 60; i++ {
			sb.WriteString(words[(i+p)%len(words)])
			sb.WriteByte(' ')
		}
		pages = append(pages, domain.Page{Number: p, Text: sb.String()})
	}

	chunks, err := c.Chunk("doc.pdf", pages)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 4)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.Order, "orders are contiguous from zero")
		assert.NotEmpty(t, strings.TrimSpace(ch.Text))
		assert.LessOrEqual(t, ch.End-ch.Start, 120)
		if i == 0 {
			continue
		}
		prev := chunks[i-1]
		assert.GreaterOrEqual(t, ch.Page, prev.Page, "pages never decrease")
		assert.Greater(t, ch.Start, prev.Start, "windows always advance")
		assert.GreaterOrEqual(t, ch.Start, prev.End-20, "overlap never exceeds the configured amount")
	}
	assert.Equal(t, 4, chunks[len(chunks)-1].Page)
}

func TestWindowChunker_DoesNotSplitWords(t *testing.T) {
	c, err := NewWindowChunker(UnitChar, 30, 5, nil)
	require.NoError(t, err)

	text := "alpha bravo charlie delta echo foxtrot golf hotel india juliet kilo lima"
	chunks, err := c.Chunk("a.pdf", []domain.Page{{Number: 1, Text: text}})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	vocab := make(map[string]bool)
	for _, w := range strings.Fields(text) {
		vocab[w] = true
	}
	for _, ch := range chunks {
		for _, w := range strings.Fields(ch.Text) {
			assert.True(t, vocab[w], "chunk %d contains a partial word %q", ch.Order, w)
		}
	}
}

func TestWindowChunker_EmptyPages(t *testing.T) {
	c, err := NewWindowChunker(UnitChar, 100, 10, nil)
	require.NoError(t, err)

	chunks, err := c.Chunk("blank.pdf", []domain.Page{{Number: 1, Text: ""}, {Number: 2, Text: "  \n\t "}})
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = c.Chunk("late.pdf", []domain.Page{{Number: 1, Text: " "}, {Number: 2, Text: "hello world"}})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 2, chunks[0].Page)
	assert.Equal(t, "hello world", chunks[0].Text)
}

func TestWindowChunker_LongWordIsCut(t *testing.T) {
	c, err := NewWindowChunker(UnitChar, 10, 2, nil)
	require.NoError(t, err)

	chunks, err := c.Chunk("w.pdf", []domain.Page{{Number: 1, Text: "abcdefghijklmnopqrstuvwxyz"}})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "abcdefghij", chunks[0].Text)
	assert.Equal(t, "uvwxyz", chunks[2].Text)
}

func TestWindowChunker_TokenUnit(t *testing.T) {
	c, err := NewWindowChunker(UnitToken, 3, 1, analyzer.NewTokenizer(0))
	require.NoError(t, err)

	chunks, err := c.Chunk("t.pdf", []domain.Page{
		{Number: 1, Text: "one two three"},
		{Number: 2, Text: "four five six"},
	})
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "one two three", chunks[0].Text)
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, "three\nfour five", chunks[1].Text)
	assert.Equal(t, 1, chunks[1].Page)
	assert.Equal(t, "five six", chunks[2].Text)
	assert.Equal(t, 2, chunks[2].Page)

	assert.Equal(t, 2, chunks[1].Start)
	assert.Equal(t, 6, chunks[2].End)
}

type stubExtractor struct {
	pages []domain.Page
	err   error
}

func (s stubExtractor) Extract(_ context.Context, _ io.ReaderAt, _ int64) ([]domain.Page, error) {
	return s.pages, s.err
}

func TestDocumentChunker(t *testing.T) {
	wc, err := NewWindowChunker(UnitChar, 100, 10, nil)
	require.NoError(t, err)

	dc := NewDocumentChunker(stubExtractor{pages: []domain.Page{{Number: 1, Text: "some text"}}}, wc)
	chunks, err := dc.ChunkDocument(context.Background(), "x.pdf", strings.NewReader(""), 0)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "x.pdf", chunks[0].Source)

	dc = NewDocumentChunker(stubExtractor{err: domain.ErrDocumentParse}, wc)
	_, err = dc.ChunkDocument(context.Background(), "bad.pdf", strings.NewReader(""), 0)
	assert.ErrorIs(t, err, domain.ErrDocumentParse)
}
