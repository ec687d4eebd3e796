package chunker

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"ragqa/internal/adapter/analyzer"
	"ragqa/internal/domain"
	"ragqa/internal/port"
)

// Unit is the measure a window size is expressed in.
type Unit string

const (
	UnitChar  Unit = "char"
	UnitToken Unit = "token"
)

// WindowChunker splits a document into overlapping fixed-size windows over
// the concatenated text of its non-empty pages.
type WindowChunker struct {
	unit      Unit
	size      int
	overlap   int
	tokenizer port.Tokenizer
}

var _ port.Chunker = (*WindowChunker)(nil)

// NewWindowChunker creates a chunker. tokenizer is only used for UnitToken;
// nil selects the default analyzer tokenizer.
func NewWindowChunker(unit Unit, size, overlap int, tokenizer port.Tokenizer) (*WindowChunker, error) {
	if unit != UnitChar && unit != UnitToken {
		return nil, fmt.Errorf("%w: unknown chunk unit %q", domain.ErrInvalidInput, unit)
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidInput, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", domain.ErrInvalidInput, size, overlap)
	}
	if tokenizer == nil {
		tokenizer = analyzer.NewTokenizer(0)
	}
	return &WindowChunker{
		unit:      unit,
		size:      size,
		overlap:   overlap,
		tokenizer: tokenizer,
	}, nil
}

// Chunk splits pages into chunks with contiguous Order from 0 and
// non-decreasing Page. Empty or whitespace-only pages contribute nothing.
func (c *WindowChunker) Chunk(source string, pages []domain.Page) ([]domain.Chunk, error) {
	doc := joinPages(pages)
	if doc.text == "" {
		return nil, nil
	}

	if c.unit == UnitToken {
		return c.chunkTokens(source, doc), nil
	}
	return c.chunkChars(source, doc), nil
}

func (c *WindowChunker) chunkChars(source string, doc joinedDoc) []domain.Chunk {
	runes := []rune(doc.text)
	n := len(runes)

	var chunks []domain.Chunk
	start := skipSpace(runes, 0)

	for start < n {
		end := start + c.size
		if end >= n {
			end = n
		} else {
			end = c.backoff(runes, start, end)
		}

		if text := strings.TrimSpace(string(runes[start:end])); text != "" {
			chunks = append(chunks, c.newChunk(source, doc.pageAt(doc.runeStarts, start), len(chunks), text, start, end))
		}
		if end >= n {
			break
		}

		next := end - c.overlap
		// Do not start a window in the middle of a word.
		for next < end && next > 0 && !unicode.IsSpace(runes[next-1]) && !unicode.IsSpace(runes[next]) {
			next++
		}
		next = skipSpace(runes, next)
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}

// backoff moves a window end back to just after the last whitespace so a
// word is not cut, as long as the window stays more than half full and
// longer than the overlap.
func (c *WindowChunker) backoff(runes []rune, start, end int) int {
	if unicode.IsSpace(runes[end]) || unicode.IsSpace(runes[end-1]) {
		return end
	}
	minFill := c.size / 2
	if minFill <= c.overlap {
		minFill = c.overlap + 1
	}
	for j := end - 1; j > start+minFill; j-- {
		if unicode.IsSpace(runes[j]) {
			return j + 1
		}
	}
	return end
}

func (c *WindowChunker) chunkTokens(source string, doc joinedDoc) []domain.Chunk {
	spans := c.tokenizer.Spans(doc.text)
	n := len(spans)

	var chunks []domain.Chunk
	start := 0

	for start < n {
		end := start + c.size
		if end > n {
			end = n
		}

		text := doc.text[spans[start].Start:spans[end-1].End]
		page := doc.pageAt(doc.byteStarts, spans[start].Start)
		chunks = append(chunks, c.newChunk(source, page, len(chunks), text, start, end))

		if end == n {
			break
		}
		start = end - c.overlap
	}

	return chunks
}

func (c *WindowChunker) newChunk(source string, page, order int, text string, start, end int) domain.Chunk {
	return domain.Chunk{
		ID:     domain.ChunkID(source, page, order),
		Text:   text,
		Source: source,
		Page:   page,
		Order:  order,
		Start:  start,
		End:    end,
	}
}

// joinedDoc is the concatenation of non-empty pages with the offset at
// which each page begins, in bytes and in runes.
type joinedDoc struct {
	text       string
	pages      []int
	byteStarts []int
	runeStarts []int
}

func joinPages(pages []domain.Page) joinedDoc {
	var doc joinedDoc
	var sb strings.Builder
	runes := 0

	for _, p := range pages {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
			runes++
		}
		doc.pages = append(doc.pages, p.Number)
		doc.byteStarts = append(doc.byteStarts, sb.Len())
		doc.runeStarts = append(doc.runeStarts, runes)
		sb.WriteString(text)
		runes += len([]rune(text))
	}

	doc.text = sb.String()
	return doc
}

// pageAt returns the page number containing offset, given page start offsets.
func (d joinedDoc) pageAt(starts []int, offset int) int {
	i := sort.Search(len(starts), func(i int) bool { return starts[i] > offset }) - 1
	if i < 0 {
		i = 0
	}
	return d.pages[i]
}

func skipSpace(runes []rune, i int) int {
	for i < len(runes) && unicode.IsSpace(runes[i]) {
		i++
	}
	return i
}
