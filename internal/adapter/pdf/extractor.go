// Package pdf extracts per-page text from PDF documents.
package pdf

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

// Extractor reads page text in visual reading order: lines top to bottom,
// fragments within a line left to right.
type Extractor struct{}

var _ port.PageExtractor = (*Extractor)(nil)

// NewExtractor creates a PDF page extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns one Page per PDF page, numbered from 1. Pages without text
// are returned with empty Text. Any parse failure fails the whole document.
func (e *Extractor) Extract(ctx context.Context, r io.ReaderAt, size int64) (pages []domain.Page, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			pages = nil
			err = fmt.Errorf("%w: %v", domain.ErrDocumentParse, rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDocumentParse, err)
	}

	n := reader.NumPage()
	pages = make([]domain.Page, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, domain.Page{Number: i})
			continue
		}
		pages = append(pages, domain.Page{
			Number: i,
			Text:   layoutText(page.Content().Text),
		})
	}

	return pages, nil
}

type line struct {
	y     float64
	size  float64
	texts []pdf.Text
}

// layoutText groups glyph fragments into lines by baseline and joins them
// in reading order. Word gaps are recovered from horizontal distance since
// the content stream does not carry space glyphs.
func layoutText(texts []pdf.Text) string {
	if len(texts) == 0 {
		return ""
	}

	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Y > sorted[j].Y
	})

	var lines []*line
	for _, t := range sorted {
		if t.S == "" {
			continue
		}
		if n := len(lines); n > 0 && math.Abs(lines[n-1].y-t.Y) <= lineTolerance(lines[n-1].size, t.FontSize) {
			lines[n-1].texts = append(lines[n-1].texts, t)
			continue
		}
		lines = append(lines, &line{y: t.Y, size: t.FontSize, texts: []pdf.Text{t}})
	}

	var sb strings.Builder
	for i, l := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sort.SliceStable(l.texts, func(a, b int) bool {
			return l.texts[a].X < l.texts[b].X
		})

		for j, t := range l.texts {
			if j > 0 {
				prev := l.texts[j-1]
				gap := t.X - (prev.X + prev.W)
				if gap > wordGap(t.FontSize) && !strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(t.S, " ") {
					sb.WriteByte(' ')
				}
			}
			sb.WriteString(t.S)
		}
	}

	return strings.TrimSpace(sb.String())
}

func lineTolerance(a, b float64) float64 {
	return math.Max(math.Max(a, b)*0.5, 1)
}

func wordGap(fontSize float64) float64 {
	return math.Max(fontSize*0.2, 0.5)
}
