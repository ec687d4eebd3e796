package port

// Span is a half-open byte range [Start, End) of a token within its text.
type Span struct {
	Start int
	End   int
}

type Tokenizer interface {
	Spans(text string) []Span

	CountTokens(text string) int
}
