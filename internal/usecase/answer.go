package usecase

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

//go:embed templates/answer_prompt.txt
var answerPromptText string

var answerPrompt = template.Must(template.New("answer_prompt").Parse(answerPromptText))

// PromptData is the input of the answer prompt template.
type PromptData struct {
	Question string
	Context  []domain.Chunk
}

// AnswerUseCase synthesizes grounded answers with a language model.
type AnswerUseCase struct {
	llm           port.LLM
	previewRunes  int
	maxReferences int
	logger        *slog.Logger
}

func NewAnswerUseCase(llm port.LLM, previewRunes, maxReferences int, logger *slog.Logger) *AnswerUseCase {
	if previewRunes <= 0 {
		previewRunes = 300
	}
	if maxReferences <= 0 {
		maxReferences = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerUseCase{
		llm:           llm,
		previewRunes:  previewRunes,
		maxReferences: maxReferences,
		logger:        logger,
	}
}

// Prompt renders the grounding prompt for question over chunks, in the
// order given.
func (u *AnswerUseCase) Prompt(question string, chunks []domain.Chunk) (string, error) {
	var buf bytes.Buffer
	if err := answerPrompt.Execute(&buf, PromptData{Question: question, Context: chunks}); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return buf.String(), nil
}

// Synthesize asks the language model to answer from chunks. Empty context is
// valid; the prompt then tells the model no documents are available.
func (u *AnswerUseCase) Synthesize(ctx context.Context, question string, chunks []domain.Chunk) (*domain.Answer, error) {
	prompt, err := u.Prompt(question, chunks)
	if err != nil {
		return nil, err
	}

	text, err := u.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	u.logger.Debug("synthesized answer",
		"model", u.llm.ModelName(),
		"context_chunks", len(chunks),
		"prompt_len", len(prompt))

	return &domain.Answer{
		Text:       strings.TrimSpace(text),
		References: References(chunks, u.previewRunes, u.maxReferences),
	}, nil
}

// References builds display snippets: one per distinct chunk position,
// truncated to previewRunes with "..." appended, at most limit entries.
func References(chunks []domain.Chunk, previewRunes, limit int) []domain.Reference {
	refs := make([]domain.Reference, 0, min(len(chunks), limit))
	seen := make(map[domain.ChunkKey]struct{}, len(chunks))

	for _, c := range chunks {
		if len(refs) == limit {
			break
		}
		if _, ok := seen[c.Key()]; ok {
			continue
		}
		seen[c.Key()] = struct{}{}

		refs = append(refs, domain.Reference{
			Source:  c.Source,
			Page:    c.Page,
			Order:   c.Order,
			Snippet: preview(c.Text, previewRunes),
		})
	}
	return refs
}

func preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
