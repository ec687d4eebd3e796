package port

// Metrics records indexing and question outcomes.
type Metrics interface {
	DocumentIndexed(chunks int)
	DocumentFailed()
	QuestionAnswered(outcome string)
}
