package domain

// EmbeddingResult is a single vectorization outcome with token accounting.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}
