package domain

// RetrievalResult is one ranked hit: chunk text, provenance, and the score
// assigned by the active ranking. Constructed per query, never persisted.
type RetrievalResult struct {
	Content string   `json:"content"`
	Meta    Metadata `json:"metadata"`
	Score   float64  `json:"score"`
}

// CollectionStats is read-only introspection over a persisted collection.
type CollectionStats struct {
	Collection     string `json:"collection_name"`
	TotalChunks    int    `json:"total_chunks"`
	EmbeddingModel string `json:"embedding_model"`
}
