package domain

// CollectionMeta describes a persisted chunk collection.
type CollectionMeta struct {
	Name           string `json:"name"`
	TotalChunks    int    `json:"total_chunks"`
	EmbeddingModel string `json:"embedding_model"`
	// CorpusHash invalidates the collection when source documents change.
	CorpusHash string `json:"corpus_hash"`
	// Generation partitions chunk keys so a rebuild never mixes with the
	// set a concurrent reader resolved through the previous meta.
	Generation int64 `json:"generation"`
	BuiltAt    int64 `json:"built_at"`
}
