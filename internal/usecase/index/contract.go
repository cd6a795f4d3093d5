package index

import (
	"context"

	"github.com/kailas-cloud/counsel/internal/domain"
)

// Repository defines the storage contract for chunk collections.
type Repository interface {
	GetMeta(ctx context.Context, collection string) (domain.CollectionMeta, error)
	Replace(ctx context.Context, meta domain.CollectionMeta, chunks []domain.EmbeddedChunk) error
	List(ctx context.Context, collection string) ([]domain.EmbeddedChunk, error)
	Delete(ctx context.Context, collection string) error
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// Loader reads source documents from a folder.
type Loader interface {
	Load(ctx context.Context, sourceFolder string) ([]domain.Document, error)
}

// Chunker splits documents into retrievable chunks.
type Chunker interface {
	Chunk(docs []domain.Document) []domain.Chunk
}
