package index

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/counsel/internal/domain"
)

type mockRepo struct {
	mu     sync.Mutex
	meta   map[string]domain.CollectionMeta
	chunks map[string][]domain.EmbeddedChunk

	getMetaErr error
	replaceErr error
	listErr    error

	replaceCalls int
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		meta:   make(map[string]domain.CollectionMeta),
		chunks: make(map[string][]domain.EmbeddedChunk),
	}
}

func (m *mockRepo) GetMeta(_ context.Context, collection string) (domain.CollectionMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getMetaErr != nil {
		return domain.CollectionMeta{}, m.getMetaErr
	}
	meta, ok := m.meta[collection]
	if !ok {
		return domain.CollectionMeta{}, domain.ErrNotFound
	}
	return meta, nil
}

func (m *mockRepo) Replace(_ context.Context, meta domain.CollectionMeta, chunks []domain.EmbeddedChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceCalls++
	if m.replaceErr != nil {
		return m.replaceErr
	}
	meta.TotalChunks = len(chunks)
	m.meta[meta.Name] = meta
	m.chunks[meta.Name] = chunks
	return nil
}

func (m *mockRepo) List(_ context.Context, collection string) ([]domain.EmbeddedChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	if _, ok := m.meta[collection]; !ok {
		return nil, domain.ErrNotFound
	}
	return m.chunks[collection], nil
}

func (m *mockRepo) Delete(_ context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.meta, collection)
	delete(m.chunks, collection)
	return nil
}

// mockEmbedder maps known texts to fixed vectors so similarity ordering
// in tests is deterministic. Unknown texts embed to the fallback vector.
type mockEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
	err      error

	mu         sync.Mutex
	embedCalls int
	batchCalls int
}

func newMockEmbedder(vectors map[string][]float32) *mockEmbedder {
	return &mockEmbedder{vectors: vectors, fallback: []float32{0, 0, 1}}
}

func (m *mockEmbedder) vectorFor(text string) []float32 {
	if v, ok := m.vectors[text]; ok {
		return v
	}
	return m.fallback
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	m.embedCalls++
	m.mu.Unlock()
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vectorFor(text)}, nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batchCalls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = m.vectorFor(text)
	}
	return out, nil
}

func (m *mockEmbedder) Model() string { return "test-embedding-model" }

type mockLoader struct {
	docs []domain.Document
	err  error
}

func (m *mockLoader) Load(_ context.Context, _ string) ([]domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.docs, nil
}

type mockChunker struct{}

// Chunk emits one chunk per page, carrying the page text verbatim.
func (mockChunker) Chunk(docs []domain.Document) []domain.Chunk {
	var chunks []domain.Chunk
	for _, doc := range docs {
		for _, page := range doc.Pages {
			meta := doc.Meta
			meta.PageNumber = page.Number
			chunks = append(chunks, domain.Chunk{Text: page.Text, Meta: meta})
		}
	}
	return chunks
}

func testDocs(pages ...string) []domain.Document {
	doc := domain.Document{
		Meta: domain.Metadata{
			DocumentTitle: "Test Act 2025",
			SourceFile:    "test_act.pdf",
		},
	}
	for i, text := range pages {
		doc.Pages = append(doc.Pages, domain.Page{Number: i + 1, Text: text})
	}
	return []domain.Document{doc}
}

func newTestService(repo Repository, embed Embedder, loader Loader) *Service {
	return New(repo, embed, loader, mockChunker{}, Config{
		FetchK:      10,
		MMRLambda:   0.5,
		BatchSize:   2,
		Concurrency: 2,
	}, zap.NewNop())
}
