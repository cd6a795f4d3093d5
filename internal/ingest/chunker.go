package ingest

import (
	"fmt"

	"github.com/kailas-cloud/counsel/internal/domain"
)

// Chunker splits document pages into overlapping fixed-size spans.
// Deterministic: the same documents always yield the same chunks.
type Chunker struct {
	chunkSize int
	overlap   int
}

// NewChunker creates a chunker. Requires chunkSize > 0 and 0 <= overlap < chunkSize.
func NewChunker(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap must be in [0, %d), got %d", chunkSize, overlap)
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// Chunk splits every page of every document with a sliding window.
// Consecutive chunks of the same page share the configured overlap;
// the final chunk of a page may be shorter than the chunk size.
func (c *Chunker) Chunk(docs []domain.Document) []domain.Chunk {
	var chunks []domain.Chunk
	for _, doc := range docs {
		for _, page := range doc.Pages {
			chunks = append(chunks, c.chunkPage(doc.Meta, page)...)
		}
	}
	return chunks
}

func (c *Chunker) chunkPage(meta domain.Metadata, page domain.Page) []domain.Chunk {
	runes := []rune(page.Text)
	if len(runes) == 0 {
		return nil
	}

	meta.PageNumber = page.Number

	var chunks []domain.Chunk
	start := 0
	for {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, domain.Chunk{
			Text: string(runes[start:end]),
			Meta: meta,
		})
		if end == len(runes) {
			return chunks
		}
		start = end - c.overlap
	}
}
