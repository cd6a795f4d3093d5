package domain

// Page is one page of a source document.
type Page struct {
	Number int
	Text   string
}

// Document is a loaded source document: ordered pages plus derived metadata.
// Documents are read-only inputs; the loader creates them, nothing mutates them.
type Document struct {
	Meta  Metadata
	Pages []Page
}

// Metadata is the denormalized provenance carried by every chunk.
type Metadata struct {
	DocumentTitle string `json:"document_title"`
	ActName       string `json:"act_name"`
	Year          int    `json:"year,omitempty"`
	DocumentType  string `json:"document_type"`
	Jurisdiction  string `json:"jurisdiction"`
	SourceFile    string `json:"source_file"`
	PageNumber    int    `json:"page_number"`
}

// Chunk is a bounded span of page text, the unit of retrieval.
// Identity is positional (source file + ordinal), not a persisted key.
type Chunk struct {
	Text string
	Meta Metadata
}

// EmbeddedChunk pairs a chunk with its embedding vector.
// Created at index-build time, never mutated afterwards.
type EmbeddedChunk struct {
	Chunk
	Vector []float32
}
