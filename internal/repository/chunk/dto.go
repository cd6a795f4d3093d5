package chunk

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/kailas-cloud/counsel/internal/domain"
)

// buildHashFields converts an embedded chunk into a flat map[string]string for HSET.
func buildHashFields(c *domain.EmbeddedChunk) map[string]string {
	return map[string]string{
		"__content":      c.Text,
		"__vector":       vectorToBytes(c.Vector),
		"document_title": c.Meta.DocumentTitle,
		"act_name":       c.Meta.ActName,
		"year":           strconv.Itoa(c.Meta.Year),
		"document_type":  c.Meta.DocumentType,
		"jurisdiction":   c.Meta.Jurisdiction,
		"source_file":    c.Meta.SourceFile,
		"page_number":    strconv.Itoa(c.Meta.PageNumber),
	}
}

// parseHashFields converts a flat hash map back into an embedded chunk.
func parseHashFields(m map[string]string) domain.EmbeddedChunk {
	year, _ := strconv.Atoi(m["year"])
	page, _ := strconv.Atoi(m["page_number"])

	return domain.EmbeddedChunk{
		Chunk: domain.Chunk{
			Text: m["__content"],
			Meta: domain.Metadata{
				DocumentTitle: m["document_title"],
				ActName:       m["act_name"],
				Year:          year,
				DocumentType:  m["document_type"],
				Jurisdiction:  m["jurisdiction"],
				SourceFile:    m["source_file"],
				PageNumber:    page,
			},
		},
		Vector: bytesToVector(m["__vector"]),
	}
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
