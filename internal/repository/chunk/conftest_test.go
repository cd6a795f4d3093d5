package chunk

import (
	"context"
	"strings"
	"testing"

	"github.com/kailas-cloud/counsel/internal/db"
	"github.com/kailas-cloud/counsel/internal/domain"
)

// fakeStore is an in-memory store implementing the consumer interface.
type fakeStore struct {
	kv     map[string][]byte
	hashes map[string]map[string]string

	hsetErr error
	getErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		kv:     make(map[string][]byte),
		hashes: make(map[string]map[string]string),
	}
}

func (f *fakeStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	if f.hsetErr != nil {
		return f.hsetErr
	}
	for _, item := range items {
		f.hashes[item.Key] = item.Fields
	}
	return nil
}

func (f *fakeStore) HGetAllMulti(_ context.Context, keys []string) ([]map[string]string, error) {
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		out[i] = f.hashes[k] // nil for missing, matching HGETALL on absent key
	}
	return out, nil
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return data, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value []byte) error {
	f.kv[key] = value
	return nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.kv, k)
		delete(f.hashes, k)
	}
	return nil
}

func (f *fakeStore) Scan(_ context.Context, pattern string) ([]string, error) {
	// Supports the "prefix*middle*" patterns the repo uses.
	parts := strings.Split(pattern, "*")
	var keys []string
	for k := range f.hashes {
		if matchParts(k, parts) {
			keys = append(keys, k)
		}
	}
	for k := range f.kv {
		if matchParts(k, parts) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func matchParts(s string, parts []string) bool {
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	for _, p := range parts[1:] {
		idx := strings.Index(s, p)
		if idx < 0 {
			return false
		}
		s = s[idx+len(p):]
	}
	return true
}

func makeChunk(t *testing.T, text string, page int, vec ...float32) domain.EmbeddedChunk {
	t.Helper()
	return domain.EmbeddedChunk{
		Chunk: domain.Chunk{
			Text: text,
			Meta: domain.Metadata{
				DocumentTitle: "Nigeria Tax Act 2025",
				ActName:       "Nigeria Tax Act 2025",
				Year:          2025,
				DocumentType:  "Act",
				Jurisdiction:  "Nigeria",
				SourceFile:    "Nigeria_Tax_Act_2025.pdf",
				PageNumber:    page,
			},
		},
		Vector: vec,
	}
}
