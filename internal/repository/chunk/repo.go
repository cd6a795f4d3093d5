package chunk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/counsel/internal/db"
	"github.com/kailas-cloud/counsel/internal/domain"
)

// store is the consumer interface for chunk persistence (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo persists embedded chunks partitioned by collection name.
type Repo struct {
	store  store
	prefix string
}

// New creates a chunk repository.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, prefix: keyPrefix}
}

func (r *Repo) metaKey(collection string) string {
	return fmt.Sprintf("%scol:%s:meta", r.prefix, collection)
}

func (r *Repo) chunkKey(collection string, gen int64, i int) string {
	return fmt.Sprintf("%scol:%s:g%d:chunk:%d", r.prefix, collection, gen, i)
}

// GetMeta loads collection metadata. Returns domain.ErrNotFound if absent.
func (r *Repo) GetMeta(ctx context.Context, collection string) (domain.CollectionMeta, error) {
	data, err := r.store.Get(ctx, r.metaKey(collection))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.CollectionMeta{}, fmt.Errorf("collection %s: %w", collection, domain.ErrNotFound)
		}
		return domain.CollectionMeta{}, fmt.Errorf("get meta: %w", err)
	}

	var meta domain.CollectionMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return domain.CollectionMeta{}, fmt.Errorf("parse meta: %w", err)
	}
	return meta, nil
}

// Replace atomically swaps the collection contents: chunks are written under
// a fresh generation, then the meta key is pointed at it, then stale
// generations are dropped. Readers resolve keys through the meta and so see
// either the old set or the new one, never a mix.
func (r *Repo) Replace(ctx context.Context, meta domain.CollectionMeta, chunks []domain.EmbeddedChunk) error {
	items := make([]db.HashSetItem, len(chunks))
	for i := range chunks {
		items[i] = db.HashSetItem{
			Key:    r.chunkKey(meta.Name, meta.Generation, i),
			Fields: buildHashFields(&chunks[i]),
		}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("write chunks: %w", err)
	}

	meta.TotalChunks = len(chunks)
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	if err := r.store.Set(ctx, r.metaKey(meta.Name), data); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}

	return r.dropStaleGenerations(ctx, meta.Name, meta.Generation)
}

// dropStaleGenerations removes chunk keys of generations other than keep.
func (r *Repo) dropStaleGenerations(ctx context.Context, collection string, keep int64) error {
	pattern := fmt.Sprintf("%scol:%s:g*:chunk:*", r.prefix, collection)
	keys, err := r.store.Scan(ctx, pattern)
	if err != nil {
		return fmt.Errorf("scan stale chunks: %w", err)
	}

	keepPrefix := fmt.Sprintf("%scol:%s:g%d:", r.prefix, collection, keep)
	var stale []string
	for _, k := range keys {
		if len(k) < len(keepPrefix) || k[:len(keepPrefix)] != keepPrefix {
			stale = append(stale, k)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	if err := r.store.Del(ctx, stale...); err != nil {
		return fmt.Errorf("drop stale chunks: %w", err)
	}
	return nil
}

// List returns every embedded chunk of the collection in positional order.
// Returns domain.ErrNotFound if the collection does not exist.
func (r *Repo) List(ctx context.Context, collection string) ([]domain.EmbeddedChunk, error) {
	meta, err := r.GetMeta(ctx, collection)
	if err != nil {
		return nil, err
	}
	if meta.TotalChunks == 0 {
		return nil, nil
	}

	keys := make([]string, meta.TotalChunks)
	for i := range keys {
		keys[i] = r.chunkKey(collection, meta.Generation, i)
	}

	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("read chunks: %w", err)
	}

	chunks := make([]domain.EmbeddedChunk, 0, len(maps))
	for _, m := range maps {
		if len(m) == 0 {
			continue
		}
		chunks = append(chunks, parseHashFields(m))
	}
	return chunks, nil
}

// Delete removes the collection meta and all of its chunk generations.
func (r *Repo) Delete(ctx context.Context, collection string) error {
	pattern := fmt.Sprintf("%scol:%s:g*:chunk:*", r.prefix, collection)
	keys, err := r.store.Scan(ctx, pattern)
	if err != nil {
		return fmt.Errorf("scan chunks: %w", err)
	}
	keys = append(keys, r.metaKey(collection))
	if err := r.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return nil
}
