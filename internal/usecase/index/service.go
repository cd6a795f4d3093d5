package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/counsel/internal/domain"
)

// Config holds index service tuning.
type Config struct {
	// FetchK is the candidate pool size before the MMR re-rank.
	FetchK int
	// MMRLambda trades relevance (1.0) against diversity (→0).
	MMRLambda float64
	// BatchSize is the number of chunks per embedding request.
	BatchSize int
	// Concurrency bounds parallel embedding requests during a build.
	Concurrency int
}

// Service builds and queries embedded chunk collections.
type Service struct {
	repo    Repository
	embed   Embedder
	loader  Loader
	chunker Chunker
	cfg     Config
	logger  *zap.Logger

	mu       sync.Mutex
	building map[string]struct{}
}

// New creates an index service.
func New(repo Repository, embed Embedder, loader Loader, chunker Chunker, cfg Config, logger *zap.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.MMRLambda <= 0 || cfg.MMRLambda > 1 {
		cfg.MMRLambda = 0.5
	}
	return &Service{
		repo:     repo,
		embed:    embed,
		loader:   loader,
		chunker:  chunker,
		cfg:      cfg,
		logger:   logger,
		building: make(map[string]struct{}),
	}
}

// Build ingests sourceFolder and (re)builds the named collection.
// A build with an unchanged corpus hash is skipped unless force is set.
// Embedding is all-or-nothing: any failure aborts and nothing is persisted.
func (s *Service) Build(ctx context.Context, sourceFolder, collection string, force bool) (domain.CollectionStats, error) {
	if err := s.acquireBuild(collection); err != nil {
		return domain.CollectionStats{}, err
	}
	defer s.releaseBuild(collection)

	docs, err := s.loader.Load(ctx, sourceFolder)
	if err != nil {
		return domain.CollectionStats{}, fmt.Errorf("load documents: %w", err)
	}
	chunks := s.chunker.Chunk(docs)
	hash := corpusHash(docs)

	existing, err := s.repo.GetMeta(ctx, collection)
	switch {
	case err == nil:
		if existing.CorpusHash == hash && !force {
			s.logger.Info("corpus unchanged, skipping index build",
				zap.String("collection", collection),
				zap.Int("total_chunks", existing.TotalChunks),
			)
			return statsFromMeta(existing), nil
		}
	case errors.Is(err, domain.ErrNotFound):
		// first build
	default:
		return domain.CollectionStats{}, err
	}

	embedded, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return domain.CollectionStats{}, err
	}

	meta := domain.CollectionMeta{
		Name:           collection,
		EmbeddingModel: s.embed.Model(),
		CorpusHash:     hash,
		Generation:     time.Now().UnixNano(),
		BuiltAt:        time.Now().Unix(),
	}
	if err := s.repo.Replace(ctx, meta, embedded); err != nil {
		return domain.CollectionStats{}, fmt.Errorf("persist collection: %w", err)
	}

	s.logger.Info("index built",
		zap.String("collection", collection),
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(embedded)),
	)
	meta.TotalChunks = len(embedded)
	return statsFromMeta(meta), nil
}

// embedChunks vectorizes all chunks in bounded-concurrency batches.
func (s *Service) embedChunks(ctx context.Context, chunks []domain.Chunk) ([]domain.EmbeddedChunk, error) {
	embedded := make([]domain.EmbeddedChunk, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for start := 0; start < len(chunks); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		offset := start

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Text
			}
			vectors, err := s.embed.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed batch at %d: %w", offset, err)
			}
			for i, vec := range vectors {
				embedded[offset+i] = domain.EmbeddedChunk{Chunk: batch[i], Vector: vec}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embedded, nil
}

// Open verifies the collection exists and returns its stats.
// Returns domain.ErrNotFound if it was never built.
func (s *Service) Open(ctx context.Context, collection string) (domain.CollectionStats, error) {
	meta, err := s.repo.GetMeta(ctx, collection)
	if err != nil {
		return domain.CollectionStats{}, err
	}
	return statsFromMeta(meta), nil
}

// Stats returns read-only collection introspection.
func (s *Service) Stats(ctx context.Context, collection string) (domain.CollectionStats, error) {
	return s.Open(ctx, collection)
}

// Drop removes the collection and all of its chunks.
// Returns domain.ErrNotFound if it was never built and
// domain.ErrBuildInProgress while a build holds the collection.
func (s *Service) Drop(ctx context.Context, collection string) error {
	if err := s.acquireBuild(collection); err != nil {
		return err
	}
	defer s.releaseBuild(collection)

	if _, err := s.repo.GetMeta(ctx, collection); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, collection); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	s.logger.Info("collection dropped", zap.String("collection", collection))
	return nil
}

// Query embeds text, ranks the fetchK most similar chunks by cosine
// similarity, and MMR re-ranks them down to k for diversity.
// k<=0, an unknown collection, or an empty corpus yield an empty result.
func (s *Service) Query(ctx context.Context, collection, text string, k int) ([]domain.RetrievalResult, error) {
	if k <= 0 {
		return nil, nil
	}

	chunks, err := s.repo.List(ctx, collection)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	embResult, err := s.embed.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	query := embResult.Embedding

	fetchK := s.cfg.FetchK
	if fetchK < k {
		fetchK = 2 * k
	}

	candidates := make([]candidate, len(chunks))
	for i := range chunks {
		candidates[i] = candidate{
			rank:   i,
			sim:    cosineSimilarity(query, chunks[i].Vector),
			vector: chunks[i].Vector,
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].sim > candidates[j].sim
	})
	if len(candidates) > fetchK {
		candidates = candidates[:fetchK]
	}
	// Re-key ranks to the similarity ordering for stable tie-breaks.
	chunkAt := make([]int, len(candidates))
	for i := range candidates {
		chunkAt[i] = candidates[i].rank
		candidates[i].rank = i
	}

	picks := rerankMMR(candidates, k, s.cfg.MMRLambda)

	results := make([]domain.RetrievalResult, len(picks))
	for i, rank := range picks {
		c := chunks[chunkAt[rank]]
		results[i] = domain.RetrievalResult{
			Content: c.Text,
			Meta:    c.Meta,
			Score:   candidates[rank].sim,
		}
	}
	return results, nil
}

func (s *Service) acquireBuild(collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.building[collection]; busy {
		return fmt.Errorf("collection %s: %w", collection, domain.ErrBuildInProgress)
	}
	s.building[collection] = struct{}{}
	return nil
}

func (s *Service) releaseBuild(collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.building, collection)
}

func statsFromMeta(meta domain.CollectionMeta) domain.CollectionStats {
	return domain.CollectionStats{
		Collection:     meta.Name,
		TotalChunks:    meta.TotalChunks,
		EmbeddingModel: meta.EmbeddingModel,
	}
}

// corpusHash fingerprints the loaded corpus: file names and page text.
// Rebuilds are skipped while the hash is unchanged.
func corpusHash(docs []domain.Document) string {
	h := sha256.New()
	for _, doc := range docs {
		h.Write([]byte(doc.Meta.SourceFile))
		h.Write([]byte{0})
		for _, page := range doc.Pages {
			h.Write([]byte(page.Text))
			h.Write([]byte{0})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
