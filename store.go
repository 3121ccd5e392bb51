package embedgo

import (
	"context"
	"fmt"
	"hash/fnv"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/embedgo/codec"
	"github.com/hupe1980/embedgo/distance"
	"github.com/hupe1980/embedgo/embedding"
	"github.com/hupe1980/embedgo/index"
	"github.com/hupe1980/embedgo/index/flat"
	"github.com/hupe1980/embedgo/metadata"
	"github.com/hupe1980/embedgo/snapshot"
)

// numStripes is the size of the per-document lock table. Mutations to the
// same document ID serialize on its stripe; different IDs usually proceed in
// parallel.
const numStripes = 64

// Store is an embedding-indexed document store. Documents carry a caller
// payload, typed metadata, and a vector; searches combine exact nearest
// neighbor ranking with metadata predicates.
//
// Reads run against an immutable index snapshot, so a search never observes
// a half-applied mutation. Mutations to the same document ID serialize;
// mutations to different IDs may interleave.
type Store[T any] struct {
	index     index.Index
	meta      *metadata.UnifiedIndex
	dimension int
	metric    distance.Metric

	embedder    embedding.Embedder
	textFunc    func(T) string
	codec       codec.Codec
	compression snapshot.Compression
	metrics     MetricsCollector
	logger      *Logger

	mu       sync.RWMutex // guards ids, rev, payloads
	ids      map[string]uint32
	rev      map[uint32]string
	payloads map[uint32]T

	stripes [numStripes]sync.Mutex

	// Mutation publication counters. A search pairs a compiled metadata
	// filter with one vector index state; these counters let it detect a
	// mutation published between the two and retry, so every search
	// observes either the pre- or post-state of a concurrent mutation.
	inflight  atomic.Int64
	completed atomic.Uint64
}

// New creates a store for vectors of the given dimension. The metric
// defaults to cosine; see WithMetric.
func New[T any](dimension int, optFns ...Option[T]) (*Store[T], error) {
	opts := applyOptions(optFns)

	idx, err := flat.New(func(o *flat.Options) {
		o.Dimension = dimension
		o.Metric = opts.metric
	})
	if err != nil {
		return nil, translateError(err)
	}

	return &Store[T]{
		index:       idx,
		meta:        metadata.NewUnifiedIndex(),
		dimension:   dimension,
		metric:      opts.metric,
		embedder:    opts.embedder,
		textFunc:    opts.textFunc,
		codec:       opts.codec,
		compression: opts.compression,
		metrics:     opts.metricsCollector,
		logger:      opts.logger,
		ids:         make(map[string]uint32),
		rev:         make(map[uint32]string),
		payloads:    make(map[uint32]T),
	}, nil
}

// Dimension returns the vector dimension the store accepts.
func (s *Store[T]) Dimension() int { return s.dimension }

// Metric returns the similarity metric the store ranks with.
func (s *Store[T]) Metric() distance.Metric { return s.metric }

// Len returns the number of live documents.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.ids)
}

func (s *Store[T]) stripe(docID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(docID))

	return &s.stripes[h.Sum32()%numStripes]
}

func (s *Store[T]) beginMutation() {
	s.inflight.Add(1)
}

func (s *Store[T]) endMutation() {
	// Bump completed before releasing inflight so a reader never sees an
	// idle store with an unreported mutation.
	s.completed.Add(1)
	s.inflight.Add(-1)
}

// AddDocuments adds or replaces documents and returns their IDs in input
// order. Documents without vectors are embedded first; documents without IDs
// get generated UUIDs. The batch is validated up front: if any document
// fails embedding or dimension checks, no document from the batch is
// applied.
func (s *Store[T]) AddDocuments(ctx context.Context, docs []Document[T]) (ids []string, err error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordAdd(len(docs), time.Since(start), err)
		s.logger.LogAdd(ctx, len(docs), err)
	}()

	if len(docs) == 0 {
		return nil, nil
	}

	ids = make([]string, len(docs))
	for i, doc := range docs {
		if doc.ID == "" {
			ids[i] = uuid.NewString()
		} else {
			ids[i] = doc.ID
		}
	}

	vectors, err := s.resolveVectors(ctx, docs)
	if err != nil {
		return nil, err
	}

	for i, vec := range vectors {
		if len(vec) != s.dimension {
			return nil, fmt.Errorf("document %q: %w", ids[i],
				&ErrDimensionMismatch{Expected: s.dimension, Actual: len(vec)})
		}
		if s.metric == distance.MetricCosine && distance.Dot(vec, vec) == 0 {
			return nil, fmt.Errorf("document %q: cannot normalize zero vector", ids[i])
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Every vector is validated, so no upsert below can fail. The apply
	// loop ignores cancellation: either the whole batch lands or none of
	// it does.
	applyCtx := context.WithoutCancel(ctx)
	for i, doc := range docs {
		if err := s.applyUpsert(applyCtx, ids[i], doc, vectors[i]); err != nil {
			return nil, fmt.Errorf("document %q: %w", ids[i], err)
		}
	}

	return ids, nil
}

// resolveVectors returns one vector per document, embedding the documents
// that were added without one.
func (s *Store[T]) resolveVectors(ctx context.Context, docs []Document[T]) ([][]float32, error) {
	vectors := make([][]float32, len(docs))

	var (
		missing []int
		texts   []string
	)

	for i, doc := range docs {
		if doc.Vector != nil {
			vectors[i] = doc.Vector
			continue
		}

		missing = append(missing, i)
		texts = append(texts, s.textFunc(doc.Content))
	}

	if len(missing) == 0 {
		return vectors, nil
	}

	if s.embedder == nil {
		return nil, ErrNoEmbedder
	}

	embedded, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(embedded) != len(missing) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbedding, len(embedded), len(missing))
	}

	for j, i := range missing {
		vectors[i] = embedded[j]
	}

	return vectors, nil
}

// applyUpsert inserts or replaces a single document under its stripe lock.
func (s *Store[T]) applyUpsert(ctx context.Context, docID string, doc Document[T], vec []float32) error {
	stripe := s.stripe(docID)
	stripe.Lock()
	defer stripe.Unlock()

	s.mu.RLock()
	internal, exists := s.ids[docID]
	s.mu.RUnlock()

	s.beginMutation()
	defer s.endMutation()

	if exists {
		// Replacing in place keeps the internal ID stable, so an
		// in-flight search sees either the old or the new vector.
		if err := s.index.Update(ctx, internal, vec); err != nil {
			return translateError(err)
		}
	} else {
		var err error
		internal, err = s.index.Insert(ctx, vec)
		if err != nil {
			return translateError(err)
		}
	}

	s.meta.Set(internal, doc.Metadata.Clone())

	s.mu.Lock()
	s.ids[docID] = internal
	s.rev[internal] = docID
	s.payloads[internal] = doc.Content
	s.mu.Unlock()

	return nil
}

// DeleteDocuments removes documents by ID and returns how many existed.
// Unknown IDs are skipped.
func (s *Store[T]) DeleteDocuments(ctx context.Context, docIDs []string) (deleted int, err error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordDelete(len(docIDs), deleted, time.Since(start), err)
		s.logger.LogDelete(ctx, len(docIDs), deleted, err)
	}()

	for _, docID := range docIDs {
		removed, derr := s.deleteOne(ctx, docID)
		if derr != nil {
			return deleted, derr
		}
		if removed {
			deleted++
		}
	}

	return deleted, nil
}

func (s *Store[T]) deleteOne(ctx context.Context, docID string) (bool, error) {
	stripe := s.stripe(docID)
	stripe.Lock()
	defer stripe.Unlock()

	s.mu.RLock()
	internal, exists := s.ids[docID]
	s.mu.RUnlock()

	if !exists {
		return false, nil
	}

	s.beginMutation()
	defer s.endMutation()

	if err := s.index.Delete(ctx, internal); err != nil {
		return false, translateError(err)
	}

	s.meta.Delete(internal)

	s.mu.Lock()
	delete(s.ids, docID)
	delete(s.rev, internal)
	delete(s.payloads, internal)
	s.mu.Unlock()

	return true, nil
}

// GetDocument returns the stored document for an ID.
func (s *Store[T]) GetDocument(docID string) (Document[T], error) {
	s.mu.RLock()
	internal, exists := s.ids[docID]
	content := s.payloads[internal]
	s.mu.RUnlock()

	if !exists {
		return Document[T]{}, fmt.Errorf("%w: document %q", ErrNotFound, docID)
	}

	doc := Document[T]{
		ID:      docID,
		Content: content,
	}

	if meta, ok := s.meta.Get(internal); ok && len(meta) > 0 {
		doc.Metadata = meta.Clone()
	}

	if vec, err := s.index.VectorByID(context.Background(), internal); err == nil {
		doc.Vector = vec
	}

	return doc, nil
}

// SearchOptions contains options for similarity searches.
type SearchOptions struct {
	// Filter restricts results to documents whose metadata matches the
	// predicate. Nil means no filtering.
	Filter metadata.Predicate
}

// SimilaritySearch embeds the query text and returns the k best documents,
// ordered best first.
func (s *Store[T]) SimilaritySearch(ctx context.Context, query string, k int, optFns ...func(o *SearchOptions)) ([]ScoredDocument[T], error) {
	if s.embedder == nil {
		return nil, ErrNoEmbedder
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}

	return s.SimilaritySearchByVector(ctx, vectors[0], k, optFns...)
}

// searchSnapshotRetries bounds optimistic attempts to pair a compiled
// filter with an index state while writers are active, before falling back
// to quiescing writers for one pass.
const searchSnapshotRetries = 3

// SimilaritySearchByVector returns the k documents nearest to the query
// vector, ordered best first. Scores follow the store metric: cosine
// similarity and dot product descending, squared euclidean distance
// ascending. Ties break deterministically by insertion order.
func (s *Store[T]) SimilaritySearchByVector(ctx context.Context, query []float32, k int, optFns ...func(o *SearchOptions)) (results []ScoredDocument[T], err error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordSearch(k, time.Since(start), err)
		s.logger.LogSearch(ctx, k, len(results), err)
	}()

	var opts SearchOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	for attempt := 0; attempt < searchSnapshotRetries; attempt++ {
		before := s.completed.Load()
		if s.inflight.Load() != 0 {
			runtime.Gosched()
			continue
		}

		results, err = s.searchOnce(ctx, query, k, opts.Filter)
		if err != nil {
			return nil, err
		}

		if s.inflight.Load() == 0 && s.completed.Load() == before {
			return results, nil
		}
	}

	// Writers keep racing the snapshot pairing; quiesce them for one
	// consistent pass.
	s.lockAllStripes()
	defer s.unlockAllStripes()

	results, err = s.searchOnce(ctx, query, k, opts.Filter)
	return results, err
}

// searchOnce runs one filtered scan against the current index state and
// hydrates the hits. Callers are responsible for snapshot coherence.
func (s *Store[T]) searchOnce(ctx context.Context, query []float32, k int, pred metadata.Predicate) ([]ScoredDocument[T], error) {
	searchOpts := &index.SearchOptions{
		Filter: s.meta.CreateFilterFunc(pred),
	}

	neighbors, err := s.index.KNNSearch(ctx, query, k, searchOpts)
	if err != nil {
		return nil, translateError(err)
	}

	return s.enrich(neighbors), nil
}

// enrich resolves internal search hits to full documents with scores.
// Documents deleted since the search snapshot was taken are dropped.
func (s *Store[T]) enrich(neighbors []index.SearchResult) []ScoredDocument[T] {
	results := make([]ScoredDocument[T], 0, len(neighbors))

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range neighbors {
		docID, ok := s.rev[n.ID]
		if !ok {
			continue
		}

		doc := Document[T]{
			ID:      docID,
			Content: s.payloads[n.ID],
		}
		if meta, ok := s.meta.Get(n.ID); ok && len(meta) > 0 {
			doc.Metadata = meta.Clone()
		}

		results = append(results, ScoredDocument[T]{
			Document: doc,
			Score:    distance.Score(s.metric, n.Distance),
		})
	}

	return results
}

// VectorByDocumentID returns the stored vector for a document. For cosine
// stores this is the normalized form.
func (s *Store[T]) VectorByDocumentID(ctx context.Context, docID string) ([]float32, error) {
	s.mu.RLock()
	internal, exists := s.ids[docID]
	s.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: document %q", ErrNotFound, docID)
	}

	vec, err := s.index.VectorByID(ctx, internal)
	if err != nil {
		return nil, translateError(err)
	}

	return vec, nil
}
