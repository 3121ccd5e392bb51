// Package retriever provides query-time retrieval on top of a document
// store, including maximal marginal relevance re-ranking for result
// diversity.
package retriever

import (
	"context"
	"fmt"

	"github.com/hupe1980/embedgo"
	"github.com/hupe1980/embedgo/distance"
	"github.com/hupe1980/embedgo/embedding"
	"github.com/hupe1980/embedgo/metadata"
)

// Options contains options for creating a retriever.
type Options struct {
	// Embedder vectorizes text queries. Required for Retrieve; optional
	// when only RetrieveByVector is used.
	Embedder embedding.Embedder

	// Lambda balances relevance against diversity during maximal marginal
	// relevance re-ranking, in [0, 1]. 1 disables re-ranking and returns
	// plain nearest neighbors. 0 ranks purely by diversity.
	Lambda float32

	// FetchMultiplier controls the candidate pool for re-ranking: for a
	// request of k results, FetchMultiplier*k candidates are fetched
	// before re-ranking. Ignored when Lambda is 1.
	FetchMultiplier int

	// Filter restricts retrieval to documents matching the predicate.
	Filter metadata.Predicate
}

// Retriever retrieves documents from a store by text or vector query.
type Retriever[T any] struct {
	store *embedgo.Store[T]
	opts  Options
}

// New creates a retriever over the given store.
func New[T any](store *embedgo.Store[T], optFns ...func(o *Options)) (*Retriever[T], error) {
	opts := Options{
		Lambda:          1,
		FetchMultiplier: 4,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Lambda < 0 || opts.Lambda > 1 {
		return nil, fmt.Errorf("%w: lambda must be in [0, 1], got %v", embedgo.ErrConfiguration, opts.Lambda)
	}

	if opts.FetchMultiplier < 1 {
		return nil, fmt.Errorf("%w: fetch multiplier must be at least 1, got %d", embedgo.ErrConfiguration, opts.FetchMultiplier)
	}

	return &Retriever[T]{
		store: store,
		opts:  opts,
	}, nil
}

// Retrieve embeds the query text and returns the k best documents.
func (r *Retriever[T]) Retrieve(ctx context.Context, query string, k int) ([]embedgo.ScoredDocument[T], error) {
	if r.opts.Embedder == nil {
		return nil, embedgo.ErrNoEmbedder
	}

	vectors, err := r.opts.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", embedgo.ErrEmbedding, err)
	}

	return r.RetrieveByVector(ctx, vectors[0], k)
}

// RetrieveByVector returns the k best documents for the query vector. With
// Lambda below 1 a larger candidate pool is fetched and re-ranked for
// diversity.
func (r *Retriever[T]) RetrieveByVector(ctx context.Context, query []float32, k int) ([]embedgo.ScoredDocument[T], error) {
	if k <= 0 {
		return nil, embedgo.ErrInvalidK
	}

	if r.store.Len() == 0 {
		return nil, embedgo.ErrEmptyIndex
	}

	withFilter := func(o *embedgo.SearchOptions) {
		o.Filter = r.opts.Filter
	}

	if r.opts.Lambda == 1 {
		return r.store.SimilaritySearchByVector(ctx, query, k, withFilter)
	}

	fetchK := k * r.opts.FetchMultiplier

	candidates, err := r.store.SimilaritySearchByVector(ctx, query, fetchK, withFilter)
	if err != nil {
		return nil, err
	}

	return r.rerank(ctx, query, candidates, k)
}

// rerank applies maximal marginal relevance over the candidate pool.
func (r *Retriever[T]) rerank(ctx context.Context, query []float32, candidates []embedgo.ScoredDocument[T], k int) ([]embedgo.ScoredDocument[T], error) {
	if len(candidates) <= 1 {
		return candidates, nil
	}

	metric := r.store.Metric()

	// Stored vectors are already normalized for cosine stores; the query
	// must match their form for similarities to be comparable.
	if metric == distance.MetricCosine {
		if normalized, ok := distance.NormalizeL2Copy(query); ok {
			query = normalized
		}
	}

	kept := candidates[:0]
	vectors := make([][]float32, 0, len(candidates))

	for _, cand := range candidates {
		vec, err := r.store.VectorByDocumentID(ctx, cand.ID)
		if err != nil {
			// Deleted between search and re-rank.
			continue
		}

		kept = append(kept, cand)
		vectors = append(vectors, vec)
	}

	selected := maximalMarginalRelevance(metric, query, vectors, r.opts.Lambda, k)

	results := make([]embedgo.ScoredDocument[T], 0, len(selected))
	for _, i := range selected {
		results = append(results, kept[i])
	}

	return results, nil
}
