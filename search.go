package embedgo

import (
	"context"

	"github.com/hupe1980/embedgo/metadata"
)

// Search creates a fluent search builder for the given query vector.
//
// Example:
//
//	results, err := store.Search(query).
//	    K(10).
//	    Filter(metadata.Eq("lang", metadata.String("en"))).
//	    Execute(ctx)
func (s *Store[T]) Search(query []float32) *SearchBuilder[T] {
	return &SearchBuilder[T]{
		store: s,
		query: query,
		k:     10, // Default k
	}
}

// SearchText creates a fluent search builder that embeds the query text on
// execution.
func (s *Store[T]) SearchText(query string) *SearchBuilder[T] {
	return &SearchBuilder[T]{
		store: s,
		text:  query,
		byTxt: true,
		k:     10,
	}
}

// SearchBuilder is a fluent builder for constructing similarity searches.
type SearchBuilder[T any] struct {
	store *Store[T]
	query []float32
	text  string
	byTxt bool
	k     int

	filter metadata.Predicate
}

// K sets the number of results to return.
func (sb *SearchBuilder[T]) K(k int) *SearchBuilder[T] {
	sb.k = k
	return sb
}

// Filter restricts results to documents matching the metadata predicate.
func (sb *SearchBuilder[T]) Filter(pred metadata.Predicate) *SearchBuilder[T] {
	sb.filter = pred
	return sb
}

// Execute runs the search and returns results ordered best first.
func (sb *SearchBuilder[T]) Execute(ctx context.Context) ([]ScoredDocument[T], error) {
	withFilter := func(o *SearchOptions) {
		o.Filter = sb.filter
	}

	if sb.byTxt {
		return sb.store.SimilaritySearch(ctx, sb.text, sb.k, withFilter)
	}

	return sb.store.SimilaritySearchByVector(ctx, sb.query, sb.k, withFilter)
}

// MustExecute runs the search, panicking on error.
// Use this only in tests or when you're certain the query is valid.
func (sb *SearchBuilder[T]) MustExecute(ctx context.Context) []ScoredDocument[T] {
	results, err := sb.Execute(ctx)
	if err != nil {
		panic(err)
	}

	return results
}

// First returns only the best result, or ErrNotFound if nothing matches.
func (sb *SearchBuilder[T]) First(ctx context.Context) (ScoredDocument[T], error) {
	sb.k = 1

	results, err := sb.Execute(ctx)
	if err != nil {
		return ScoredDocument[T]{}, err
	}
	if len(results) == 0 {
		return ScoredDocument[T]{}, ErrNotFound
	}

	return results[0], nil
}

// Count executes the search and returns the number of results.
func (sb *SearchBuilder[T]) Count(ctx context.Context) (int, error) {
	results, err := sb.Execute(ctx)
	if err != nil {
		return 0, err
	}

	return len(results), nil
}

// Exists checks if at least one result matches the search.
func (sb *SearchBuilder[T]) Exists(ctx context.Context) (bool, error) {
	sb.k = 1

	results, err := sb.Execute(ctx)
	if err != nil {
		return false, err
	}

	return len(results) > 0, nil
}
