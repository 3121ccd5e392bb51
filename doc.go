// Package embedgo is an embedded vector store for Go with metadata
// filtering, pluggable embedders, and snapshot persistence.
//
// Key Features:
//
//   - Exact nearest neighbor search over cosine, euclidean, and dot
//     product metrics with deterministic, reproducible result ordering
//   - Structured metadata per document with equality, set membership,
//     range, and boolean (AND/OR/NOT) filter predicates, accelerated by
//     roaring bitmap posting lists where possible
//   - Pluggable text embedders (OpenAI out of the box) so documents and
//     queries can be added and searched by text alone
//   - Snapshot persistence to any blob store (local disk, in-memory,
//     S3, MinIO) with pluggable codecs and compression
//   - Type-safe document payloads via generics
//
// Quick start:
//
//	store, err := embedgo.New[string](3)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	_, err = store.AddDocuments(ctx, []embedgo.Document[string]{
//	    {ID: "a", Content: "alpha", Vector: []float32{1, 0, 0}},
//	    {ID: "b", Content: "beta", Vector: []float32{0, 1, 0}},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	results, err := store.Search([]float32{1, 0, 0}).
//	    K(2).
//	    Execute(ctx)
//
// With an embedder, documents can be added and searched by text:
//
//	embedder, err := embedding.NewOpenAI()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store, err := embedgo.New[string](1536, embedgo.WithEmbedder[string](embedder))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	_, err = store.AddDocuments(ctx, []embedgo.Document[string]{
//	    {Content: "the quick brown fox"},
//	})
//
//	results, err := store.SimilaritySearch(ctx, "fast fox", 5)
package embedgo
