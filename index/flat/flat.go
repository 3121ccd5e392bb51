// Package flat provides an exact (exhaustive) vector index.
//
// The flat index scores every live vector against the query, which makes
// results exact and fully reproducible. It uses a copy-on-write pattern:
// readers grab an immutable state snapshot and never block writers.
package flat

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/embedgo/distance"
	"github.com/hupe1980/embedgo/index"
	"github.com/hupe1980/embedgo/internal/queue"
)

// Compile-time check to ensure Flat satisfies the index contract.
var _ index.Index = (*Flat)(nil)

// scanChunk is the number of vectors scored between cancellation checks.
const scanChunk = 1024

// Node represents a stored vector with its internal identifier.
type Node struct {
	ID     uint32
	Vector []float32
}

// Options contains configuration options for the flat index.
type Options struct {
	// Dimension is the fixed vector dimensionality for this index.
	// It must be > 0 and is enforced for all inserts/updates/searches.
	Dimension int

	// Metric is the similarity metric, fixed for the index lifetime.
	Metric distance.Metric
}

// DefaultOptions contains the default configuration options for the flat index.
var DefaultOptions = Options{
	Dimension: 0,
	Metric:    distance.MetricCosine,
}

// indexState holds the immutable state of the index for lock-free reads.
// Nodes own their vectors, so one state pointer is a complete search snapshot.
type indexState struct {
	nodes    []*Node  // nil entries are tombstones
	freeList []uint32 // IDs available for reuse from deleted nodes
	live     int
}

// Flat represents an exact vector index.
type Flat struct {
	state        atomic.Pointer[indexState]
	writeMu      sync.Mutex // serializes writes only
	distanceFunc distance.Func
	opts         Options
}

// New creates a new flat index. Dimension and Metric are required and fixed
// at creation time.
func New(optFns ...func(o *Options)) (*Flat, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if err := index.ValidateBasicOptions(opts.Dimension, opts.Metric); err != nil {
		return nil, err
	}

	distanceFunc, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, err
	}

	f := &Flat{
		distanceFunc: distanceFunc,
		opts:         opts,
	}

	f.state.Store(&indexState{
		nodes:    make([]*Node, 0),
		freeList: make([]uint32, 0),
	})

	return f, nil
}

// Len returns the number of live vectors.
func (f *Flat) Len() int {
	return f.state.Load().live
}

// Dimension returns the configured vector dimensionality.
func (f *Flat) Dimension() int {
	return f.opts.Dimension
}

// Metric returns the similarity metric fixed at construction.
func (f *Flat) Metric() distance.Metric {
	return f.opts.Metric
}

func cloneState(st *indexState) *indexState {
	newNodes := make([]*Node, len(st.nodes))
	copy(newNodes, st.nodes)

	newFreeList := make([]uint32, len(st.freeList))
	copy(newFreeList, st.freeList)

	return &indexState{
		nodes:    newNodes,
		freeList: newFreeList,
		live:     st.live,
	}
}

// prepare validates and (for cosine) normalizes an incoming vector.
// The returned slice is always a private copy.
func (f *Flat) prepare(v []float32) ([]float32, error) {
	if len(v) == 0 {
		return nil, index.ErrEmptyVector
	}
	if len(v) != f.opts.Dimension {
		return nil, &index.ErrDimensionMismatch{Expected: f.opts.Dimension, Actual: len(v)}
	}

	if f.opts.Metric == distance.MetricCosine {
		norm, ok := distance.NormalizeL2Copy(v)
		if !ok {
			return nil, fmt.Errorf("flat: cannot normalize zero vector")
		}
		return norm, nil
	}

	vec := make([]float32, len(v))
	copy(vec, v)
	return vec, nil
}

// Insert inserts a vector into the flat index and returns its internal ID.
func (f *Flat) Insert(ctx context.Context, v []float32) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	vec, err := f.prepare(v)
	if err != nil {
		return 0, err
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	newState := cloneState(f.state.Load())

	var id uint32
	if n := len(newState.freeList); n > 0 {
		id = newState.freeList[n-1]
		newState.freeList = newState.freeList[:n-1]
		newState.nodes[id] = &Node{ID: id, Vector: vec}
	} else {
		id = uint32(len(newState.nodes))
		newState.nodes = append(newState.nodes, &Node{ID: id, Vector: vec})
	}
	newState.live++

	f.state.Store(newState)
	return id, nil
}

// Update replaces the vector stored at an existing ID.
func (f *Flat) Update(ctx context.Context, id uint32, v []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	vec, err := f.prepare(v)
	if err != nil {
		return err
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	oldState := f.state.Load()
	if int(id) >= len(oldState.nodes) {
		return &index.ErrNodeNotFound{ID: id}
	}
	if oldState.nodes[id] == nil {
		return &index.ErrNodeDeleted{ID: id}
	}

	newState := cloneState(oldState)
	// Replace the node pointer; the old one may be shared with readers
	// holding the previous immutable state.
	newState.nodes[id] = &Node{ID: id, Vector: vec}

	f.state.Store(newState)
	return nil
}

// Delete removes a vector from the flat index by tombstoning its slot.
func (f *Flat) Delete(ctx context.Context, id uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	oldState := f.state.Load()
	if int(id) >= len(oldState.nodes) {
		return &index.ErrNodeNotFound{ID: id}
	}
	if oldState.nodes[id] == nil {
		return &index.ErrNodeDeleted{ID: id}
	}

	newState := cloneState(oldState)
	newState.nodes[id] = nil
	newState.freeList = append(newState.freeList, id)
	newState.live--

	f.state.Store(newState)
	return nil
}

// VectorByID returns the vector stored for the given ID.
// The returned slice aliases index memory and must be treated as read-only.
func (f *Flat) VectorByID(ctx context.Context, id uint32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st := f.state.Load()
	if int(id) >= len(st.nodes) {
		return nil, &index.ErrNodeNotFound{ID: id}
	}
	n := st.nodes[id]
	if n == nil {
		return nil, &index.ErrNodeDeleted{ID: id}
	}
	return n.Vector, nil
}

// KNNSearch performs an exhaustive K-nearest neighbor search.
//
// The scan runs against a single immutable state snapshot, so concurrent
// mutations are either fully visible or fully invisible to one call. The
// context is checked between scan chunks; cancellation aborts the scan
// without touching index state.
func (f *Flat) KNNSearch(ctx context.Context, query []float32, k int, opts *index.SearchOptions) ([]index.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, index.ErrInvalidK
	}

	st := f.state.Load()

	if len(query) != f.opts.Dimension {
		return nil, &index.ErrDimensionMismatch{Expected: f.opts.Dimension, Actual: len(query)}
	}
	if st.live == 0 {
		return nil, nil
	}

	q := query
	if f.opts.Metric == distance.MetricCosine {
		norm, ok := distance.NormalizeL2Copy(query)
		if !ok {
			return nil, fmt.Errorf("flat: cannot normalize zero query")
		}
		q = norm
	}

	var filter func(id uint32) bool
	if opts != nil {
		filter = opts.Filter
	}

	actualK := min(k, st.live)
	topCandidates := queue.NewMax(actualK)

	for i, node := range st.nodes {
		if i%scanChunk == 0 && i > 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		if node == nil {
			continue
		}
		if filter != nil && !filter(node.ID) {
			continue
		}

		cand := queue.Item{Node: node.ID, Distance: f.distanceFunc(q, node.Vector)}

		if topCandidates.Len() < actualK {
			topCandidates.Push(cand)
			continue
		}

		if worst, _ := topCandidates.Top(); queue.Worse(worst, cand) {
			topCandidates.Pop()
			topCandidates.Push(cand)
		}
	}

	results := make([]index.SearchResult, topCandidates.Len())
	for i := topCandidates.Len() - 1; i >= 0; i-- {
		item, _ := topCandidates.Pop()
		results[i] = index.SearchResult{ID: item.Node, Distance: item.Distance}
	}
	return results, nil
}

// Entry is a persistable (ID, vector) pair.
type Entry struct {
	ID     uint32    `json:"id"`
	Vector []float32 `json:"vector"`
}

// Dump returns all live entries, ordered by ID. Vectors are returned in
// stored form (already normalized for cosine indexes).
func (f *Flat) Dump() []Entry {
	st := f.state.Load()

	entries := make([]Entry, 0, st.live)
	for _, node := range st.nodes {
		if node == nil {
			continue
		}
		entries = append(entries, Entry{ID: node.ID, Vector: node.Vector})
	}
	return entries
}

// Restore replaces the index contents with previously dumped entries.
// Vectors are taken as-is; they must originate from a Dump of an index with
// the same dimension and metric.
func (f *Flat) Restore(entries []Entry) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	maxID := -1
	for _, e := range entries {
		if len(e.Vector) != f.opts.Dimension {
			return &index.ErrDimensionMismatch{Expected: f.opts.Dimension, Actual: len(e.Vector)}
		}
		if int(e.ID) > maxID {
			maxID = int(e.ID)
		}
	}

	newState := &indexState{
		nodes: make([]*Node, maxID+1),
	}
	for _, e := range entries {
		if newState.nodes[e.ID] != nil {
			return fmt.Errorf("flat: duplicate entry for id %d", e.ID)
		}
		vec := make([]float32, len(e.Vector))
		copy(vec, e.Vector)
		newState.nodes[e.ID] = &Node{ID: e.ID, Vector: vec}
		newState.live++
	}

	// Gaps left by deleted IDs go back on the free list.
	for id := range newState.nodes {
		if newState.nodes[id] == nil {
			newState.freeList = append(newState.freeList, uint32(id))
		}
	}

	f.state.Store(newState)
	return nil
}
