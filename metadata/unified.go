// Package metadata provides typed metadata documents, predicate filtering,
// and a Roaring-bitmap inverted index for hybrid vector + metadata search.
package metadata

import (
	"math"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// UnifiedIndex combines metadata storage with inverted indexing using Roaring
// Bitmaps.
//
// Architecture:
//   - Primary storage: map[uint32]Document (metadata by internal ID)
//   - Inverted index: map[field]map[valueKey]*roaring.Bitmap (posting lists)
//   - Universe bitmap of all stored IDs, for complement (NOT) compilation
//
// Filters compile to bitmap algebra when possible (pre-filtering) and fall
// back to per-document evaluation otherwise (post-filtering). Both paths
// produce identical result sets; only the cost differs.
type UnifiedIndex struct {
	mu sync.RWMutex

	documents map[uint32]Document
	inverted  map[string]map[string]*roaring.Bitmap
	all       *roaring.Bitmap
}

// NewUnifiedIndex creates a new unified metadata index.
func NewUnifiedIndex() *UnifiedIndex {
	return &UnifiedIndex{
		documents: make(map[uint32]Document),
		inverted:  make(map[string]map[string]*roaring.Bitmap),
		all:       roaring.New(),
	}
}

// Set stores metadata for an ID and updates the inverted index.
// This replaces any existing metadata for the ID. A nil document still
// registers the ID so that complements and empty-filter scans see it.
func (ui *UnifiedIndex) Set(id uint32, doc Document) {
	ui.mu.Lock()
	defer ui.mu.Unlock()

	if oldDoc, exists := ui.documents[id]; exists {
		ui.removeFromIndexLocked(id, oldDoc)
	}

	if doc == nil {
		doc = Document{}
	}
	ui.documents[id] = doc
	ui.all.Add(id)

	ui.addToIndexLocked(id, doc)
}

// Get retrieves metadata for an ID.
func (ui *UnifiedIndex) Get(id uint32) (Document, bool) {
	ui.mu.RLock()
	defer ui.mu.RUnlock()

	doc, ok := ui.documents[id]
	return doc, ok
}

// Delete removes metadata for an ID and updates the inverted index.
func (ui *UnifiedIndex) Delete(id uint32) {
	ui.mu.Lock()
	defer ui.mu.Unlock()

	if doc, exists := ui.documents[id]; exists {
		ui.removeFromIndexLocked(id, doc)
	}

	delete(ui.documents, id)
	ui.all.Remove(id)
}

// Len returns the number of documents in the index.
func (ui *UnifiedIndex) Len() int {
	ui.mu.RLock()
	defer ui.mu.RUnlock()

	return len(ui.documents)
}

// ToMap returns a copy of all documents as a map.
// This is used for serialization and snapshot creation.
func (ui *UnifiedIndex) ToMap() map[uint32]Document {
	ui.mu.RLock()
	defer ui.mu.RUnlock()

	result := make(map[uint32]Document, len(ui.documents))
	for id, doc := range ui.documents {
		result[id] = doc
	}
	return result
}

// LoadMap replaces the index contents with the given documents, rebuilding
// the inverted index. Used when restoring from a snapshot.
func (ui *UnifiedIndex) LoadMap(docs map[uint32]Document) {
	ui.mu.Lock()
	defer ui.mu.Unlock()

	ui.documents = make(map[uint32]Document, len(docs))
	ui.inverted = make(map[string]map[string]*roaring.Bitmap)
	ui.all = roaring.New()

	for id, doc := range docs {
		if doc == nil {
			doc = Document{}
		}
		ui.documents[id] = doc
		ui.all.Add(id)
		ui.addToIndexLocked(id, doc)
	}
}

// addToIndexLocked adds a document to the inverted index.
// Caller must hold ui.mu.Lock().
func (ui *UnifiedIndex) addToIndexLocked(id uint32, doc Document) {
	for key, value := range doc {
		valueMap, ok := ui.inverted[key]
		if !ok {
			valueMap = make(map[string]*roaring.Bitmap)
			ui.inverted[key] = valueMap
		}

		valueKey := value.Key()
		bitmap, ok := valueMap[valueKey]
		if !ok {
			bitmap = roaring.New()
			valueMap[valueKey] = bitmap
		}

		bitmap.Add(id)
	}
}

// removeFromIndexLocked removes a document from the inverted index.
// Caller must hold ui.mu.Lock().
func (ui *UnifiedIndex) removeFromIndexLocked(id uint32, doc Document) {
	for key, value := range doc {
		valueMap, ok := ui.inverted[key]
		if !ok {
			continue
		}

		valueKey := value.Key()
		bitmap, ok := valueMap[valueKey]
		if !ok {
			continue
		}

		bitmap.Remove(id)

		if bitmap.IsEmpty() {
			delete(valueMap, valueKey)
			if len(valueMap) == 0 {
				delete(ui.inverted, key)
			}
		}
	}
}

// CompileFilter compiles a predicate tree into a bitmap of matching IDs.
//
// Supported for compilation: Eq and In leaves, And/Or/Not combinators.
// Range and substring leaves cannot be lowered to posting-list algebra;
// compilation reports ok=false and the caller falls back to scanning.
func (ui *UnifiedIndex) CompileFilter(pred Predicate) (*roaring.Bitmap, bool) {
	if pred == nil {
		return nil, false
	}

	ui.mu.RLock()
	defer ui.mu.RUnlock()

	return ui.compileLocked(pred)
}

func (ui *UnifiedIndex) compileLocked(pred Predicate) (*roaring.Bitmap, bool) {
	switch p := pred.(type) {
	case *Filter:
		return ui.compileLeafLocked(p)

	case *AndPredicate:
		// Empty conjunction matches everything.
		result := ui.all.Clone()
		for _, child := range p.Preds {
			bm, ok := ui.compileLocked(child)
			if !ok {
				return nil, false
			}
			result.And(bm)
			if result.IsEmpty() {
				return result, true
			}
		}
		return result, true

	case *OrPredicate:
		result := roaring.New()
		for _, child := range p.Preds {
			bm, ok := ui.compileLocked(child)
			if !ok {
				return nil, false
			}
			result.Or(bm)
		}
		return result, true

	case *NotPredicate:
		bm, ok := ui.compileLocked(p.Pred)
		if !ok {
			return nil, false
		}
		return roaring.AndNot(ui.all, bm), true

	default:
		return nil, false
	}
}

func (ui *UnifiedIndex) compileLeafLocked(f *Filter) (*roaring.Bitmap, bool) {
	switch f.Operator {
	case OpEqual:
		return ui.eqBitmapLocked(f.Key, f.Value), true

	case OpIn:
		arr, ok := f.Value.AsArray()
		if !ok {
			return nil, false
		}
		result := roaring.New()
		for _, v := range arr {
			result.Or(ui.eqBitmapLocked(f.Key, v))
		}
		return result, true

	default:
		// Range and substring operators scan.
		return nil, false
	}
}

// eqBitmapLocked returns the posting list for key == value.
//
// Numeric equality crosses kinds (Int(1) equals Float(1.0)), while posting
// keys do not, so integral numbers consult both posting lists. This keeps
// compiled filters equivalent to predicate evaluation.
func (ui *UnifiedIndex) eqBitmapLocked(key string, value Value) *roaring.Bitmap {
	result := roaring.New()

	valueMap, ok := ui.inverted[key]
	if !ok {
		return result
	}

	if bm, ok := valueMap[value.Key()]; ok {
		result.Or(bm)
	}

	switch value.Kind {
	case KindInt:
		if bm, ok := valueMap[Float(float64(value.I64)).Key()]; ok {
			result.Or(bm)
		}
	case KindFloat:
		if i := int64(value.F64); value.F64 == math.Trunc(value.F64) {
			if bm, ok := valueMap[Int(i).Key()]; ok {
				result.Or(bm)
			}
		}
	}

	return result
}

// CreateFilterFunc creates an ID-membership function from a predicate.
//
// Fast path: the predicate compiles to a bitmap captured once, making the
// function a snapshot-consistent O(1) lookup. Slow path: each call evaluates
// the predicate against the document's current metadata.
func (ui *UnifiedIndex) CreateFilterFunc(pred Predicate) func(uint32) bool {
	if pred == nil {
		return nil
	}

	if bitmap, ok := ui.CompileFilter(pred); ok {
		return bitmap.Contains
	}

	return func(id uint32) bool {
		ui.mu.RLock()
		doc, ok := ui.documents[id]
		ui.mu.RUnlock()
		if !ok {
			return false
		}
		return pred.Matches(doc)
	}
}

// Stats returns statistics about the unified index.
type Stats struct {
	DocumentCount    int    // Total documents
	FieldCount       int    // Number of indexed fields
	BitmapCount      int    // Total number of bitmaps
	TotalCardinality uint64 // Sum of all bitmap cardinalities
	MemoryBytes      uint64 // Estimated memory usage
}

// GetStats returns statistics about the index.
func (ui *UnifiedIndex) GetStats() Stats {
	ui.mu.RLock()
	defer ui.mu.RUnlock()

	stats := Stats{
		DocumentCount: len(ui.documents),
		FieldCount:    len(ui.inverted),
	}

	for _, valueMap := range ui.inverted {
		for _, bitmap := range valueMap {
			stats.BitmapCount++
			stats.TotalCardinality += bitmap.GetCardinality()
			stats.MemoryBytes += bitmap.GetSizeInBytes()
		}
	}

	stats.MemoryBytes += uint64(len(ui.documents) * 64) // Conservative estimate

	return stats
}
