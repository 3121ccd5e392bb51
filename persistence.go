package embedgo

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/embedgo/blobstore"
	"github.com/hupe1980/embedgo/distance"
	"github.com/hupe1980/embedgo/index/flat"
	"github.com/hupe1980/embedgo/metadata"
	"github.com/hupe1980/embedgo/snapshot"
)

// manifestVersion is bumped when the manifest schema changes.
const manifestVersion = 1

type manifest struct {
	FormatVersion int    `json:"format_version"`
	Dimension     int    `json:"dimension"`
	Metric        string `json:"metric"`
	Count         int    `json:"count"`
}

// SaveToWriter serializes the store as a snapshot. Writers are quiesced for
// the duration, so the snapshot is a consistent point-in-time image.
func (s *Store[T]) SaveToWriter(ctx context.Context, w io.Writer) (err error) {
	start := time.Now()
	count := 0
	defer func() {
		s.metrics.RecordSnapshot("save", time.Since(start), err)
		s.logger.LogSnapshot(ctx, "save", count, err)
	}()

	s.lockAllStripes()
	defer s.unlockAllStripes()

	s.mu.RLock()
	defer s.mu.RUnlock()

	count = len(s.ids)

	dumper, ok := s.index.(*flat.Flat)
	if !ok {
		return fmt.Errorf("embedgo: index type %T does not support snapshots", s.index)
	}

	sw, err := snapshot.NewWriter(w, s.codec, s.compression)
	if err != nil {
		return err
	}

	m := manifest{
		FormatVersion: manifestVersion,
		Dimension:     s.dimension,
		Metric:        s.metric.String(),
		Count:         count,
	}

	if err := sw.EncodeSection(snapshot.SectionManifest, m); err != nil {
		return err
	}
	if err := sw.EncodeSection(snapshot.SectionIndex, dumper.Dump()); err != nil {
		return err
	}
	if err := sw.EncodeSection("ids", s.rev); err != nil {
		return err
	}
	if err := sw.EncodeSection(snapshot.SectionPayloads, s.payloads); err != nil {
		return err
	}
	if err := sw.EncodeSection(snapshot.SectionMetadata, s.meta.ToMap()); err != nil {
		return err
	}

	return sw.Close()
}

// LoadFromReader reconstructs a store from a snapshot. The snapshot's
// dimension and metric are authoritative; options configure the runtime
// pieces (embedder, logger, metrics).
func LoadFromReader[T any](ctx context.Context, r io.Reader, optFns ...Option[T]) (*Store[T], error) {
	start := time.Now()

	sr, err := snapshot.NewReader(r)
	if err != nil {
		return nil, err
	}

	var (
		m        manifest
		entries  []flat.Entry
		rev      map[uint32]string
		payloads map[uint32]T
		metaDocs map[uint32]metadata.Document
	)

	if err := sr.DecodeSections(map[string]any{
		snapshot.SectionManifest: &m,
		snapshot.SectionIndex:    &entries,
		"ids":                    &rev,
		snapshot.SectionPayloads: &payloads,
		snapshot.SectionMetadata: &metaDocs,
	}); err != nil {
		return nil, err
	}

	if m.FormatVersion > manifestVersion {
		return nil, fmt.Errorf("embedgo: snapshot format version %d not supported", m.FormatVersion)
	}

	metric, err := distance.ParseMetric(m.Metric)
	if err != nil {
		return nil, err
	}

	optFns = append(optFns, WithMetric[T](metric))

	s, err := New(m.Dimension, optFns...)
	if err != nil {
		return nil, err
	}

	idx := s.index.(*flat.Flat)
	if err := idx.Restore(entries); err != nil {
		return nil, translateError(err)
	}

	s.meta.LoadMap(metaDocs)

	for internal, docID := range rev {
		s.ids[docID] = internal
		s.rev[internal] = docID
	}
	if payloads != nil {
		s.payloads = payloads
	}

	if len(s.ids) != m.Count {
		return nil, fmt.Errorf("embedgo: snapshot corrupt: manifest count %d, loaded %d", m.Count, len(s.ids))
	}

	s.metrics.RecordSnapshot("load", time.Since(start), nil)
	s.logger.LogSnapshot(ctx, "load", len(s.ids), nil)

	return s, nil
}

// SaveToBlob writes a snapshot to a blob store. The blob becomes visible
// atomically on success; a failed save is aborted and leaves any previously
// committed snapshot under the same name untouched.
func (s *Store[T]) SaveToBlob(ctx context.Context, store blobstore.BlobStore, name string) error {
	w, err := store.Create(ctx, name)
	if err != nil {
		return err
	}

	if err := s.SaveToWriter(ctx, w); err != nil {
		w.Abort()
		return err
	}

	return w.Close()
}

// LoadFromBlob reconstructs a store from a snapshot blob.
func LoadFromBlob[T any](ctx context.Context, store blobstore.BlobStore, name string, optFns ...Option[T]) (*Store[T], error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	return LoadFromReader(ctx, blob, optFns...)
}

func (s *Store[T]) lockAllStripes() {
	for i := range s.stripes {
		s.stripes[i].Lock()
	}
}

func (s *Store[T]) unlockAllStripes() {
	for i := len(s.stripes) - 1; i >= 0; i-- {
		s.stripes[i].Unlock()
	}
}
