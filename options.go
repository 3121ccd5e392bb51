package embedgo

import (
	"fmt"
	"log/slog"

	"github.com/hupe1980/embedgo/codec"
	"github.com/hupe1980/embedgo/distance"
	"github.com/hupe1980/embedgo/embedding"
	"github.com/hupe1980/embedgo/snapshot"
)

type options[T any] struct {
	metric           distance.Metric
	embedder         embedding.Embedder
	textFunc         func(T) string
	codec            codec.Codec
	compression      snapshot.Compression
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures store construction and load behavior.
type Option[T any] func(*options[T])

// WithMetric selects the similarity metric. The metric is fixed for the
// lifetime of the store; the default is cosine.
func WithMetric[T any](m distance.Metric) Option[T] {
	return func(o *options[T]) {
		o.metric = m
	}
}

// WithEmbedder configures the embedder used to vectorize documents added
// without vectors and to embed text queries.
func WithEmbedder[T any](e embedding.Embedder) Option[T] {
	return func(o *options[T]) {
		o.embedder = e
	}
}

// WithTextFunc sets how document content is rendered to text before
// embedding. The default uses fmt.Sprint, which is the identity for string
// content.
func WithTextFunc[T any](fn func(content T) string) Option[T] {
	return func(o *options[T]) {
		o.textFunc = fn
	}
}

// WithCodec configures the codec used for snapshot payload sections.
// If nil is passed, codec.Default is used.
func WithCodec[T any](c codec.Codec) Option[T] {
	return func(o *options[T]) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression configures the compression used for newly written
// snapshots. Existing snapshots are self-describing and load regardless.
func WithCompression[T any](comp snapshot.Compression) Option[T] {
	return func(o *options[T]) {
		if comp == nil {
			comp = snapshot.DefaultCompression
		}
		o.compression = comp
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations.
func WithMetricsCollector[T any](mc MetricsCollector) Option[T] {
	return func(o *options[T]) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
func WithLogger[T any](logger *Logger) Option[T] {
	return func(o *options[T]) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel[T any](level slog.Level) Option[T] {
	return func(o *options[T]) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions[T any](optFns []Option[T]) options[T] {
	o := options[T]{
		metric:           distance.MetricCosine,
		textFunc:         func(content T) string { return fmt.Sprint(content) },
		codec:            codec.Default,
		compression:      snapshot.DefaultCompression,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}

	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}

	return o
}
