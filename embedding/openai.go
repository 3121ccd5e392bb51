package embedding

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAIOptions contains options for the OpenAI embedder.
type OpenAIOptions struct {
	// Model is the embedding model name.
	Model string

	// APIKey authenticates requests. Falls back to OPENAI_API_KEY.
	APIKey string

	// BaseURL overrides the API endpoint, e.g. for proxies or Azure.
	BaseURL string

	// BatchSize is the maximum number of texts per API request.
	BatchSize int

	// MaxConcurrency bounds the number of in-flight API requests.
	MaxConcurrency int

	// RequestsPerSecond throttles outgoing requests. Zero disables
	// client-side throttling.
	RequestsPerSecond float64

	// RequestOptions are passed through to the underlying client.
	RequestOptions []option.RequestOption
}

// DefaultOpenAIOptions contains the default options for the OpenAI embedder.
var DefaultOpenAIOptions = OpenAIOptions{
	Model:          DefaultOpenAIModel,
	BatchSize:      512,
	MaxConcurrency: 4,
}

// OpenAI embeds texts using the OpenAI embeddings API. Large inputs are
// split into batches and embedded concurrently, optionally rate limited.
type OpenAI struct {
	client  openai.Client
	limiter *rate.Limiter
	opts    OpenAIOptions
}

var _ Embedder = (*OpenAI)(nil)

// NewOpenAI creates a new OpenAI embedder.
func NewOpenAI(optFns ...func(o *OpenAIOptions)) (*OpenAI, error) {
	opts := DefaultOpenAIOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("embedding: batch size must be positive, got %d", opts.BatchSize)
	}

	if opts.MaxConcurrency <= 0 {
		return nil, fmt.Errorf("embedding: max concurrency must be positive, got %d", opts.MaxConcurrency)
	}

	reqOpts := make([]option.RequestOption, 0, len(opts.RequestOptions)+2)
	reqOpts = append(reqOpts, opts.RequestOptions...)

	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &OpenAI{
		client:  openai.NewClient(reqOpts...),
		limiter: limiter,
		opts:    opts,
	}, nil
}

// Embed implements Embedder. Results are returned in input order regardless
// of how batches complete.
func (e *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrNoTexts
	}

	vectors := make([][]float32, len(texts))

	sem := semaphore.NewWeighted(int64(e.opts.MaxConcurrency))
	g, gctx := errgroup.WithContext(ctx)

	var acquireErr error

	for start := 0; start < len(texts); start += e.opts.BatchSize {
		end := min(start+e.opts.BatchSize, len(texts))
		batch := texts[start:end]
		offset := start

		if err := sem.Acquire(gctx, 1); err != nil {
			acquireErr = err
			break
		}

		g.Go(func() error {
			defer sem.Release(1)

			embedded, err := e.embedBatch(gctx, batch)
			if err != nil {
				return err
			}

			copy(vectors[offset:], embedded)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if acquireErr != nil {
		return nil, acquireErr
	}

	return vectors, nil
}

func (e *OpenAI) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model: e.opts.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: openai request: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBatchSizeMismatch, len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for _, data := range resp.Data {
		// Each datum carries the index of the input it embeds; the
		// response order is not part of the API contract.
		if data.Index < 0 || data.Index >= int64(len(vectors)) {
			return nil, fmt.Errorf("embedding: openai response index %d out of range", data.Index)
		}

		vec := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			vec[j] = float32(v)
		}
		vectors[data.Index] = vec
	}

	for i, vec := range vectors {
		if vec == nil {
			return nil, fmt.Errorf("embedding: openai response missing vector for input %d", i)
		}
	}

	return vectors, nil
}
