package embedding

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"ragqa/internal/domain"
	"ragqa/internal/port"
)

var _ port.Embedder = (*ParallelEmbedder)(nil)

// ParallelEmbedder splits large inputs into batches and embeds them
// concurrently. Output order always matches input order.
type ParallelEmbedder struct {
	inner     port.Embedder
	batchSize int
	workers   int
	limiter   *rate.Limiter
}

// NewParallelEmbedder wraps inner. ratePerSec limits batch requests per
// second; zero disables limiting.
func NewParallelEmbedder(inner port.Embedder, batchSize, workers int, ratePerSec float64) *ParallelEmbedder {
	if batchSize <= 0 {
		batchSize = 32
	}
	if workers <= 0 {
		workers = 1
	}

	p := &ParallelEmbedder{
		inner:     inner,
		batchSize: batchSize,
		workers:   workers,
	}
	if ratePerSec > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(ratePerSec), 1)
	}
	return p
}

func (p *ParallelEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) <= p.batchSize {
		if err := p.wait(ctx); err != nil {
			return nil, err
		}
		return p.inner.Embed(ctx, texts)
	}

	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for start := 0; start < len(texts); start += p.batchSize {
		end := min(start+p.batchSize, len(texts))

		g.Go(func() error {
			if err := p.wait(gctx); err != nil {
				return err
			}
			batch, err := p.inner.Embed(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(batch) != end-start {
				return fmt.Errorf("%w: got %d embeddings for %d texts", domain.ErrEmbedding, len(batch), end-start)
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (p *ParallelEmbedder) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

func (p *ParallelEmbedder) Dimension() int {
	return p.inner.Dimension()
}

func (p *ParallelEmbedder) ModelName() string {
	return p.inner.ModelName()
}
