package ai

import (
	"context"

	"trailroom-billing/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.TryOnGenerator = (*limitedGenerator)(nil)

type limitedGenerator struct {
	inner adapter.TryOnGenerator
	sem   chan struct{}
}

// NewLimitedGenerator caps in-flight Generate calls across all workers.
func NewLimitedGenerator(inner adapter.TryOnGenerator, maxConcurrent int) adapter.TryOnGenerator {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedGenerator{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedGenerator) Generate(ctx context.Context, req adapter.TryOnRequest) (adapter.Image, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return adapter.Image{}, ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.Generate(ctx, req)
}
