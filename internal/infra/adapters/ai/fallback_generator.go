package ai

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"trailroom-billing/internal/domain/ports/adapter"
)

var _ adapter.TryOnGenerator = (*FallbackGenerator)(nil)

// NamedGenerator pairs a generator with the model name used in logs.
type NamedGenerator struct {
	Name      string
	Generator adapter.TryOnGenerator
}

// FallbackGenerator tries each model in order and returns the first image.
// A cancelled context stops the chain.
type FallbackGenerator struct {
	chain []NamedGenerator
	log   *zerolog.Logger
}

func NewFallbackGenerator(logger *zerolog.Logger, chain ...NamedGenerator) *FallbackGenerator {
	l := logger.With().Str("component", "FallbackGenerator").Logger()
	return &FallbackGenerator{chain: chain, log: &l}
}

func (f *FallbackGenerator) Generate(ctx context.Context, req adapter.TryOnRequest) (adapter.Image, error) {
	if len(f.chain) == 0 {
		return adapter.Image{}, errors.New("no generator configured")
	}
	var errs []error
	for _, g := range f.chain {
		img, err := g.Generator.Generate(ctx, req)
		if err == nil {
			return img, nil
		}
		if ctx.Err() != nil {
			return adapter.Image{}, ctx.Err()
		}
		f.log.Warn().Err(err).Str("model", g.Name).Msg("generator failed, trying next")
		errs = append(errs, err)
	}
	return adapter.Image{}, errors.Join(errs...)
}
