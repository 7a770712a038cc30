package ai

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"trailroom-billing/internal/domain/ports/adapter"
)

var _ adapter.TryOnGenerator = (*NoopGenerator)(nil)

// NoopGenerator is used in dev when no API key is configured. It echoes the
// person image back after a short delay.
type NoopGenerator struct {
	delay time.Duration
	log   *zerolog.Logger
}

func NewNoopGenerator(delay time.Duration, logger *zerolog.Logger) *NoopGenerator {
	l := logger.With().Str("component", "NoopGenerator").Logger()
	return &NoopGenerator{delay: delay, log: &l}
}

func (n *NoopGenerator) Generate(ctx context.Context, req adapter.TryOnRequest) (adapter.Image, error) {
	select {
	case <-time.After(n.delay):
	case <-ctx.Done():
		return adapter.Image{}, ctx.Err()
	}
	n.log.Debug().Str("mode", req.Mode).Int("person_bytes", len(req.Person.Data)).Msg("noop generation")
	return req.Person, nil
}
