package generation

import (
	"context"

	"go.uber.org/zap"
)

// FallbackGenerator tries Primary and answers with Secondary when it fails.
type FallbackGenerator struct {
	primary   Generator
	secondary Generator
	logger    *zap.Logger
}

// FallbackOption configures a FallbackGenerator.
type FallbackOption func(*FallbackGenerator)

// WithLogger logs primary failures.
func WithLogger(l *zap.Logger) FallbackOption {
	return func(g *FallbackGenerator) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewFallbackGenerator chains primary and secondary. A nil primary always uses secondary.
func NewFallbackGenerator(primary, secondary Generator, opts ...FallbackOption) *FallbackGenerator {
	if secondary == nil {
		secondary = NewTemplateGenerator()
	}
	g := &FallbackGenerator{primary: primary, secondary: secondary, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns the primary answer, or the secondary one when the primary errors.
func (g *FallbackGenerator) Generate(ctx context.Context, req Request) (Response, error) {
	if g.primary != nil {
		resp, err := g.primary.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		g.logger.Warn("generation failed, falling back to template", zap.Error(err))
	}
	return g.secondary.Generate(ctx, req)
}
