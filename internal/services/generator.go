package services

import (
	"context"
	"strings"

	"derjachat/internal/config"
	"derjachat/internal/models"
	"derjachat/internal/observability"
	"derjachat/internal/serviceinterfaces"
	contextutils "derjachat/internal/utils"

	"golang.org/x/sync/semaphore"
)

// NewGenerator builds the configured generation provider wrapped in the
// process-wide concurrency limiter. Without a configured provider every call
// fails with ErrAIProviderUnavailable, which the pipeline turns into its
// soft-failure reply.
func NewGenerator(ctx context.Context, cfg *config.Config, logger *observability.Logger) (serviceinterfaces.Generator, error) {
	var inner serviceinterfaces.Generator

	provider, ok := cfg.GetProvider(cfg.Generation.Provider)
	switch {
	case cfg.Generation.Provider == "":
		logger.Warn(ctx, "No generation provider configured, replies will use the soft-failure message")
		inner = unavailableGenerator{reason: "no provider configured"}
	case !ok && strings.EqualFold(cfg.Generation.Provider, "gemini"):
		g, err := NewGeminiGenerator(ctx, cfg, nil, logger)
		if err != nil {
			return nil, err
		}
		inner = g
	case !ok:
		return nil, contextutils.WrapErrorf(contextutils.ErrAIConfigInvalid, "unknown generation provider %q", cfg.Generation.Provider)
	case strings.EqualFold(provider.Kind, "gemini"):
		g, err := NewGeminiGenerator(ctx, cfg, provider, logger)
		if err != nil {
			return nil, err
		}
		inner = g
	default:
		g, err := NewOpenAICompatibleGenerator(cfg, provider, logger)
		if err != nil {
			return nil, err
		}
		inner = g
	}

	logger.Info(ctx, "Generation provider configured", map[string]interface{}{
		"provider":       cfg.Generation.Provider,
		"kind":           inner.Name(),
		"model":          cfg.Generation.Model,
		"api_key":        contextutils.MaskAPIKey(cfg.Generation.APIKey),
		"max_concurrent": cfg.Server.MaxAIConcurrent,
	})
	return NewGenerationLimiter(inner, int64(cfg.Server.MaxAIConcurrent), cfg), nil
}

// GenerationLimiter bounds the number of generation calls in flight across
// all requests. Waiting for a slot respects the caller's context, and each
// call runs under the configured generation timeout.
type GenerationLimiter struct {
	inner serviceinterfaces.Generator
	sem   *semaphore.Weighted
	cfg   *config.Config
}

// NewGenerationLimiter wraps inner with a semaphore of size max
func NewGenerationLimiter(inner serviceinterfaces.Generator, max int64, cfg *config.Config) *GenerationLimiter {
	if max <= 0 {
		max = config.DefaultMaxAIConcurrent
	}
	return &GenerationLimiter{inner: inner, sem: semaphore.NewWeighted(max), cfg: cfg}
}

// Name returns the wrapped provider's name
func (l *GenerationLimiter) Name() string { return l.inner.Name() }

// Generate waits for a slot and calls the wrapped provider
func (l *GenerationLimiter) Generate(ctx context.Context, req *models.GenerationRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.GenerationTimeout())
	defer cancel()

	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrTimeout, "waiting for a generation slot: %v", err)
	}
	defer l.sem.Release(1)

	return l.inner.Generate(ctx, req)
}

// Shutdown forwards to the wrapped provider when it holds resources
func (l *GenerationLimiter) Shutdown(ctx context.Context) error {
	if lc, ok := l.inner.(serviceinterfaces.Lifecycle); ok {
		return lc.Shutdown(ctx)
	}
	return nil
}

// unavailableGenerator stands in when no provider is configured
type unavailableGenerator struct {
	reason string
}

func (u unavailableGenerator) Name() string { return "unavailable" }

func (u unavailableGenerator) Generate(context.Context, *models.GenerationRequest) (string, error) {
	return "", contextutils.WrapError(contextutils.ErrAIProviderUnavailable, u.reason)
}
