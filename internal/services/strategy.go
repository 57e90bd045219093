package services

import (
	"context"
	"time"

	"storefront-search/internal/models"
	"storefront-search/internal/normalizer"
	"storefront-search/pkg/retry"
	"storefront-search/pkg/transport"
	"storefront-search/pkg/utils"
)

const (
	StrategyLegacy   = "legacy"
	StrategyDirect   = "direct"
	StrategyFallback = "fallback"
)

// Poster is the transport used by the search strategies. *transport.Client
// satisfies it.
type Poster interface {
	Post(ctx context.Context, host, port, path string, body any, opts transport.Options) (any, error)
}

// Endpoint is the upstream search target.
type Endpoint struct {
	Host    string
	Port    string
	Path    string
	Timeout time.Duration
	Headers map[string]string
}

type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetryPolicy is two attempts one second apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: retry.DefaultAttempts, Delay: retry.DefaultDelay}
}

// SearchStrategy performs one complete search attempt, retries included, and
// returns the normalized response. A non-nil error means the exchange itself
// failed.
type SearchStrategy interface {
	Name() string
	Search(ctx context.Context, query string, filters models.SearchFilters) (normalizer.ValidationResult, error)
}

// legacyStrategy builds its body with the shared payload builder and posts it
// with the transport defaults.
type legacyStrategy struct {
	poster   Poster
	endpoint Endpoint
	retry    RetryPolicy
	observer Observer
}

func (s *legacyStrategy) Name() string { return StrategyLegacy }

func (s *legacyStrategy) Search(ctx context.Context, query string, filters models.SearchFilters) (normalizer.ValidationResult, error) {
	call := func(ctx context.Context) (any, error) {
		payload, err := utils.GenerateAPIPayload(query, models.SearchFlagSearch, filters)
		if err != nil {
			return nil, err
		}
		return s.poster.Post(ctx, s.endpoint.Host, s.endpoint.Port, s.endpoint.Path, payload, transport.Options{})
	}

	raw, err := retry.Do(ctx, s.retry.Attempts, s.retry.Delay, call, attemptReporter(ctx, s.observer, s.Name()))
	if err != nil {
		return normalizer.ValidationResult{}, err
	}
	return normalizer.Normalize(raw), nil
}

// directStrategy assembles the body inline, without the payload builder, and
// posts it with the endpoint's own timeout and headers.
type directStrategy struct {
	poster   Poster
	endpoint Endpoint
	retry    RetryPolicy
	observer Observer
}

func (s *directStrategy) Name() string { return StrategyDirect }

func (s *directStrategy) Search(ctx context.Context, query string, filters models.SearchFilters) (normalizer.ValidationResult, error) {
	call := func(ctx context.Context) (any, error) {
		body := map[string]any{
			"pregunta": query,
			"buscador": "Y",
			"filtros": map[string]string{
				"linea_de_producto": filters.ProductLine,
				"marca_de_producto": filters.Brand,
				"almacen_codigo":    filters.WarehouseCode,
				"tipo_producto":     filters.ProductType,
			},
		}
		opts := transport.Options{
			Timeout: s.endpoint.Timeout,
			Headers: s.endpoint.Headers,
		}
		return s.poster.Post(ctx, s.endpoint.Host, s.endpoint.Port, s.endpoint.Path, body, opts)
	}

	raw, err := retry.Do(ctx, s.retry.Attempts, s.retry.Delay, call, attemptReporter(ctx, s.observer, s.Name()))
	if err != nil {
		return normalizer.ValidationResult{}, err
	}
	return normalizer.Normalize(raw), nil
}

func attemptReporter(ctx context.Context, o Observer, strategy string) retry.Option {
	return retry.WithOnAttempt(func(attempt, maxAttempts int, err error) {
		o.OnAttempt(ctx, strategy, attempt, maxAttempts, err)
	})
}
