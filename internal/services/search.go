package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront-search/internal/models"
	"storefront-search/internal/normalizer"
	"storefront-search/pkg/retry"
)

// DefaultSampleIdentifiers keep the storefront populated outside production
// when the search upstream is unreachable.
var DefaultSampleIdentifiers = []string{"TE-24155", "TE-27535", "LG-24MS500"}

type ResolverConfig struct {
	Endpoint     Endpoint
	Retry        RetryPolicy
	IsProduction bool
}

// Resolver turns a free-text query into an ordered list of product
// identifiers. It tries the legacy strategy first and the direct strategy
// second. Transport failures never escape Resolve: when both strategies fail
// it returns an empty list in production and a fixed sample otherwise.
//
// Each call owns its own state, but overlapping calls are not coordinated:
// a newer query does not cancel an older one, so callers that issue searches
// concurrently must discard out-of-order results themselves.
type Resolver struct {
	legacy       SearchStrategy
	direct       SearchStrategy
	isProduction bool
	sample       []string
	observer     Observer
	logger       *zap.Logger
}

type ResolverOption func(*Resolver)

func WithObserver(o Observer) ResolverOption {
	return func(r *Resolver) {
		if o != nil {
			r.observer = o
		}
	}
}

func WithResolverLogger(l *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithSampleIdentifiers replaces the identifiers returned outside production
// when every strategy fails.
func WithSampleIdentifiers(ids []string) ResolverOption {
	return func(r *Resolver) {
		r.sample = append([]string(nil), ids...)
	}
}

// WithStrategies overrides the two strategies, mainly for tests.
func WithStrategies(legacy, direct SearchStrategy) ResolverOption {
	return func(r *Resolver) {
		r.legacy = legacy
		r.direct = direct
	}
}

// NewResolver builds a resolver posting through poster. A zero RetryPolicy
// means DefaultRetryPolicy. An explicit policy keeps its Delay, so
// {Attempts: 2} retries without waiting; Attempts below 1 become
// retry.DefaultAttempts.
func NewResolver(poster Poster, cfg ResolverConfig, opts ...ResolverOption) *Resolver {
	if cfg.Retry == (RetryPolicy{}) {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.Retry.Attempts < 1 {
		cfg.Retry.Attempts = retry.DefaultAttempts
	}

	r := &Resolver{
		isProduction: cfg.IsProduction,
		sample:       append([]string(nil), DefaultSampleIdentifiers...),
		observer:     NopObserver{},
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	// strategies report through the final observer
	if r.legacy == nil {
		r.legacy = &legacyStrategy{poster: poster, endpoint: cfg.Endpoint, retry: cfg.Retry, observer: r.observer}
	}
	if r.direct == nil {
		r.direct = &directStrategy{poster: poster, endpoint: cfg.Endpoint, retry: cfg.Retry, observer: r.observer}
	}
	return r
}

// Resolve searches for query. Whitespace-only queries return an empty list
// without any network traffic. The only error returned is
// *SearchFailedError, when the direct strategy gets an explicit rejection.
func (r *Resolver) Resolve(ctx context.Context, query string, filters models.SearchFilters) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		r.logger.Debug("empty query, skipping search")
		return []string{}, nil
	}

	start := time.Now()
	outcome := Outcome{Query: query, Filters: filters}
	finish := func(strategy string, ids []string) []string {
		outcome.Strategy = strategy
		outcome.Identifiers = ids
		outcome.Duration = time.Since(start)
		r.observer.OnResolved(ctx, outcome)
		return ids
	}

	res, err := r.legacy.Search(ctx, query, filters)
	legacyErr := strategyError(r.legacy.Name(), res, err)
	if legacyErr == nil {
		return finish(r.legacy.Name(), res.Identifiers), nil
	}
	r.observer.OnFallback(ctx, r.legacy.Name(), legacyErr)

	res, err = r.direct.Search(ctx, query, filters)
	switch {
	case err != nil:
		outcome.Err = errors.Join(legacyErr, err)
		return finish(StrategyFallback, r.fallbackIdentifiers()), nil

	case res.IsValid:
		return finish(r.direct.Name(), res.Identifiers), nil

	case res.HasBusinessError:
		failure := &SearchFailedError{Message: res.ErrorMessage}
		outcome.Err = failure
		finish(r.direct.Name(), nil)
		return nil, failure

	default:
		// Unrecognised or empty: pass through whatever was extracted.
		outcome.Partial = true
		return finish(r.direct.Name(), nonNil(res.Identifiers)), nil
	}
}

// ResolveByCategory searches within a product line.
func (r *Resolver) ResolveByCategory(ctx context.Context, query, productLine string) ([]string, error) {
	return r.Resolve(ctx, query, models.SearchFilters{ProductLine: productLine})
}

// ResolveByBrand searches within a brand.
func (r *Resolver) ResolveByBrand(ctx context.Context, query, brand string) ([]string, error) {
	return r.Resolve(ctx, query, models.SearchFilters{Brand: brand})
}

// fallbackIdentifiers is used when both strategies failed to complete an
// exchange. Production shows no results; other environments show a fixed
// sample so the storefront stays usable during manual testing.
func (r *Resolver) fallbackIdentifiers() []string {
	if r.isProduction {
		return []string{}
	}
	r.logger.Info("search upstream unavailable, returning sample identifiers",
		zap.Strings("skus", r.sample))
	return append([]string{}, r.sample...)
}

// strategyError is nil when the strategy produced a usable answer.
func strategyError(strategy string, res normalizer.ValidationResult, err error) error {
	switch {
	case err != nil:
		return err
	case res.IsValid:
		return nil
	case res.HasBusinessError:
		return &BusinessRejectionError{Strategy: strategy, Message: res.ErrorMessage}
	default:
		return ErrNoIdentifiers
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
