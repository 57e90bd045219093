package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storefront-search/internal/models"
)

// Outcome describes how a single Resolve call finished.
type Outcome struct {
	Query       string
	Filters     models.SearchFilters
	Strategy    string
	Identifiers []string
	// Partial is set when the direct strategy returned an unrecognised or
	// empty response and its identifiers were passed through as-is.
	Partial  bool
	Err      error
	Duration time.Duration
}

// Observer receives progress events from the resolver. Implementations must
// not block; they run inline with the search.
type Observer interface {
	OnAttempt(ctx context.Context, strategy string, attempt, maxAttempts int, err error)
	OnFallback(ctx context.Context, strategy string, reason error)
	OnResolved(ctx context.Context, outcome Outcome)
}

type NopObserver struct{}

func (NopObserver) OnAttempt(context.Context, string, int, int, error) {}
func (NopObserver) OnFallback(context.Context, string, error)          {}
func (NopObserver) OnResolved(context.Context, Outcome)                {}

// MultiObserver fans events out to every observer in order.
type MultiObserver []Observer

func (m MultiObserver) OnAttempt(ctx context.Context, strategy string, attempt, maxAttempts int, err error) {
	for _, o := range m {
		o.OnAttempt(ctx, strategy, attempt, maxAttempts, err)
	}
}

func (m MultiObserver) OnFallback(ctx context.Context, strategy string, reason error) {
	for _, o := range m {
		o.OnFallback(ctx, strategy, reason)
	}
}

func (m MultiObserver) OnResolved(ctx context.Context, outcome Outcome) {
	for _, o := range m {
		o.OnResolved(ctx, outcome)
	}
}

// LogObserver writes resolver events to a zap logger.
type LogObserver struct {
	logger *zap.Logger
}

func NewLogObserver(logger *zap.Logger) *LogObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogObserver{logger: logger.Named("search")}
}

func (l *LogObserver) OnAttempt(_ context.Context, strategy string, attempt, maxAttempts int, err error) {
	if err != nil {
		l.logger.Warn("search attempt failed",
			zap.String("strategy", strategy),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err))
		return
	}
	l.logger.Debug("search attempt succeeded",
		zap.String("strategy", strategy),
		zap.Int("attempt", attempt))
}

func (l *LogObserver) OnFallback(_ context.Context, strategy string, reason error) {
	l.logger.Info("search strategy failed, trying next",
		zap.String("strategy", strategy),
		zap.Error(reason))
}

func (l *LogObserver) OnResolved(_ context.Context, o Outcome) {
	fields := []zap.Field{
		zap.String("query", o.Query),
		zap.String("strategy", o.Strategy),
		zap.Int("skus", len(o.Identifiers)),
		zap.Bool("partial", o.Partial),
		zap.Duration("duration", o.Duration),
	}
	if o.Err != nil {
		l.logger.Warn("search resolved with error", append(fields, zap.Error(o.Err))...)
		return
	}
	l.logger.Info("search resolved", fields...)
}
