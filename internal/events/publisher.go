// Package events publishes resolved searches to Kafka for analytics.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"storefront-search/internal/models"
	"storefront-search/internal/services"
)

// SearchEvent is the message value written for every resolved search.
type SearchEvent struct {
	EventID    string               `json:"event_id"`
	Query      string               `json:"query"`
	Filters    models.SearchFilters `json:"filters"`
	Strategy   string               `json:"strategy"`
	SKUs       []string             `json:"skus"`
	Count      int                  `json:"count"`
	Partial    bool                 `json:"partial"`
	Error      string               `json:"error,omitempty"`
	DurationMs int64                `json:"duration_ms"`
	Timestamp  time.Time            `json:"timestamp"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher is a services.Observer that forwards OnResolved events to a
// Kafka topic. Attempt and fallback events are not published.
type Publisher struct {
	writer messageWriter
	logger *zap.Logger
	now    func() time.Time
}

var _ services.Observer = (*Publisher)(nil)

// NewPublisher builds an async producer for topic on broker. Writes never
// block the search path; delivery errors are only logged.
func NewPublisher(broker, topic string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("events")
	w := &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("search events not delivered", zap.Int("messages", len(messages)), zap.Error(err))
			}
		},
	}
	return newPublisher(w, logger)
}

func newPublisher(w messageWriter, logger *zap.Logger) *Publisher {
	return &Publisher{writer: w, logger: logger, now: time.Now}
}

func (p *Publisher) OnAttempt(context.Context, string, int, int, error) {}

func (p *Publisher) OnFallback(context.Context, string, error) {}

func (p *Publisher) OnResolved(ctx context.Context, o services.Outcome) {
	if err := p.Publish(context.WithoutCancel(ctx), o); err != nil {
		p.logger.Warn("failed to publish search event", zap.String("query", o.Query), zap.Error(err))
	}
}

// Publish writes one event keyed by query, so repeats of a query land on the
// same partition.
func (p *Publisher) Publish(ctx context.Context, o services.Outcome) error {
	ev := SearchEvent{
		EventID:    uuid.NewString(),
		Query:      o.Query,
		Filters:    o.Filters,
		Strategy:   o.Strategy,
		SKUs:       o.Identifiers,
		Count:      len(o.Identifiers),
		Partial:    o.Partial,
		DurationMs: o.Duration.Milliseconds(),
		Timestamp:  p.now().UTC(),
	}
	if ev.SKUs == nil {
		ev.SKUs = []string{}
	}
	if o.Err != nil {
		ev.Error = o.Err.Error()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal search event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(o.Query),
		Value: data,
		Time:  ev.Timestamp,
	})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
