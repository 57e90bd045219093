package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront-search/internal/models"
	"storefront-search/internal/services"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublishWritesSearchEvent(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, zap.NewNop())
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	err := p.Publish(context.Background(), services.Outcome{
		Query:       "monitor 24",
		Filters:     models.SearchFilters{Brand: "LG"},
		Strategy:    services.StrategyDirect,
		Identifiers: []string{"LG-24MS500"},
		Duration:    1500 * time.Millisecond,
	})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "monitor 24", string(msg.Key))
	assert.Equal(t, fixed, msg.Time)

	var ev SearchEvent
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	_, err = uuid.Parse(ev.EventID)
	assert.NoError(t, err)
	assert.Equal(t, "direct", ev.Strategy)
	assert.Equal(t, []string{"LG-24MS500"}, ev.SKUs)
	assert.Equal(t, 1, ev.Count)
	assert.Equal(t, "LG", ev.Filters.Brand)
	assert.Equal(t, int64(1500), ev.DurationMs)
	assert.Empty(t, ev.Error)
}

func TestPublishIncludesError(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, zap.NewNop())

	err := p.Publish(context.Background(), services.Outcome{
		Query:    "tv",
		Strategy: services.StrategyFallback,
		Err:      errors.New("connection refused"),
	})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &raw))
	assert.Equal(t, "connection refused", raw["error"])
	assert.Equal(t, []any{}, raw["skus"])
}

func TestOnResolvedSwallowsWriteErrors(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newPublisher(w, zap.NewNop())

	assert.NotPanics(t, func() {
		p.OnResolved(context.Background(), services.Outcome{Query: "tv"})
	})
}

func TestOnResolvedIgnoresCancelledContext(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p.OnAttempt(ctx, services.StrategyLegacy, 1, 2, errors.New("x"))
	p.OnFallback(ctx, services.StrategyLegacy, errors.New("x"))
	p.OnResolved(ctx, services.Outcome{Query: "tv"})

	assert.Len(t, w.messages, 1)
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}
