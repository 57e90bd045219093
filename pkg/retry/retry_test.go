package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDoSucceedsOnThirdAttempt(t *testing.T) {
	calls := 0
	op := func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", fmt.Errorf("attempt %d failed", calls)
		}
		return "ok", nil
	}

	got, err := Do(context.Background(), 3, 0, op)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestDoReturnsLastError(t *testing.T) {
	first := errors.New("first failure")
	second := errors.New("second failure")
	calls := 0
	op := func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, first
		}
		return 0, second
	}

	_, err := Do(context.Background(), 2, 0, op)
	require.Error(t, err)
	assert.Same(t, second, err)
	assert.NotErrorIs(t, err, first)
	assert.Equal(t, 2, calls)
}

func TestDoReturnsImmediatelyOnSuccess(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), 5, time.Hour, func(context.Context) (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 1, calls)
}

func TestDoClampsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), 0, -time.Second, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoWaitsBetweenAttempts(t *testing.T) {
	delay := 20 * time.Millisecond
	start := time.Now()
	_, _ = Do(context.Background(), 3, delay, func(context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	// two waits for three attempts
	assert.GreaterOrEqual(t, time.Since(start), 2*delay)
}

func TestDoStopsWaitingWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, 3, time.Hour, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("boom")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoReportsAttempts(t *testing.T) {
	type report struct {
		attempt, max int
		failed       bool
	}
	var reports []report

	calls := 0
	_, err := Do(context.Background(), 2, 0, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("boom")
		}
		return "ok", nil
	}, WithOnAttempt(func(attempt, maxAttempts int, err error) {
		reports = append(reports, report{attempt, maxAttempts, err != nil})
	}))
	require.NoError(t, err)
	assert.Equal(t, []report{{1, 2, true}, {2, 2, false}}, reports)
}

func TestDoReturnsZeroValueOnFailure(t *testing.T) {
	got, err := Do(context.Background(), 2, 0, func(context.Context) (int, error) {
		return 7, errors.New("partial result")
	})
	require.Error(t, err)
	assert.Zero(t, got)
}

func TestDoReportsContextErrorAfterFinalAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, err := Do(ctx, 1, 0, func(context.Context) (int, error) {
		cancel()
		return 0, errors.New("boom")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
