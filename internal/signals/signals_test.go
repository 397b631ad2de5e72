package signals

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskgate/internal/risk/models"
)

type recordingObserver struct {
	mu          sync.Mutex
	latencies   map[string]int
	unavailable map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{latencies: map[string]int{}, unavailable: map[string]int{}}
}

func (o *recordingObserver) ObserveSignalLatency(c string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.latencies[c]++
}

func (o *recordingObserver) IncrementSignalUnavailable(c string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.unavailable[c]++
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGuard(t *testing.T) {
	ctx := context.Background()

	t.Run("passes through and clamps", func(t *testing.T) {
		obs := newRecordingObserver()
		g := NewGuard(Func{Cat: models.CategoryBot, Fn: func(context.Context, models.SignalInput) (models.SignalResult, error) {
			return models.SignalResult{Score: 140, Reasons: []string{"x"}}, nil
		}}, WithObserver(obs), WithLogger(quietLogger()))

		res, err := g.Evaluate(ctx, models.SignalInput{})
		require.NoError(t, err)
		assert.Equal(t, 100, res.Score)
		assert.Equal(t, models.CategoryBot, res.Category)
		assert.False(t, res.Unavailable)
		assert.Equal(t, 1, obs.latencies["bot"])
		assert.Zero(t, obs.unavailable["bot"])
	})

	t.Run("error degrades to neutral", func(t *testing.T) {
		obs := newRecordingObserver()
		g := NewGuard(Func{Cat: models.CategoryIP, Fn: func(context.Context, models.SignalInput) (models.SignalResult, error) {
			return models.SignalResult{}, ErrUpstreamUnavailable
		}}, WithObserver(obs), WithLogger(quietLogger()))

		res, err := g.Evaluate(ctx, models.SignalInput{})
		require.NoError(t, err)
		assert.Equal(t, models.Neutral, res.Score)
		assert.True(t, res.Unavailable)
		assert.Equal(t, []string{"ip_reputation signal unavailable"}, res.Reasons)
		assert.Equal(t, 1, obs.unavailable["ip_reputation"])
	})

	t.Run("provider ignoring its context still times out", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		g := NewGuard(Func{Cat: models.CategoryVelocity, Fn: func(context.Context, models.SignalInput) (models.SignalResult, error) {
			<-release
			return models.SignalResult{Score: 1}, nil
		}}, WithTimeout(20*time.Millisecond), WithLogger(quietLogger()))

		start := time.Now()
		res, err := g.Evaluate(ctx, models.SignalInput{})
		require.NoError(t, err)
		assert.True(t, res.Unavailable)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("panic degrades to neutral", func(t *testing.T) {
		g := NewGuard(Func{Cat: models.CategoryTrust, Fn: func(context.Context, models.SignalInput) (models.SignalResult, error) {
			panic(errors.New("boom"))
		}}, WithLogger(quietLogger()))

		res, err := g.Evaluate(ctx, models.SignalInput{})
		require.NoError(t, err)
		assert.True(t, res.Unavailable)
	})
}

func TestGuardDoesNotNest(t *testing.T) {
	inner := newRecordingObserver()
	outer := newRecordingObserver()
	p := Func{Cat: models.CategoryTrust, Fn: func(context.Context, models.SignalInput) (models.SignalResult, error) {
		return models.SignalResult{Score: 10}, nil
	}}
	g := NewGuard(NewGuard(p, WithObserver(inner), WithLogger(quietLogger())),
		WithObserver(outer), WithLogger(quietLogger()))

	_, err := g.Evaluate(context.Background(), models.SignalInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, outer.latencies["trust"])
	assert.Zero(t, inner.latencies["trust"])
}
