package velocity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskgate/internal/risk/models"
	"riskgate/internal/signals"
)

type brokenStore struct{}

func (brokenStore) Record(context.Context, string, time.Time) error { return errors.New("down") }
func (brokenStore) Count(context.Context, string, time.Time, time.Time) (int, error) {
	return 0, errors.New("down")
}

func TestEvaluate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	rules := map[models.Action]Rule{models.ActionLogin: {Window: 10 * time.Minute, Max: 4}}

	store := NewMemoryStore(time.Hour)
	rec := NewRecorder(store)
	p := New(store, rules)
	in := models.SignalInput{Subject: "u1", IP: "203.0.113.1", Action: models.ActionLogin, Now: now}

	res, err := p.Evaluate(ctx, in)
	require.NoError(t, err)
	assert.Zero(t, res.Score)

	for i := range 2 {
		require.NoError(t, rec.Record(ctx, "u1", "203.0.113.1", models.ActionLogin, now.Add(-time.Duration(i+1)*time.Minute)))
	}
	res, err = p.Evaluate(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 37, res.Score)
	assert.Empty(t, res.Reasons)

	for i := range 3 {
		require.NoError(t, rec.Record(ctx, "other", "203.0.113.1", models.ActionLogin, now.Add(-time.Duration(i+3)*time.Minute)))
	}
	res, err = p.Evaluate(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Score, "address series exceeds threshold")
	assert.Equal(t, []string{"address login velocity above threshold"}, res.Reasons)

	later := in
	later.Now = now.Add(30 * time.Minute)
	res, err = p.Evaluate(ctx, later)
	require.NoError(t, err)
	assert.Zero(t, res.Score, "events age out of the window")
}

func TestEvaluate_UnconfiguredAction(t *testing.T) {
	p := New(NewMemoryStore(time.Hour), map[models.Action]Rule{})
	res, err := p.Evaluate(context.Background(), models.SignalInput{Subject: "u1", Action: models.ActionRegister, Now: time.Now()})
	require.NoError(t, err)
	assert.Zero(t, res.Score)
}

func TestEvaluate_StoreFailure(t *testing.T) {
	p := New(brokenStore{}, nil)
	_, err := p.Evaluate(context.Background(), models.SignalInput{Subject: "u1", Action: models.ActionLogin, Now: time.Now()})
	assert.ErrorIs(t, err, signals.ErrUpstreamUnavailable)
}

func TestScoreFor_Monotonic(t *testing.T) {
	prev := -1
	for c := 0; c <= 12; c++ {
		s := scoreFor(c, 10)
		assert.GreaterOrEqual(t, s, prev)
		prev = s
	}
}

func TestMemoryStore_Prunes(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(time.Hour)
	require.NoError(t, s.Record(ctx, "k", now.Add(-2*time.Hour)))
	require.NoError(t, s.Record(ctx, "k", now))
	assert.Len(t, s.series["k"], 1)
}
