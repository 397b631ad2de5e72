package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskgate/internal/risk/models"
	"riskgate/pkg/platform/sentinel"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	s := NewInMemoryStore()

	for i, subject := range []string{"a", "b", "a", "a"} {
		require.NoError(t, s.Save(ctx, &models.Assessment{
			ID:        string(rune('1' + i)),
			Subject:   subject,
			Reasons:   []string{"r"},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	t.Run("duplicate id conflicts", func(t *testing.T) {
		err := s.Save(ctx, &models.Assessment{ID: "1"})
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("find returns a copy", func(t *testing.T) {
		a, err := s.FindByID(ctx, "1")
		require.NoError(t, err)
		a.Reasons[0] = "mutated"
		again, err := s.FindByID(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, "r", again.Reasons[0])
	})

	t.Run("find missing", func(t *testing.T) {
		_, err := s.FindByID(ctx, "zz")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("list by subject newest first", func(t *testing.T) {
		got, err := s.List(ctx, models.AssessmentFilter{Subject: "a"})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "4", got[0].ID)
		assert.Equal(t, "1", got[2].ID)
	})

	t.Run("list time range", func(t *testing.T) {
		got, err := s.List(ctx, models.AssessmentFilter{Since: base.Add(time.Minute), Until: base.Add(3 * time.Minute)})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "3", got[0].ID)
		assert.Equal(t, "2", got[1].ID)
	})
}
