package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskgate/internal/platform/config"
)

func TestNew_Unconfigured(t *testing.T) {
	c, err := New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Nil(t, c.Universal(), "memory fallback needs a nil interface")
}

func TestNew_BadURL(t *testing.T) {
	_, err := New(context.Background(), config.RedisConfig{URL: "not-a-redis-url"})
	assert.ErrorContains(t, err, "parse redis URL")
}
