package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccessors(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ClientIP(ctx))
	assert.Empty(t, RequestID(ctx))
	assert.Empty(t, Reviewer(ctx))

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx = WithTime(ctx, fixed)
	ctx = WithClientMetadata(ctx, "198.51.100.4", "curl/8.0")
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithReviewer(ctx, "ops@example.com")
	ctx = WithDeviceFingerprint(ctx, "fp-1")

	assert.Equal(t, fixed, Now(ctx))
	assert.Equal(t, "198.51.100.4", ClientIP(ctx))
	assert.Equal(t, "curl/8.0", UserAgent(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "ops@example.com", Reviewer(ctx))
	assert.Equal(t, "fp-1", DeviceFingerprint(ctx))
}
