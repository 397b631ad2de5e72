// Package requestcontext holds request-scoped values that services read
// without importing net/http.
//
// Middleware sets the values; services and stores read them:
//
//	now := requestcontext.Now(ctx)
//	ip := requestcontext.ClientIP(ctx)
//
// Tests inject them directly:
//
//	ctx = requestcontext.WithTime(ctx, fixed)
//	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.7", "Mozilla/5.0")
package requestcontext

import (
	"context"
	"time"
)

type (
	clientIPKey          struct{}
	userAgentKey         struct{}
	deviceFingerprintKey struct{}
	requestIDKey         struct{}
	requestTimeKey       struct{}
	reviewerKey          struct{}
)

// ClientIP returns the caller's IP, or "" when unset.
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// UserAgent returns the caller's User-Agent, or "" when unset.
func UserAgent(ctx context.Context) string {
	ua, _ := ctx.Value(userAgentKey{}).(string)
	return ua
}

// WithClientMetadata injects client IP and User-Agent.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}

// DeviceFingerprint returns the client-supplied device fingerprint hash.
func DeviceFingerprint(ctx context.Context) string {
	fp, _ := ctx.Value(deviceFingerprintKey{}).(string)
	return fp
}

func WithDeviceFingerprint(ctx context.Context, fingerprint string) context.Context {
	return context.WithValue(ctx, deviceFingerprintKey{}, fingerprint)
}

// RequestID returns the correlation ID assigned by middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Reviewer returns the authenticated admin subject, or "" outside admin routes.
func Reviewer(ctx context.Context) string {
	r, _ := ctx.Value(reviewerKey{}).(string)
	return r
}

func WithReviewer(ctx context.Context, reviewer string) context.Context {
	return context.WithValue(ctx, reviewerKey{}, reviewer)
}

// Now returns the request-scoped time, falling back to time.Now() for
// workers and tests that never set one.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins "now" for everything downstream of ctx.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
