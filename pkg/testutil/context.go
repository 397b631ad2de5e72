package testutil

import (
	"net/http"
	"time"

	"riskgate/pkg/requestcontext"
)

// WithClient sets the client address and user agent the metadata middleware
// would have resolved.
func WithClient(req *http.Request, ip, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, userAgent))
}

// WithReviewer simulates an authenticated admin request.
func WithReviewer(req *http.Request, reviewer string) *http.Request {
	return req.WithContext(requestcontext.WithReviewer(req.Context(), reviewer))
}

// WithTime pins the request clock.
func WithTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
