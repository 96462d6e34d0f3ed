package testutil

import (
	"context"
	"net/http"

	"forestclient/internal/platform/middleware"
)

// WithSubject adds an authenticated subject to the request context.
// This simulates what the auth middleware does for a valid bearer token.
func WithSubject(req *http.Request, subject string) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.ContextKeySubject, subject)
	return req.WithContext(ctx)
}
