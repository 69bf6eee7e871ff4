// Package middleware provides the gin middleware chain of the HTTP server.
package middleware

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	ctxlog "github.com/kart-io/ragpipe/pkg/infra/logger"
	"github.com/kart-io/ragpipe/pkg/utils/response"
)

// HeaderXRequestID is the default header carrying the request id.
const HeaderXRequestID = "X-Request-ID"

type requestIDKey struct{}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// GenerateRequestID returns a new lexically sortable request id.
func GenerateRequestID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// GetRequestID returns the request ID from the context.
// Returns empty string if not found.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// RequestID returns a middleware that reuses the inbound request id header
// or generates one, echoes it in the response and stores it on the context.
func RequestID(header string) gin.HandlerFunc {
	if header == "" {
		header = HeaderXRequestID
	}

	return func(c *gin.Context) {
		requestID := c.GetHeader(header)
		if requestID == "" {
			requestID = GenerateRequestID()
		}

		c.Header(header, requestID)
		c.Set(response.RequestIDKey, requestID)
		ctx := WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctxlog.WithRequestID(ctx, requestID))

		c.Next()
	}
}
