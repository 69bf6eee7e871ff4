package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/ragpipe/pkg/utils/errors"
	"github.com/kart-io/ragpipe/pkg/utils/response"
)

// Recovery returns a middleware that recovers from panics.
// It converts panics to JSON error responses using the error code system.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("Panic recovered",
					"request_id", GetRequestID(c.Request.Context()),
					"path", c.Request.URL.Path,
					"panic", r,
					"stack", string(debug.Stack()),
				)
				response.Fail(c, errors.ErrPanic.WithMessage(fmt.Sprintf("panic: %v", r)))
				c.Abort()
			}
		}()
		c.Next()
	}
}
