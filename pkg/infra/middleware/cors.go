package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	mwopts "github.com/kart-io/ragpipe/pkg/options/middleware"
)

// CORS returns a middleware that adds CORS headers.
// With a wildcard origin and credentials enabled, the request origin is
// echoed back since browsers reject "*" together with credentials.
func CORS(opts *mwopts.CORSOptions) gin.HandlerFunc {
	allowMethods := strings.Join(opts.AllowMethods, ", ")
	allowHeaders := strings.Join(opts.AllowHeaders, ", ")
	maxAge := strconv.Itoa(opts.MaxAge)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowedOrigin := ""
		for _, o := range opts.AllowOrigins {
			if o == "*" || o == origin {
				allowedOrigin = o
				break
			}
		}

		if allowedOrigin == "" {
			c.Next()
			return
		}

		if allowedOrigin == "*" && opts.AllowCredentials && origin != "" {
			allowedOrigin = origin
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Origin", allowedOrigin)
		if opts.AllowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method == http.MethodOptions {
			headers := allowHeaders
			if headers == "*" {
				if requested := c.GetHeader("Access-Control-Request-Headers"); requested != "" {
					headers = requested
				}
			}
			c.Header("Access-Control-Allow-Methods", allowMethods)
			c.Header("Access-Control-Allow-Headers", headers)
			c.Header("Access-Control-Max-Age", maxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
