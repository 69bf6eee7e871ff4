// Package httputils provides HTTP utility functions.
package httputils

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/ragpipe/pkg/utils/response"
)

// WriteResponse writes err as an error envelope, or data as a success envelope.
func WriteResponse(c *gin.Context, err error, data interface{}) {
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, data)
}
