// Package handler exposes the attendance workflow over HTTP.
package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"markr/internal/apperr"
)

// writeError renders err as {"error", "code"} plus any extra fields. The
// error is attached to the context so the request logger records it.
func writeError(c *gin.Context, err error, extra gin.H) {
	appErr := apperr.FromError(err)
	_ = c.Error(err)
	body := gin.H{"error": appErr.Message, "code": appErr.Code}
	for k, v := range extra {
		body[k] = v
	}
	status := appErr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, body)
}

// bindJSON decodes the body into dst. An empty body leaves dst untouched
// when optional is set.
func bindJSON(c *gin.Context, dst interface{}, optional bool) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	if optional && errors.Is(err, io.EOF) {
		return true
	}
	writeError(c, apperr.Validation("invalid request body: "+err.Error()), nil)
	return false
}
