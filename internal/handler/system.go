package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"markr/internal/apperr"
	"markr/internal/auth"
)

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) bool

// Health reports every named check. Any failing check yields 503.
func Health(checks map[string]Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		body := gin.H{}
		status := http.StatusOK
		for name, check := range checks {
			ok := check(ctx)
			body[name] = ok
			if !ok {
				status = http.StatusServiceUnavailable
			}
		}
		body["status"] = "ok"
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		c.JSON(status, body)
	}
}

type devTokenRequest struct {
	Operator string `json:"operator" binding:"required,max=64"`
	Name     string `json:"name" binding:"max=120"`
	Role     string `json:"role" binding:"omitempty,oneof=teacher admin"`
}

// DevToken issues an operator token without credentials. Mount it only in
// development.
func DevToken(issuer, signingKey string, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req devTokenRequest
		if !bindJSON(c, &req, false) {
			return
		}
		token, err := auth.Issue(req.Operator, req.Name, req.Role, issuer, signingKey, ttl)
		if err != nil {
			writeError(c, apperr.Wrap(err, apperr.ErrInternal.Code, apperr.ErrInternal.Status, "token issue failed"), nil)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"access_token": token.AccessToken,
			"expires_at":   token.ExpiresAt.Unix(),
		})
	}
}
