package middleware

import (
	"github.com/gin-gonic/gin"

	"mise/internal/core/appctx"
)

const (
	HeaderUserID     = "X-User-Id"
	HeaderBusinessID = "X-Business-Id"
)

// UserContext propagates the caller's identity from trusted gateway
// headers into the request context. Count submissions and re-edits
// record this id in their audit trail.
func UserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := &appctx.UserContext{
			UserID:     c.GetHeader(HeaderUserID),
			BusinessID: c.GetHeader(HeaderBusinessID),
		}

		ctx := appctx.WithUser(c.Request.Context(), user)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
