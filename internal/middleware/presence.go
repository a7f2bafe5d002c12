package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
)

// PresenceToucher refreshes a user's online marker.
type PresenceToucher interface {
	Touch(ctx context.Context, userID string) bool
}

// Presence refreshes the caller's last_seen once the request has been served.
// It must run after JWT.
func Presence(presence PresenceToucher) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if presence == nil {
			return
		}
		if claims, ok := Claims(c); ok {
			presence.Touch(context.WithoutCancel(c.Request.Context()), claims.UserID)
		}
	}
}
