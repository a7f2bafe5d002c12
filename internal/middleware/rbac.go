package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/safedocs-api/internal/models"
	appErrors "github.com/noah-isme/safedocs-api/pkg/errors"
	"github.com/noah-isme/safedocs-api/pkg/response"
)

// RBAC enforces role-based access control for routes. The pseudo role SELF
// admits callers whose id matches the :id route parameter.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowSelf := false
	allowedRoles := make(map[models.UserRole]struct{})
	for _, a := range allowed {
		if a == "SELF" {
			allowSelf = true
			continue
		}
		allowedRoles[models.UserRole(a)] = struct{}{}
	}

	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}

		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}

		if allowSelf {
			if targetID := c.Param("id"); targetID != "" && targetID == claims.UserID {
				c.Next()
				return
			}
		}

		response.Abort(c, appErrors.ErrForbidden)
	}
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}

// RequirePermission admits callers whose role grants any of perms.
func RequirePermission(perms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		for _, perm := range perms {
			if models.RoleHasPermission(claims.Role, perm) {
				c.Next()
				return
			}
		}
		response.Abort(c, appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions"))
	}
}
