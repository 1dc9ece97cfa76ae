package middleware

import (
	"mlbilling/internal/app/role"

	"github.com/gin-gonic/gin"
)

const (
	userIDKey   = "userID"
	userRoleKey = "userRole"
)

// SetCurrentUser stores the authenticated user in the request context.
func SetCurrentUser(c *gin.Context, id uint, r role.Role) {
	c.Set(userIDKey, id)
	c.Set(userRoleKey, r)
}

// CurrentUser returns the user WithAuthCheck stored. ok is false on routes
// without the check.
func CurrentUser(c *gin.Context) (id uint, r role.Role, ok bool) {
	v, exists := c.Get(userIDKey)
	if !exists {
		return 0, role.User, false
	}
	id, ok = v.(uint)
	if !ok {
		return 0, role.User, false
	}
	rv, _ := c.Get(userRoleKey)
	r, _ = rv.(role.Role)
	return id, r, true
}
