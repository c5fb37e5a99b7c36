package middleware

// identity.go exposes the caller identity stored by JWTAuth to handlers and
// to the rate limiter.

import "github.com/labstack/echo/v4"

// UserID returns the authenticated user's id, or "" for anonymous requests.
func UserID(c echo.Context) string {
	if v, ok := c.Get(ctxUserID).(string); ok {
		return v
	}
	return ""
}

// Role returns the upper-cased role claim of the caller, or "".
func Role(c echo.Context) string {
	if v, ok := c.Get(ctxRole).(string); ok {
		return v
	}
	return ""
}

// IsAdmin reports whether the caller holds the admin role.
func IsAdmin(c echo.Context) bool { return Role(c) == RoleAdmin }
