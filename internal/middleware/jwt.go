package middleware // reusable HTTP middleware for the booking API

import (
	"net/http" // HTTP status codes for responses
	"strings"  // prefix checking and trimming of the Authorization header

	"github.com/golang-jwt/jwt/v5" // JWT parsing and validation
	"github.com/labstack/echo/v4"  // Echo middleware and context
)

// Context keys populated by JWTAuth.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// JWTAuth returns an Echo middleware that validates a Bearer token signed
// with HS256 and stores its subject (the identity-provider user id) and
// role claims in the request context.  Handlers read them with UserID and
// Role.  Tokens come from the identity provider's JWT template or, in
// development, from cmd/devtoken.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return deny(c, http.StatusUnauthorized, "not authorized")
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Only HMAC signatures are accepted; anything else would let a
			// caller pick the verification algorithm.
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return deny(c, http.StatusUnauthorized, "not authorized")
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return deny(c, http.StatusUnauthorized, "not authorized")
			}
			sub, _ := claims["sub"].(string)
			if sub == "" {
				return deny(c, http.StatusUnauthorized, "not authorized")
			}

			c.Set(ctxUserID, sub)
			// Clerk session tokens carry the role in public metadata; dev
			// tokens carry it as a top-level claim.
			role, _ := claims["role"].(string)
			if role == "" {
				if md, ok := claims["metadata"].(map[string]interface{}); ok {
					role, _ = md["role"].(string)
				}
			}
			c.Set(ctxRole, strings.ToUpper(role))
			return next(c)
		}
	}
}

// deny writes the error envelope used across the API.
func deny(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "message": msg})
}
