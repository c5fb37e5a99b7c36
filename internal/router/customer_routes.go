package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-ticket-booking/internal/config"
	"github.com/iliyamo/cinema-ticket-booking/internal/handler"
	"github.com/iliyamo/cinema-ticket-booking/internal/middleware"
)

// RegisterCustomer registers the signed-in user's booking endpoints under
// /v1/bookings.  All routes require a valid JWT; any role may book.
// Creating a booking is additionally rate limited per user.
func RegisterCustomer(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group("/v1/bookings", middleware.JWTAuth(jwtSecret))
	g.POST("", h.Create, middleware.TokenBucket(rlCfg, rdb))
	g.GET("/mine", h.Mine)
	g.POST("/:id/checkout", h.Checkout)
}
