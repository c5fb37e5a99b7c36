package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"                             // Echo web framework
	"github.com/prometheus/client_golang/prometheus/promhttp" // exposes the default metrics registry
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-ticket-booking/internal/config"
	"github.com/iliyamo/cinema-ticket-booking/internal/handler"
	"github.com/iliyamo/cinema-ticket-booking/internal/middleware"
)

// RegisterRoutes registers the operational endpoints: a health check that
// pings the given dependencies and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, checks map[string]handler.Pinger) {
	e.GET("/healthz", handler.Health(checks))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterPublic registers the unauthenticated catalog endpoints.  Catalog
// reads go through the Redis response cache; seat occupancy does not, since
// it changes with every booking and has its own invalidated cache.
func RegisterPublic(e *echo.Echo, h *handler.ShowHandler, cacheCfg config.CacheConfig, rdb *redis.Client) {
	cached := middleware.ResponseCache(cacheCfg, rdb)

	g := e.Group("/v1")
	g.GET("/shows", h.ListMovies, cached)
	g.GET("/shows/now-playing", h.NowPlaying, cached)
	g.GET("/shows/upcoming", h.ListUpcoming, cached)
	g.GET("/movies/:id", h.GetMovie, cached)
	g.GET("/shows/:showId", h.GetShow)
	g.GET("/shows/:showId/occupied-seats", h.OccupiedSeats)
}
