package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-booking/internal/handler"
	"github.com/iliyamo/cinema-ticket-booking/internal/middleware"
)

// RegisterAdmin registers admin endpoints under /v1/admin.  Every route
// requires a valid JWT carrying the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleAdmin),
	)
	g.GET("/is-admin", h.IsAdmin)
	g.POST("/shows", h.AddShows)
	g.GET("/shows", h.ListShows)
	g.GET("/dashboard", h.Dashboard)
	g.GET("/bookings", h.Bookings)
	g.POST("/reminders/run", h.RunReminders)
}
