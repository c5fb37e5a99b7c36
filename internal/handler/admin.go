package handler

import (
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-booking/internal/service"
)

// AdminHandler groups the admin API: scheduling shows, the dashboard, the
// booking list and an on-demand reminder sweep.  Routes are guarded by
// JWTAuth and RequireRole(ADMIN).
type AdminHandler struct {
	Catalog   ShowCatalog
	Reports   Reports
	Reminders Reminders
}

func NewAdminHandler(catalog ShowCatalog, reports Reports, reminders Reminders) *AdminHandler {
	return &AdminHandler{Catalog: catalog, Reports: reports, Reminders: reminders}
}

// IsAdmin handles GET /v1/admin/is-admin.  Reaching it means the role
// check passed.
func (h *AdminHandler) IsAdmin(c echo.Context) error {
	return ok(c, http.StatusOK, echo.Map{"isAdmin": true})
}

type addShowsRequest struct {
	MovieID    string              `json:"movieId"`
	ShowsInput []service.DateTimes `json:"showsInput"`
	ShowPrice  float64             `json:"showPrice"`
}

// AddShows handles POST /v1/admin/shows.  The price is given in major
// currency units and stored in cents.
func (h *AdminHandler) AddShows(c echo.Context) error {
	var req addShowsRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	priceCents := int64(math.Round(req.ShowPrice * 100))
	shows, err := h.Catalog.CreateShowSlots(c.Request().Context(), req.MovieID, req.ShowsInput, priceCents)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, http.StatusCreated, echo.Map{"message": "Show Added successfully.", "shows": shows})
}

// ListShows handles GET /v1/admin/shows.
func (h *AdminHandler) ListShows(c echo.Context) error {
	shows, err := h.Catalog.ListUpcomingShows(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"shows": shows})
}

// Dashboard handles GET /v1/admin/dashboard.
func (h *AdminHandler) Dashboard(c echo.Context) error {
	d, err := h.Reports.Dashboard(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"dashboardData": d})
}

// Bookings handles GET /v1/admin/bookings.
func (h *AdminHandler) Bookings(c echo.Context) error {
	bookings, err := h.Reports.AllBookings(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"bookings": bookings})
}

// RunReminders handles POST /v1/admin/reminders/run and performs one
// reminder sweep as of now.
func (h *AdminHandler) RunReminders(c echo.Context) error {
	res, err := h.Reminders.SendShowReminders(c.Request().Context(), time.Now())
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"sent": res.Sent, "failed": res.Failed})
}
