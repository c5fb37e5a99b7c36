package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ShowHandler serves the public catalog: now playing, upcoming movies and
// shows, per-movie schedules and seat occupancy.  None of its routes
// require authentication.
type ShowHandler struct {
	Catalog  ShowCatalog
	Bookings Bookings
}

func NewShowHandler(catalog ShowCatalog, bookings Bookings) *ShowHandler {
	return &ShowHandler{Catalog: catalog, Bookings: bookings}
}

// NowPlaying handles GET /v1/shows/now-playing.
func (h *ShowHandler) NowPlaying(c echo.Context) error {
	movies, err := h.Catalog.NowPlaying(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"movies": movies})
}

// ListMovies handles GET /v1/shows and returns each movie with at least
// one upcoming show once.
func (h *ShowHandler) ListMovies(c echo.Context) error {
	movies, err := h.Catalog.ListUpcomingMovies(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"shows": movies})
}

// ListUpcoming handles GET /v1/shows/upcoming and returns show instances.
func (h *ShowHandler) ListUpcoming(c echo.Context) error {
	shows, err := h.Catalog.ListUpcomingShows(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"shows": shows})
}

// GetMovie handles GET /v1/movies/:id: the movie and its upcoming show
// times keyed by date.
func (h *ShowHandler) GetMovie(c echo.Context) error {
	sched, err := h.Catalog.GetMovieSchedule(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"movie": sched.Movie, "dateTime": sched.DateTime})
}

// GetShow handles GET /v1/shows/:showId.
func (h *ShowHandler) GetShow(c echo.Context) error {
	show, err := h.Catalog.GetShow(c.Request().Context(), c.Param("showId"))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"show": show})
}

// OccupiedSeats handles GET /v1/shows/:showId/occupied-seats.
func (h *ShowHandler) OccupiedSeats(c echo.Context) error {
	seats, err := h.Bookings.OccupiedSeats(c.Request().Context(), c.Param("showId"))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"occupiedSeats": seats})
}
