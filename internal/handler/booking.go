package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-booking/internal/middleware"
)

// BookingHandler serves the signed-in user's booking flow.  All routes run
// behind JWTAuth, so the user id is always present.
type BookingHandler struct {
	Bookings  Bookings
	PublicURL string // web client origin used for checkout redirects
}

func NewBookingHandler(bookings Bookings, publicURL string) *BookingHandler {
	return &BookingHandler{Bookings: bookings, PublicURL: publicURL}
}

type createBookingRequest struct {
	ShowID        string   `json:"showId"`
	SelectedSeats []string `json:"selectedSeats"`
}

// Create handles POST /v1/bookings.  It holds the seats for the hold
// window and returns the checkout URL the client should redirect to.
// Held seats answer 409 with the conflicting labels.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.ShowID == "" {
		return fail(c, http.StatusBadRequest, "showId is required")
	}
	b, err := h.Bookings.CreateBooking(c.Request().Context(), req.ShowID, middleware.UserID(c), req.SelectedSeats, h.PublicURL)
	if err != nil {
		return respondError(c, err)
	}
	url := ""
	if b.PaymentLink != nil {
		url = *b.PaymentLink
	}
	return ok(c, http.StatusCreated, echo.Map{"url": url, "booking": b.View()})
}

// Mine handles GET /v1/bookings/mine.
func (h *BookingHandler) Mine(c echo.Context) error {
	bookings, err := h.Bookings.ListUserBookings(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"bookings": bookings})
}

// Checkout handles POST /v1/bookings/:id/checkout and returns the payment
// link of the caller's unpaid booking.
func (h *BookingHandler) Checkout(c echo.Context) error {
	url, err := h.Bookings.RetryCheckout(c.Request().Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"url": url})
}
