// Package handler exposes the booking service over HTTP.  Every response
// uses the same envelope: {"success": true, ...} on success and
// {"success": false, "message": "..."} on failure.
package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-booking/internal/gateway"
	"github.com/iliyamo/cinema-ticket-booking/internal/log"
	"github.com/iliyamo/cinema-ticket-booking/internal/repository"
	"github.com/iliyamo/cinema-ticket-booking/internal/service"
)

// ok writes a success envelope with the given fields.
func ok(c echo.Context, status int, fields echo.Map) error {
	body := echo.Map{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	return c.JSON(status, body)
}

// fail writes a failure envelope.
func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "message": msg})
}

// respondError maps a service error onto its HTTP status.  Unknown errors
// are logged with the request's correlation id and hidden from the client.
func respondError(c echo.Context, err error) error {
	var (
		verr        *service.ValidationError
		unavailable *repository.SeatsUnavailableError
	)
	switch {
	case errors.As(err, &verr):
		return fail(c, http.StatusBadRequest, verr.Message)
	case errors.As(err, &unavailable):
		return c.JSON(http.StatusConflict, echo.Map{
			"success": false,
			"message": "Selected seats are not available.",
			"seats":   unavailable.Seats,
		})
	case errors.Is(err, repository.ErrSeatsUnavailable):
		return fail(c, http.StatusConflict, "Selected seats are not available.")
	case errors.Is(err, repository.ErrNotFound):
		return fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrConflict):
		return fail(c, http.StatusConflict, "a show already exists at that time")
	case errors.Is(err, gateway.ErrInvalidSignature):
		return fail(c, http.StatusBadRequest, "invalid webhook signature")
	case errors.Is(err, gateway.ErrUpstreamUnavailable):
		log.FromContext(c.Request().Context()).WithError(err).Warn("upstream call failed")
		return fail(c, http.StatusBadGateway, "upstream service unavailable")
	}
	log.FromContext(c.Request().Context()).WithError(err).
		WithField("path", c.Request().URL.Path).Error("request failed")
	return fail(c, http.StatusInternalServerError, "internal server error")
}
