package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-booking/internal/log"
	"github.com/iliyamo/cinema-ticket-booking/internal/service"
)

// maxWebhookBody bounds webhook payloads read into memory.
const maxWebhookBody = 256 << 10

// WebhookHandler receives signed callbacks from the payment and identity
// providers.  Signatures are checked over the raw body before anything is
// decoded.
type WebhookHandler struct {
	Payments   PaymentEvents
	Bookings   Bookings
	Signatures IdentitySignatures // nil disables verification (development only)
	Identities Identities
}

func NewWebhookHandler(payments PaymentEvents, bookings Bookings, signatures IdentitySignatures, identities Identities) *WebhookHandler {
	return &WebhookHandler{Payments: payments, Bookings: bookings, Signatures: signatures, Identities: identities}
}

func readBody(c echo.Context) ([]byte, error) {
	return io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
}

// Payment handles POST /webhooks/payment.  A completed checkout confirms
// its booking; other event types are acknowledged and ignored.
func (h *WebhookHandler) Payment(c echo.Context) error {
	payload, err := readBody(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "unreadable body")
	}
	ev, err := h.Payments.ParseWebhook(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		return respondError(c, err)
	}

	ctx := c.Request().Context()
	logger := log.FromContext(ctx).WithFields(logrus.Fields{"event": ev.Type, "booking_id": ev.BookingID})
	if !ev.Paid || ev.BookingID == "" {
		logger.Debug("payment event ignored")
		return ok(c, http.StatusOK, echo.Map{"received": true})
	}
	if err := h.Bookings.ConfirmPayment(ctx, ev.BookingID); err != nil {
		return respondError(c, err)
	}
	logger.Info("payment confirmed")
	return ok(c, http.StatusOK, echo.Map{"received": true})
}

// Identity handles POST /webhooks/identity and mirrors user lifecycle
// events into the users table.
func (h *WebhookHandler) Identity(c echo.Context) error {
	payload, err := readBody(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "unreadable body")
	}
	if h.Signatures != nil {
		if err := h.Signatures.Verify(payload, c.Request().Header); err != nil {
			return respondError(c, err)
		}
	}
	var ev service.IdentityEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fail(c, http.StatusBadRequest, "invalid event body")
	}
	if err := h.Identities.HandleIdentityEvent(c.Request().Context(), ev); err != nil {
		return respondError(c, err)
	}
	return ok(c, http.StatusOK, echo.Map{"received": true})
}
