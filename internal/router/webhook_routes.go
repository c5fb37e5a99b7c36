package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-booking/internal/handler"
)

// RegisterWebhooks registers the provider callbacks.  They carry no JWT;
// each handler verifies the provider's signature over the raw body.
func RegisterWebhooks(e *echo.Echo, h *handler.WebhookHandler) {
	e.POST("/webhooks/payment", h.Payment)
	e.POST("/webhooks/identity", h.Identity)
}
