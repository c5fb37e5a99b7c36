package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/iliyamo/cinema-ticket-booking/internal/config"
)

// CheckoutRequest describes a checkout session for one booking.  The whole
// booking is charged as a single line item.
type CheckoutRequest struct {
	LineItemName         string
	UnitAmountMinorUnits int64
	SuccessURL           string
	CancelURL            string
	BookingID            string
	ExpiresAt            time.Time
}

// CheckoutSession is the reference returned to the caller.
type CheckoutSession struct {
	SessionID string
	URL       string
	ExpiresAt time.Time // after this the session can no longer be paid
}

// PaymentEvent is a verified webhook notification about a checkout session.
type PaymentEvent struct {
	Type      string
	SessionID string
	BookingID string
	Paid      bool
}

// minCheckoutTTL is the shortest expiry Stripe accepts for a session.
const minCheckoutTTL = 30 * time.Minute

// PaymentClient opens and expires Stripe Checkout sessions.
type PaymentClient struct {
	api           *client.API
	currency      string
	webhookSecret string
}

func NewPaymentClient(cfg config.PaymentConfig) *PaymentClient {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return &PaymentClient{api: api, currency: cfg.Currency, webhookSecret: cfg.WebhookSecret}
}

// CreateCheckoutSession opens a session.  It is never retried blindly: the
// idempotency key derived from the booking id makes a repeated call return
// the same session instead of charging twice.
func (c *PaymentClient) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	expiresAt := req.ExpiresAt
	if earliest := time.Now().Add(minCheckoutTTL); expiresAt.Before(earliest) {
		expiresAt = earliest
	}
	params := &stripe.CheckoutSessionParams{
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(c.currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{Name: stripe.String(req.LineItemName)},
				UnitAmount:  stripe.Int64(req.UnitAmountMinorUnits),
			},
			Quantity: stripe.Int64(1),
		}},
		ExpiresAt: stripe.Int64(expiresAt.Unix()),
	}
	params.Context = ctx
	params.AddMetadata("bookingId", req.BookingID)
	params.SetIdempotencyKey("checkout-" + req.BookingID)

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("%w: create checkout session: %v", ErrUpstreamUnavailable, err)
	}
	return CheckoutSession{SessionID: s.ID, URL: s.URL, ExpiresAt: time.Unix(s.ExpiresAt, 0).UTC()}, nil
}

// ExpireSession closes an open session so it can no longer be paid.  It
// reports paid=true when the session had already been paid, in which case
// nothing is expired.
func (c *PaymentClient) ExpireSession(ctx context.Context, sessionID string) (bool, error) {
	s, err := c.getSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if isPaid(s) {
		return true, nil
	}
	if s.Status == stripe.CheckoutSessionStatusExpired {
		return false, nil
	}
	if _, err := c.api.CheckoutSessions.Expire(sessionID, &stripe.CheckoutSessionExpireParams{Params: stripe.Params{Context: ctx}}); err != nil {
		// The session may have completed between the read and the expire.
		s, getErr := c.getSession(ctx, sessionID)
		if getErr == nil && isPaid(s) {
			return true, nil
		}
		return false, fmt.Errorf("%w: expire checkout session: %v", ErrUpstreamUnavailable, err)
	}
	return false, nil
}

func (c *PaymentClient) getSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	s, err := c.api.CheckoutSessions.Get(sessionID, &stripe.CheckoutSessionParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return nil, fmt.Errorf("%w: get checkout session: %v", ErrUpstreamUnavailable, err)
	}
	return s, nil
}

func isPaid(s *stripe.CheckoutSession) bool {
	return s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
		s.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired
}

// ParseWebhook verifies the Stripe-Signature header and decodes checkout
// session events.  Other event types are returned with an empty BookingID.
func (c *PaymentClient) ParseWebhook(payload []byte, signature string) (PaymentEvent, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return PaymentEvent{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	out := PaymentEvent{Type: string(ev.Type)}
	switch out.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return PaymentEvent{}, fmt.Errorf("decode checkout session: %w", err)
		}
		out.SessionID = s.ID
		out.BookingID = s.Metadata["bookingId"]
		out.Paid = isPaid(&s)
	}
	return out, nil
}
