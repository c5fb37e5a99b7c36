package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// PaymentMock records checkout sessions in memory.  Paid marks sessions
// the test (or a dev operator) considers completed.
type PaymentMock struct {
	mock      sync.Mutex
	Sessions  map[string]CheckoutRequest
	Paid      map[string]bool
	Expired   map[string]bool
	CreateErr error
	ExpireErr error
}

func (c *PaymentMock) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	c.mock.Lock()
	defer c.mock.Unlock()
	if c.CreateErr != nil {
		return CheckoutSession{}, c.CreateErr
	}
	if c.Sessions == nil {
		c.Sessions = make(map[string]CheckoutRequest)
	}
	id := "cs_" + req.BookingID
	c.Sessions[id] = req
	return CheckoutSession{SessionID: id, URL: "https://checkout.local/" + id, ExpiresAt: req.ExpiresAt}, nil
}

func (c *PaymentMock) ExpireSession(ctx context.Context, sessionID string) (bool, error) {
	c.mock.Lock()
	defer c.mock.Unlock()
	if c.Paid[sessionID] {
		return true, nil
	}
	if c.ExpireErr != nil {
		return false, c.ExpireErr
	}
	if c.Expired == nil {
		c.Expired = make(map[string]bool)
	}
	c.Expired[sessionID] = true
	return false, nil
}

// MarkPaid simulates a completed checkout.
func (c *PaymentMock) MarkPaid(sessionID string) {
	c.mock.Lock()
	defer c.mock.Unlock()
	if c.Paid == nil {
		c.Paid = make(map[string]bool)
	}
	c.Paid[sessionID] = true
}

// ParseWebhook accepts an unsigned {"type", "sessionId", "bookingId"} body
// so the payment webhook can be driven by hand in development.  A
// completed checkout also marks the session paid.
func (c *PaymentMock) ParseWebhook(payload []byte, signature string) (PaymentEvent, error) {
	var body struct {
		Type      string `json:"type"`
		SessionID string `json:"sessionId"`
		BookingID string `json:"bookingId"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return PaymentEvent{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	ev := PaymentEvent{Type: body.Type, SessionID: body.SessionID, BookingID: body.BookingID}
	if body.Type == "checkout.session.completed" {
		ev.Paid = true
		if body.SessionID != "" {
			c.MarkPaid(body.SessionID)
		}
	}
	return ev, nil
}
