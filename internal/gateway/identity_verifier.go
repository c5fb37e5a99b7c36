package gateway

import (
	"fmt"
	"net/http"

	svix "github.com/svix/svix-webhooks/go"
)

// IdentityVerifier checks the Svix signature headers (svix-id,
// svix-timestamp, svix-signature) that the identity provider attaches to
// its webhooks.
type IdentityVerifier struct {
	wh *svix.Webhook
}

func NewIdentityVerifier(secret string) (*IdentityVerifier, error) {
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("identity webhook secret: %w", err)
	}
	return &IdentityVerifier{wh: wh}, nil
}

func (v *IdentityVerifier) Verify(payload []byte, headers http.Header) error {
	if err := v.wh.Verify(payload, headers); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}
