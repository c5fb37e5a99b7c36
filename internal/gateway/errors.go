package gateway

import "errors"

// ErrUpstreamUnavailable wraps every failure of an external provider
// (catalog, payment, mail) that is not a plain "not found".
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")
