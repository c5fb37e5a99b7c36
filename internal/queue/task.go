// Package queue defines the deferred tasks exchanged over RabbitMQ and the
// publisher/consumer pair that schedules and executes them.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind names a task type.  The consumer routes on it.
type Kind string

const (
	// KindFinalizeBooking runs the hold-window check of a booking.
	KindFinalizeBooking Kind = "booking.finalize"
	// KindBookingConfirmed sends the payment confirmation email.
	KindBookingConfirmed Kind = "booking.confirmed"
	// KindShowAdded announces a newly scheduled movie to all users.
	KindShowAdded Kind = "show.added"
)

// Task is the message body published to the broker.
type Task struct {
	ID            string          `json:"id"`
	Kind          Kind            `json:"kind"`
	Payload       json.RawMessage `json:"payload"`
	NotBefore     time.Time       `json:"not_before"`
	Attempt       int             `json:"attempt"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// BookingPayload is the payload of booking.finalize and booking.confirmed.
type BookingPayload struct {
	BookingID string `json:"bookingId"`
}

// ShowAddedPayload is the payload of show.added.
type ShowAddedPayload struct {
	MovieID    string `json:"movieId"`
	MovieTitle string `json:"movieTitle"`
}

// Scheduler is the outbound side of the task boundary.  Schedule defers
// execution until notBefore; Dispatch asks for execution as soon as a
// consumer is free.  Callers never assume in-process execution.
type Scheduler interface {
	Schedule(ctx context.Context, kind Kind, payload any, notBefore time.Time) error
	Dispatch(ctx context.Context, kind Kind, payload any) error
}

// NewTask marshals payload into a task of the given kind.
func NewTask(kind Kind, payload any, notBefore time.Time) (Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Task{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Task{
		ID:        uuid.NewString(),
		Kind:      kind,
		Payload:   raw,
		NotBefore: notBefore.UTC(),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the payload into dst.
func (t Task) Decode(dst any) error {
	if err := json.Unmarshal(t.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", t.Kind, err)
	}
	return nil
}
