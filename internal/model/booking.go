package model

import (
	"database/sql/driver"
	"time"
)

// Booking records a user's claim on a set of seats for one show.  It is
// created unpaid; it either becomes paid or is deleted together with its
// seats when the hold window elapses.
//
// Fields:
//  ID               – uuid primary key.
//  UserID           – user who made the booking.
//  ShowID           – show being booked.
//  Seats            – seat labels claimed.
//  AmountCents      – show price times seat count, in minor units.
//  IsPaid           – payment state.
//  PaymentLink      – checkout URL surfaced to the user (nullable).
//  PaymentSessionID – checkout session reference (nullable).
//  PaymentExpiresAt – when the checkout session stops accepting payment (nullable).
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Booking struct {
	ID               string     `db:"id" json:"_id"`
	UserID           string     `db:"user_id" json:"user"`
	ShowID           string     `db:"show_id" json:"show"`
	Seats            SeatLabels `db:"seats" json:"bookedSeats"`
	AmountCents      int64      `db:"amount_cents" json:"amount_cents"`
	IsPaid           bool       `db:"is_paid" json:"isPaid"`
	PaymentLink      *string    `db:"payment_link" json:"paymentLink,omitempty"`
	PaymentSessionID *string    `db:"payment_session_id" json:"-"`
	PaymentExpiresAt *time.Time `db:"payment_expires_at" json:"-"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updatedAt"`
}

// Amount returns the total in major currency units.
func (b Booking) Amount() float64 { return CentsToAmount(b.AmountCents) }

// BookingView is the JSON shape of a bare booking: the stored fields plus
// the amount in major units.
type BookingView struct {
	Booking
	Amount float64 `json:"amount"`
}

// View returns b with its derived amount filled.
func (b Booking) View() BookingView { return BookingView{Booking: b, Amount: b.Amount()} }

// SeatLabels is stored as a JSON array column.
type SeatLabels []string

func (s SeatLabels) Value() (driver.Value, error) { return jsonValue(s) }
func (s *SeatLabels) Scan(src any) error        { return jsonScan(src, s) }

// BookingDetail is a booking joined with its user, show and movie, used by
// the admin listing, the "my bookings" page and notification emails.
type BookingDetail struct {
	Booking
	Amount float64 `json:"amount"`
	User   User    `json:"userInfo"`
	Show   Show    `json:"showInfo"`
	Movie  Movie   `json:"movie"`
}

// NewBookingDetail fills the derived amount.
func NewBookingDetail(b Booking, u User, s Show, m Movie) BookingDetail {
	return BookingDetail{Booking: b, Amount: b.Amount(), User: u, Show: s, Movie: m}
}
