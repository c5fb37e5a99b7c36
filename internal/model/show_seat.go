package model

import "time"

// ShowSeat is one occupied seat of a show.  A seat without a row is free.
// Every row belongs to exactly one live booking and is removed together
// with it.
//
// Fields:
//  ShowID    – show the seat belongs to.
//  SeatLabel – seat label such as "A1".
//  BookingID – booking holding the seat.
//  UserID    – user holding the seat.
//  CreatedAt – when the seat was taken.
type ShowSeat struct {
	ShowID    string    `db:"show_id"`
	SeatLabel string    `db:"seat_label"`
	BookingID string    `db:"booking_id"`
	UserID    string    `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
}
