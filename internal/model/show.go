package model

import "time"

// Show is a single bookable screening of a movie at a specific start time
// and price.  Its occupancy lives in show_seats and is mutated only by the
// booking service.
//
// Fields:
//  ID         – uuid primary key.
//  MovieID    – catalog entry this show screens.
//  StartsAt   – scheduled start (UTC).  Canonical start-time field.
//  PriceCents – unit price per seat in minor currency units.
//  CreatedAt  – creation timestamp.
type Show struct {
	ID         string    `db:"id" json:"_id"`
	MovieID    string    `db:"movie_id" json:"movie_id"`
	StartsAt   time.Time `db:"starts_at" json:"showDateTime"`
	PriceCents int64     `db:"price_cents" json:"price_cents"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// Price returns the unit price in major currency units.
func (s Show) Price() float64 { return CentsToAmount(s.PriceCents) }

// ShowDetail is a show joined with its movie and current occupancy map
// (seat label -> holder user id).
type ShowDetail struct {
	Show
	ShowPrice     float64           `json:"showPrice"`
	Movie         Movie             `json:"movie"`
	OccupiedSeats map[string]string `json:"occupiedSeats"`
}

// ScheduleSlot is one entry in a movie's per-day schedule.
type ScheduleSlot struct {
	Time   time.Time `json:"time"`
	ShowID string    `json:"showId"`
}

// CentsToAmount converts minor units to a decimal amount.
func CentsToAmount(cents int64) float64 { return float64(cents) / 100 }
