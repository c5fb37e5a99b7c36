// Package repository contains data access logic for the booking domain.
// This file covers shows: bookable screenings of a cached movie at a given
// start time and unit price. Shows are created in batches by the admin
// and are never deleted; only their occupancy (show_seats) changes.
package repository

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides sentinel errors and tx options
	"errors"       // errors for sentinel comparisons
	"time"         // time bounds for upcoming/window queries

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

const showColumns = `id, movie_id, starts_at, price_cents, created_at`

// ShowRepo manages persistence for shows.
type ShowRepo struct {
	db *sqlx.DB
}

// NewShowRepo constructs a ShowRepo with the given DB handle.
func NewShowRepo(db *sqlx.DB) *ShowRepo {
	return &ShowRepo{db: db}
}

// CreateSlots inserts all shows in a single transaction.  Either every
// slot is created or none is.  A slot that already exists for the same
// movie and start time yields ErrConflict.
func (r *ShowRepo) CreateSlots(ctx context.Context, shows []model.Show) (err error) {
	if len(shows) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
			return
		}
		err = tx.Commit()
	}()

	for _, s := range shows {
		// Execute the insert using the provided transaction so that a
		// failing slot rolls back the ones inserted before it.
		if _, err = tx.NamedExecContext(ctx,
			`INSERT INTO shows (id, movie_id, starts_at, price_cents) VALUES (:id, :movie_id, :starts_at, :price_cents)`,
			s); err != nil {
			if isDuplicateKey(err) {
				err = ErrConflict
			}
			return err
		}
	}
	return nil
}

// GetByID retrieves a show by its ID.  It returns ErrShowNotFound if
// there is no matching row.
func (r *ShowRepo) GetByID(ctx context.Context, id string) (*model.Show, error) {
	var s model.Show
	err := r.db.GetContext(ctx, &s, `SELECT `+showColumns+` FROM shows WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShowNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ListUpcoming returns shows starting at or after now, ordered by start
// time ascending.  When no shows exist it returns an empty slice.
func (r *ShowRepo) ListUpcoming(ctx context.Context, now time.Time) ([]model.Show, error) {
	shows := []model.Show{}
	err := r.db.SelectContext(ctx, &shows,
		`SELECT `+showColumns+` FROM shows WHERE starts_at >= ? ORDER BY starts_at ASC`, now.UTC())
	return shows, err
}

// ListUpcomingByMovie is ListUpcoming restricted to one movie.
func (r *ShowRepo) ListUpcomingByMovie(ctx context.Context, movieID string, now time.Time) ([]model.Show, error) {
	shows := []model.Show{}
	err := r.db.SelectContext(ctx, &shows,
		`SELECT `+showColumns+` FROM shows WHERE movie_id = ? AND starts_at >= ? ORDER BY starts_at ASC`,
		movieID, now.UTC())
	return shows, err
}

// ListStartingBetween returns shows with from <= starts_at <= to.  The
// reminder sweep uses it with a narrow window a few hours ahead.
func (r *ShowRepo) ListStartingBetween(ctx context.Context, from, to time.Time) ([]model.Show, error) {
	shows := []model.Show{}
	err := r.db.SelectContext(ctx, &shows,
		`SELECT `+showColumns+` FROM shows WHERE starts_at BETWEEN ? AND ? ORDER BY starts_at ASC`,
		from.UTC(), to.UTC())
	return shows, err
}

// CountUpcoming counts shows starting at or after now.
func (r *ShowRepo) CountUpcoming(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM shows WHERE starts_at >= ?`, now.UTC())
	return n, err
}

// lockShowTx takes the row lock that serializes every occupancy change of
// one show.  Reservations, payment confirmations and releases of the same
// show queue up behind it; different shows never contend.
func lockShowTx(ctx context.Context, tx *sqlx.Tx, showID string) error {
	var id string
	err := tx.GetContext(ctx, &id, `SELECT id FROM shows WHERE id = ? FOR UPDATE`, showID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrShowNotFound
	}
	return err
}
