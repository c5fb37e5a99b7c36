package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

const bookingColumns = `id, user_id, show_id, seats, amount_cents, is_paid, payment_link, payment_session_id, payment_expires_at, created_at, updated_at`

// BookingRepo persists bookings together with the seats they hold.  Every
// method that changes occupancy runs in one transaction that first locks
// the show row, so the booking row and its show_seats rows always appear
// and disappear together.
type BookingRepo struct {
	db *sqlx.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sqlx.DB) *BookingRepo { return &BookingRepo{db: db} }

// Create inserts an unpaid booking and marks its seats occupied.  If any
// seat is already held it returns a *SeatsUnavailableError listing the
// held seats in request order and writes nothing.  A missing show yields
// ErrShowNotFound.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := lockShowTx(ctx, tx, b.ShowID); err != nil {
		return err
	}
	taken, err := takenTx(ctx, tx, b.ShowID, b.Seats)
	if err != nil {
		return err
	}
	if len(taken) > 0 {
		conflicts := make([]string, 0, len(taken))
		for _, l := range b.Seats {
			if taken[l] {
				conflicts = append(conflicts, l)
			}
		}
		return &SeatsUnavailableError{Seats: conflicts}
	}

	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO bookings (id, user_id, show_id, seats, amount_cents, is_paid)
		VALUES (:id, :user_id, :show_id, :seats, :amount_cents, FALSE)`, b); err != nil {
		return err
	}
	seats := make([]model.ShowSeat, 0, len(b.Seats))
	for _, l := range b.Seats {
		seats = append(seats, model.ShowSeat{ShowID: b.ShowID, SeatLabel: l, BookingID: b.ID, UserID: b.UserID})
	}
	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO show_seats (show_id, seat_label, booking_id, user_id)
		VALUES (:show_id, :seat_label, :booking_id, :user_id)`, seats); err != nil {
		// The primary key on (show_id, seat_label) is the last line of
		// defence if another writer slipped past the row lock.
		if isDuplicateKey(err) {
			return &SeatsUnavailableError{Seats: b.Seats}
		}
		return err
	}
	if err := tx.GetContext(ctx, b, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, b.ID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// MarkPaid moves an unpaid booking to paid.  It reports whether the state
// changed; confirming a paid booking is a no-op returning false.  A booking
// that no longer exists (released) yields ErrBookingNotFound.
func (r *BookingRepo) MarkPaid(ctx context.Context, id string) (bool, error) {
	var changed bool
	err := r.withBookingLocked(ctx, id, func(tx *sqlx.Tx, b *model.Booking) error {
		if b.IsPaid {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `UPDATE bookings SET is_paid = TRUE WHERE id = ? AND is_paid = FALSE`, id); err != nil {
			return err
		}
		changed = true
		return nil
	})
	return changed, err
}

// ReleaseUnpaid deletes an unpaid booking and frees its seats in one
// transaction.  A paid booking is left untouched and false is returned.
func (r *BookingRepo) ReleaseUnpaid(ctx context.Context, id string) (bool, error) {
	var released bool
	err := r.withBookingLocked(ctx, id, func(tx *sqlx.Tx, b *model.Booking) error {
		if b.IsPaid {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM show_seats WHERE booking_id = ?`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ? AND is_paid = FALSE`, id); err != nil {
			return err
		}
		released = true
		return nil
	})
	return released, err
}

// withBookingLocked runs fn with the booking's show row locked and the
// booking row re-read under that lock.  Lock order is always show then
// booking so concurrent reservations and releases cannot deadlock.
func (r *BookingRepo) withBookingLocked(ctx context.Context, id string, fn func(tx *sqlx.Tx, b *model.Booking) error) error {
	var showID string
	if err := r.db.GetContext(ctx, &showID, `SELECT show_id FROM bookings WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrBookingNotFound
		}
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := lockShowTx(ctx, tx, showID); err != nil {
		return err
	}
	var b model.Booking
	if err := tx.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id = ? FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrBookingNotFound
		}
		return err
	}
	if err := fn(tx, &b); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// SetPaymentSession records the checkout session opened for a booking and
// the time it stops accepting payment.
func (r *BookingRepo) SetPaymentSession(ctx context.Context, id, sessionID, link string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET payment_session_id = ?, payment_link = ?, payment_expires_at = ? WHERE id = ?`,
		sessionID, link, expiresAt.UTC(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL reports 0 affected rows when values are unchanged, so
		// confirm the row still exists before calling it missing.
		var exists bool
		if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM bookings WHERE id = ?)`, id); err != nil {
			return err
		}
		if !exists {
			return ErrBookingNotFound
		}
	}
	return nil
}

// ListUnpaidCreatedBefore returns the ids of unpaid bookings created before
// cutoff, oldest first.
func (r *BookingRepo) ListUnpaidCreatedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	ids := []string{}
	err := r.db.SelectContext(ctx, &ids,
		`SELECT id FROM bookings WHERE is_paid = FALSE AND created_at < ? ORDER BY created_at`, cutoff.UTC())
	return ids, err
}

// GetByID returns ErrBookingNotFound for unknown or released bookings.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	var b model.Booking
	err := r.db.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// bookingDetailRow scans a booking joined with its user, show and movie.
// Nested structs map to dotted column aliases ("u.id", "s.id", "m.id").
type bookingDetailRow struct {
	model.Booking
	User  model.User  `db:"u"`
	Show  model.Show  `db:"s"`
	Movie model.Movie `db:"m"`
}

const bookingDetailSelect = `
	SELECT b.id, b.user_id, b.show_id, b.seats, b.amount_cents, b.is_paid, b.payment_link,
		   b.payment_session_id, b.payment_expires_at, b.created_at, b.updated_at,
		   COALESCE(u.id, b.user_id) AS ` + "`u.id`" + `,
		   COALESCE(u.name, '') AS ` + "`u.name`" + `,
		   COALESCE(u.email, '') AS ` + "`u.email`" + `,
		   COALESCE(u.image_url, '') AS ` + "`u.image_url`" + `,
		   COALESCE(u.created_at, b.created_at) AS ` + "`u.created_at`" + `,
		   COALESCE(u.updated_at, b.created_at) AS ` + "`u.updated_at`" + `,
		   s.id AS ` + "`s.id`" + `, s.movie_id AS ` + "`s.movie_id`" + `,
		   s.starts_at AS ` + "`s.starts_at`" + `, s.price_cents AS ` + "`s.price_cents`" + `,
		   s.created_at AS ` + "`s.created_at`" + `,
		   m.id AS ` + "`m.id`" + `, m.title AS ` + "`m.title`" + `, m.overview AS ` + "`m.overview`" + `,
		   m.poster_path AS ` + "`m.poster_path`" + `, m.backdrop_path AS ` + "`m.backdrop_path`" + `,
		   m.release_date AS ` + "`m.release_date`" + `, m.original_language AS ` + "`m.original_language`" + `,
		   m.tagline AS ` + "`m.tagline`" + `, m.genres AS ` + "`m.genres`" + `, m.casts AS ` + "`m.casts`" + `,
		   m.vote_average AS ` + "`m.vote_average`" + `, m.runtime AS ` + "`m.runtime`" + `,
		   m.created_at AS ` + "`m.created_at`" + `
	FROM bookings b
	JOIN shows s ON s.id = b.show_id
	JOIN movies m ON m.id = s.movie_id
	LEFT JOIN users u ON u.id = b.user_id`

func (r *BookingRepo) selectDetails(ctx context.Context, where string, args ...any) ([]model.BookingDetail, error) {
	var rows []bookingDetailRow
	if err := r.db.SelectContext(ctx, &rows, bookingDetailSelect+" "+where, args...); err != nil {
		return nil, err
	}
	out := make([]model.BookingDetail, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.NewBookingDetail(row.Booking, row.User, row.Show, row.Movie))
	}
	return out, nil
}

// GetDetail returns one booking with its joined user, show and movie.
func (r *BookingRepo) GetDetail(ctx context.Context, id string) (*model.BookingDetail, error) {
	details, err := r.selectDetails(ctx, "WHERE b.id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return nil, ErrBookingNotFound
	}
	return &details[0], nil
}

// ListDetailsByUser returns a user's bookings, newest first.
func (r *BookingRepo) ListDetailsByUser(ctx context.Context, userID string) ([]model.BookingDetail, error) {
	return r.selectDetails(ctx, "WHERE b.user_id = ? ORDER BY b.created_at DESC", userID)
}

// ListDetails returns every booking, newest first.
func (r *BookingRepo) ListDetails(ctx context.Context) ([]model.BookingDetail, error) {
	return r.selectDetails(ctx, "ORDER BY b.created_at DESC")
}

// PaidTotals returns the number of paid bookings and the sum of their
// amounts.  Both are zero on an empty table.
func (r *BookingRepo) PaidTotals(ctx context.Context) (count int64, amountCents int64, err error) {
	var row struct {
		Count int64 `db:"cnt"`
		Sum   int64 `db:"total"`
	}
	err = r.db.GetContext(ctx, &row,
		`SELECT COUNT(*) AS cnt, COALESCE(SUM(amount_cents), 0) AS total FROM bookings WHERE is_paid = TRUE`)
	return row.Count, row.Sum, err
}
