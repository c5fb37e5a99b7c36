package repository // repository for show seat occupancy

import (
	"context" // context for managing deadlines

	"github.com/jmoiron/sqlx"
)

// ShowSeatRepo reads the occupancy of shows.  Rows are written and removed
// only by BookingRepo, inside the same transaction as their booking.
type ShowSeatRepo struct {
	db *sqlx.DB
}

// NewShowSeatRepo constructs a ShowSeatRepo given a DB handle.
func NewShowSeatRepo(db *sqlx.DB) *ShowSeatRepo {
	return &ShowSeatRepo{db: db}
}

// Occupancy returns the occupancy map of a show: seat label -> holder user
// id.  Free seats are absent.  Released bookings leave no rows behind, so
// only unpaid-live and paid holds appear.
func (r *ShowSeatRepo) Occupancy(ctx context.Context, showID string) (map[string]string, error) {
	var rows []struct {
		SeatLabel string `db:"seat_label"`
		UserID    string `db:"user_id"`
	}
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT seat_label, user_id FROM show_seats WHERE show_id = ?`, showID); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.SeatLabel] = row.UserID
	}
	return out, nil
}

// HolderIDs returns the distinct users holding at least one seat of the
// show.
func (r *ShowSeatRepo) HolderIDs(ctx context.Context, showID string) ([]string, error) {
	ids := []string{}
	err := r.db.SelectContext(ctx, &ids,
		`SELECT DISTINCT user_id FROM show_seats WHERE show_id = ? ORDER BY user_id`, showID)
	return ids, err
}

// takenTx returns which of labels are already held for the show.  It must
// run after lockShowTx in the same transaction.
func takenTx(ctx context.Context, tx *sqlx.Tx, showID string, labels []string) (map[string]bool, error) {
	q, args, err := sqlx.In(`SELECT seat_label FROM show_seats WHERE show_id = ? AND seat_label IN (?)`, showID, labels)
	if err != nil {
		return nil, err
	}
	var taken []string
	if err := tx.SelectContext(ctx, &taken, tx.Rebind(q), args...); err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(taken))
	for _, l := range taken {
		out[l] = true
	}
	return out, nil
}
