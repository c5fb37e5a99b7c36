package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

// UserRepo mirrors identity-provider accounts into the 'users' table.
type UserRepo struct{ db *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// Upsert inserts the user or refreshes name, email and avatar of an
// existing one. Emails are stored normalized.
func (r *UserRepo) Upsert(ctx context.Context, u model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO users (id, name, email, image_url) VALUES (:id, :name, :email, :image_url)
		ON DUPLICATE KEY UPDATE name = VALUES(name), email = VALUES(email), image_url = VALUES(image_url)`, u)
	return err
}

// Delete removes the user. Deleting an unknown user is not an error since
// identity events may be redelivered.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	return err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u,
		"SELECT id, name, email, image_url, created_at, updated_at FROM users WHERE id = ? LIMIT 1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListByIDs returns the known users among ids.
func (r *UserRepo) ListByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	users := []model.User{}
	if len(ids) == 0 {
		return users, nil
	}
	q, args, err := sqlx.In("SELECT id, name, email, image_url, created_at, updated_at FROM users WHERE id IN (?) ORDER BY id", ids)
	if err != nil {
		return nil, err
	}
	err = r.db.SelectContext(ctx, &users, r.db.Rebind(q), args...)
	return users, err
}

// List returns every user, used for new-show announcements.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	err := r.db.SelectContext(ctx, &users, "SELECT id, name, email, image_url, created_at, updated_at FROM users ORDER BY id")
	return users, err
}

// Count returns the number of mirrored users.
func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM users")
	return n, err
}
