package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

const movieColumns = `id, title, overview, poster_path, backdrop_path, release_date,
	original_language, tagline, genres, casts, vote_average, runtime, created_at`

// MovieRepo stores catalog entries. Rows are append-only: Insert never
// overwrites an entry that already exists.
type MovieRepo struct {
	db *sqlx.DB
}

func NewMovieRepo(db *sqlx.DB) *MovieRepo { return &MovieRepo{db: db} }

// Insert creates the movie if no entry with the same id exists. It reports
// whether a row was actually inserted.
func (r *MovieRepo) Insert(ctx context.Context, m model.Movie) (bool, error) {
	res, err := r.db.NamedExecContext(ctx, `
		INSERT IGNORE INTO movies (id, title, overview, poster_path, backdrop_path, release_date,
			original_language, tagline, genres, casts, vote_average, runtime)
		VALUES (:id, :title, :overview, :poster_path, :backdrop_path, :release_date,
			:original_language, :tagline, :genres, :casts, :vote_average, :runtime)`, m)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetByID returns ErrMovieNotFound when the movie has not been cached yet.
func (r *MovieRepo) GetByID(ctx context.Context, id string) (*model.Movie, error) {
	var m model.Movie
	err := r.db.GetContext(ctx, &m, `SELECT `+movieColumns+` FROM movies WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMovieNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListByIDs returns the cached movies among ids, keyed by id. Unknown ids
// are skipped.
func (r *MovieRepo) ListByIDs(ctx context.Context, ids []string) (map[string]model.Movie, error) {
	out := make(map[string]model.Movie, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q, args, err := sqlx.In(`SELECT `+movieColumns+` FROM movies WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var movies []model.Movie
	if err := r.db.SelectContext(ctx, &movies, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	for _, m := range movies {
		out[m.ID] = m
	}
	return out, nil
}
