package gateway

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/iliyamo/cinema-ticket-booking/internal/model"
	"github.com/iliyamo/cinema-ticket-booking/internal/repository"
)

// CatalogMock serves movies from memory.  It backs local development when
// no TMDB key is configured, and tests.
type CatalogMock struct {
	mock   sync.Mutex
	Movies map[string]model.Movie
	Calls  int
	Err    error
}

func (c *CatalogMock) MovieDetails(ctx context.Context, movieID string) (model.Movie, error) {
	c.mock.Lock()
	defer c.mock.Unlock()
	c.Calls++
	if c.Err != nil {
		return model.Movie{}, c.Err
	}
	if m, ok := c.Movies[movieID]; ok {
		return m, nil
	}
	if c.Movies == nil {
		// Unseeded mock: fabricate a placeholder entry so dev flows work
		// end to end without network access.
		return model.Movie{ID: movieID, Title: "Movie " + movieID, Genres: model.Genres{}, Casts: model.Casts{}}, nil
	}
	return model.Movie{}, repository.ErrMovieNotFound
}

func (c *CatalogMock) NowPlaying(ctx context.Context) ([]MovieSummary, error) {
	c.mock.Lock()
	defer c.mock.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	out := make([]MovieSummary, 0, len(c.Movies))
	for _, m := range c.Movies {
		id, _ := strconv.ParseInt(m.ID, 10, 64)
		out = append(out, MovieSummary{ID: id, Title: m.Title, Overview: m.Overview, PosterPath: m.PosterPath,
			BackdropPath: m.BackdropPath, ReleaseDate: m.ReleaseDate, VoteAverage: m.VoteAverage})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
