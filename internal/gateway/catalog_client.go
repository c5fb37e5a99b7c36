package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"

	"github.com/iliyamo/cinema-ticket-booking/internal/config"
	"github.com/iliyamo/cinema-ticket-booking/internal/log"
	"github.com/iliyamo/cinema-ticket-booking/internal/model"
	"github.com/iliyamo/cinema-ticket-booking/internal/repository"
)

// MovieSummary is one entry of the now-playing list.
type MovieSummary struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	ReleaseDate  string  `json:"release_date"`
	VoteAverage  float64 `json:"vote_average"`
}

// CatalogClient talks to the TMDB v3 API.  Reads are idempotent, so
// transient failures (network errors, 429, 5xx) are retried with bounded
// exponential backoff.
type CatalogClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxElapsed time.Duration
}

func NewCatalogClient(cfg config.CatalogConfig) *CatalogClient {
	return &CatalogClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		maxElapsed: cfg.MaxElapsed,
	}
}

type tmdbMovie struct {
	ID               int64         `json:"id"`
	Title            string        `json:"title"`
	Overview         string        `json:"overview"`
	PosterPath       string        `json:"poster_path"`
	BackdropPath     string        `json:"backdrop_path"`
	ReleaseDate      string        `json:"release_date"`
	Genres           []model.Genre `json:"genres"`
	OriginalLanguage string        `json:"original_language"`
	Tagline          string        `json:"tagline"`
	VoteAverage      float64       `json:"vote_average"`
	Runtime          int           `json:"runtime"`
}

type tmdbCredits struct {
	Cast []model.Cast `json:"cast"`
}

// MovieDetails fetches details and credits of a movie.  An unknown id
// yields repository.ErrMovieNotFound; any other failure wraps
// ErrUpstreamUnavailable.
func (c *CatalogClient) MovieDetails(ctx context.Context, movieID string) (model.Movie, error) {
	path := "/movie/" + url.PathEscape(movieID)
	var details tmdbMovie
	if err := c.get(ctx, path, &details); err != nil {
		return model.Movie{}, err
	}
	var credits tmdbCredits
	if err := c.get(ctx, path+"/credits", &credits); err != nil {
		return model.Movie{}, err
	}
	return model.Movie{
		ID:               strconv.FormatInt(details.ID, 10),
		Title:            details.Title,
		Overview:         details.Overview,
		PosterPath:       details.PosterPath,
		BackdropPath:     details.BackdropPath,
		ReleaseDate:      details.ReleaseDate,
		OriginalLanguage: details.OriginalLanguage,
		Tagline:          details.Tagline,
		Genres:           details.Genres,
		Casts:            credits.Cast,
		VoteAverage:      details.VoteAverage,
		Runtime:          details.Runtime,
	}, nil
}

// NowPlaying returns the movies currently in theatres.
func (c *CatalogClient) NowPlaying(ctx context.Context) ([]MovieSummary, error) {
	var page struct {
		Results []MovieSummary `json:"results"`
	}
	if err := c.get(ctx, "/movie/now_playing", &page); err != nil {
		return nil, err
	}
	return lo.Filter(page.Results, func(m MovieSummary, _ int) bool { return m.ID != 0 }), nil
}

func (c *CatalogClient) get(ctx context.Context, path string, out any) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.maxElapsed

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(repository.ErrMovieNotFound)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("catalog %s: status %d", path, resp.StatusCode)
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("catalog %s: status %d", path, resp.StatusCode))
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("catalog %s: decode: %w", path, err))
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.FromContext(ctx).WithError(err).WithField("retry_in", wait).Warn("catalog request failed, retrying")
	}

	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	if err == nil || errors.Is(err, repository.ErrMovieNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}
