package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-booking/internal/gateway"
	"github.com/iliyamo/cinema-ticket-booking/internal/log"
	"github.com/iliyamo/cinema-ticket-booking/internal/model"
	"github.com/iliyamo/cinema-ticket-booking/internal/queue"
	"github.com/iliyamo/cinema-ticket-booking/internal/repository"
)

// movieIDPattern matches catalog (TMDB) ids, which are positive integers.
var movieIDPattern = regexp.MustCompile(`^[0-9]{1,20}$`)

// DateTimes is one day of new show slots as entered by an admin: a date
// ("2006-01-02") and its start times ("15:04"), all in UTC.
type DateTimes struct {
	Date  string   `json:"date"`
	Times []string `json:"time"`
}

// MovieSchedule is a movie with its upcoming shows grouped by day.
type MovieSchedule struct {
	Movie    model.Movie                     `json:"movie"`
	DateTime map[string][]model.ScheduleSlot `json:"dateTime"`
}

// RegistryService manages the movie catalog cache and the show schedule.
type RegistryService struct {
	movies  MovieStore
	shows   ShowStore
	seats   SeatStore
	catalog CatalogProvider
	tasks   queue.Scheduler
	cache   *SeatCache
	now     func() time.Time
}

func NewRegistryService(movies MovieStore, shows ShowStore, seats SeatStore, catalog CatalogProvider,
	tasks queue.Scheduler, cache *SeatCache) *RegistryService {
	return &RegistryService{
		movies:  movies,
		shows:   shows,
		seats:   seats,
		catalog: catalog,
		tasks:   tasks,
		cache:   cache,
		now:     time.Now,
	}
}

// UpsertCatalogEntry returns the cached movie, fetching details and credits
// from the catalog the first time a movie is seen.  Existing entries are
// never refreshed.
func (s *RegistryService) UpsertCatalogEntry(ctx context.Context, movieID string) (*model.Movie, error) {
	movieID = strings.TrimSpace(movieID)
	if movieID == "" {
		return nil, invalid("movie id is required")
	}
	if !movieIDPattern.MatchString(movieID) {
		return nil, invalid(fmt.Sprintf("invalid movie id %q", movieID))
	}
	m, err := s.movies.GetByID(ctx, movieID)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	fetched, err := s.catalog.MovieDetails(ctx, movieID)
	if err != nil {
		return nil, err
	}
	fetched.ID = movieID
	inserted, err := s.movies.Insert(ctx, fetched)
	if err != nil {
		return nil, err
	}
	if inserted {
		log.FromContext(ctx).WithFields(logrus.Fields{"movie_id": movieID, "title": fetched.Title}).Info("movie cached from catalog")
	}
	return s.movies.GetByID(ctx, movieID)
}

// CreateShowSlots schedules one show per date and time for a movie.  All
// slots are created together or not at all.  Every user is then told
// about the new show through a show.added task.
func (s *RegistryService) CreateShowSlots(ctx context.Context, movieID string, slots []DateTimes, priceCents int64) ([]model.Show, error) {
	if priceCents <= 0 {
		return nil, invalid("show price must be positive")
	}
	starts, err := s.parseSlots(slots)
	if err != nil {
		return nil, err
	}

	movie, err := s.UpsertCatalogEntry(ctx, movieID)
	if err != nil {
		return nil, err
	}

	shows := lo.Map(starts, func(at time.Time, _ int) model.Show {
		return model.Show{ID: uuid.NewString(), MovieID: movie.ID, StartsAt: at, PriceCents: priceCents}
	})
	if err := s.shows.CreateSlots(ctx, shows); err != nil {
		return nil, err
	}
	for _, sh := range shows {
		s.cache.Invalidate(ctx, sh.ID)
	}

	logger := log.FromContext(ctx).WithFields(logrus.Fields{"movie_id": movie.ID, "shows": len(shows)})
	logger.Info("shows scheduled")
	payload := queue.ShowAddedPayload{MovieID: movie.ID, MovieTitle: movie.Title}
	if err := s.tasks.Dispatch(ctx, queue.KindShowAdded, payload); err != nil {
		logger.WithError(err).Error("failed to dispatch new show announcement")
	}
	return shows, nil
}

func (s *RegistryService) parseSlots(slots []DateTimes) ([]time.Time, error) {
	now := s.now()
	var starts []time.Time
	for _, d := range slots {
		for _, t := range d.Times {
			raw := strings.TrimSpace(d.Date) + " " + strings.TrimSpace(t)
			at, err := time.ParseInLocation("2006-01-02 15:04", raw, time.UTC)
			if err != nil {
				return nil, invalid(fmt.Sprintf("invalid show date or time %q", raw))
			}
			if !at.After(now) {
				return nil, invalid(fmt.Sprintf("show time %q is in the past", raw))
			}
			starts = append(starts, at)
		}
	}
	if len(starts) == 0 {
		return nil, invalid("at least one show time is required")
	}
	return lo.Uniq(starts), nil
}

// ListUpcomingShows returns every show that has not started yet, with its
// movie, ordered by start time.
func (s *RegistryService) ListUpcomingShows(ctx context.Context) ([]model.ShowDetail, error) {
	shows, err := s.shows.ListUpcoming(ctx, s.now())
	if err != nil {
		return nil, err
	}
	movieIDs := lo.Uniq(lo.Map(shows, func(sh model.Show, _ int) string { return sh.MovieID }))
	movies, err := s.movies.ListByIDs(ctx, movieIDs)
	if err != nil {
		return nil, err
	}
	out := make([]model.ShowDetail, 0, len(shows))
	for _, sh := range shows {
		out = append(out, model.ShowDetail{Show: sh, ShowPrice: sh.Price(), Movie: movies[sh.MovieID]})
	}
	return out, nil
}

// ListUpcomingMovies returns the distinct movies that have upcoming shows,
// in order of their next show.
func (s *RegistryService) ListUpcomingMovies(ctx context.Context) ([]model.Movie, error) {
	shows, err := s.ListUpcomingShows(ctx)
	if err != nil {
		return nil, err
	}
	details := lo.UniqBy(shows, func(d model.ShowDetail) string { return d.MovieID })
	movies := lo.Map(details, func(d model.ShowDetail, _ int) model.Movie { return d.Movie })
	return lo.Filter(movies, func(m model.Movie, _ int) bool { return m.ID != "" }), nil
}

// GetShow returns a show with its movie and occupancy map.
func (s *RegistryService) GetShow(ctx context.Context, showID string) (*model.ShowDetail, error) {
	sh, err := s.shows.GetByID(ctx, showID)
	if err != nil {
		return nil, err
	}
	m, err := s.movies.GetByID(ctx, sh.MovieID)
	if err != nil {
		return nil, err
	}
	occ, ok := s.cache.Get(ctx, showID)
	if !ok {
		if occ, err = s.seats.Occupancy(ctx, showID); err != nil {
			return nil, err
		}
	}
	if occ == nil {
		occ = map[string]string{}
	}
	return &model.ShowDetail{Show: *sh, ShowPrice: sh.Price(), Movie: *m, OccupiedSeats: occ}, nil
}

// GetMovieSchedule returns a movie and its upcoming show times keyed by
// UTC date.
func (s *RegistryService) GetMovieSchedule(ctx context.Context, movieID string) (*MovieSchedule, error) {
	m, err := s.movies.GetByID(ctx, movieID)
	if err != nil {
		return nil, err
	}
	shows, err := s.shows.ListUpcomingByMovie(ctx, movieID, s.now())
	if err != nil {
		return nil, err
	}
	byDay := lo.GroupBy(shows, func(sh model.Show) string { return sh.StartsAt.UTC().Format("2006-01-02") })
	schedule := lo.MapValues(byDay, func(day []model.Show, _ string) []model.ScheduleSlot {
		return lo.Map(day, func(sh model.Show, _ int) model.ScheduleSlot {
			return model.ScheduleSlot{Time: sh.StartsAt, ShowID: sh.ID}
		})
	})
	return &MovieSchedule{Movie: *m, DateTime: schedule}, nil
}

// NowPlaying lists the movies currently in theatres according to the
// catalog.
func (s *RegistryService) NowPlaying(ctx context.Context) ([]gateway.MovieSummary, error) {
	return s.catalog.NowPlaying(ctx)
}
