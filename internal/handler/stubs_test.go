package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/iliyamo/cinema-ticket-booking/internal/gateway"
	"github.com/iliyamo/cinema-ticket-booking/internal/model"
	"github.com/iliyamo/cinema-ticket-booking/internal/service"
)

type stubCatalog struct {
	movies   []model.Movie
	shows    []model.ShowDetail
	schedule *service.MovieSchedule
	show     *model.ShowDetail
	err      error
	gotSlots []service.DateTimes
	gotPrice int64
	gotMovie string
}

func (s *stubCatalog) NowPlaying(context.Context) ([]gateway.MovieSummary, error) {
	return []gateway.MovieSummary{{ID: 550, Title: "Fight Club"}}, s.err
}

func (s *stubCatalog) ListUpcomingMovies(context.Context) ([]model.Movie, error) {
	return s.movies, s.err
}

func (s *stubCatalog) ListUpcomingShows(context.Context) ([]model.ShowDetail, error) {
	return s.shows, s.err
}

func (s *stubCatalog) GetMovieSchedule(context.Context, string) (*service.MovieSchedule, error) {
	return s.schedule, s.err
}

func (s *stubCatalog) GetShow(context.Context, string) (*model.ShowDetail, error) {
	return s.show, s.err
}

func (s *stubCatalog) CreateShowSlots(_ context.Context, movieID string, slots []service.DateTimes, priceCents int64) ([]model.Show, error) {
	s.gotMovie, s.gotSlots, s.gotPrice = movieID, slots, priceCents
	if s.err != nil {
		return nil, s.err
	}
	return []model.Show{{ID: "show-1", MovieID: movieID, PriceCents: priceCents}}, nil
}

type stubBookings struct {
	booking   *model.Booking
	occupied  []string
	mine      []model.BookingDetail
	url       string
	err       error
	confirmed []string
	gotUser   string
	gotOrigin string
	gotSeats  []string
}

func (s *stubBookings) CreateBooking(_ context.Context, _ string, userID string, labels []string, origin string) (*model.Booking, error) {
	s.gotUser, s.gotSeats, s.gotOrigin = userID, labels, origin
	return s.booking, s.err
}

func (s *stubBookings) OccupiedSeats(context.Context, string) ([]string, error) {
	return s.occupied, s.err
}

func (s *stubBookings) ListUserBookings(_ context.Context, userID string) ([]model.BookingDetail, error) {
	s.gotUser = userID
	return s.mine, s.err
}

func (s *stubBookings) RetryCheckout(_ context.Context, _ string, userID string) (string, error) {
	s.gotUser = userID
	return s.url, s.err
}

func (s *stubBookings) ConfirmPayment(_ context.Context, bookingID string) error {
	s.confirmed = append(s.confirmed, bookingID)
	return s.err
}

type stubReports struct {
	dashboard *model.Dashboard
	bookings  []model.BookingDetail
	err       error
}

func (s *stubReports) Dashboard(context.Context) (*model.Dashboard, error) { return s.dashboard, s.err }

func (s *stubReports) AllBookings(context.Context) ([]model.BookingDetail, error) {
	return s.bookings, s.err
}

type stubReminders struct {
	res service.SweepResult
	err error
}

func (s *stubReminders) SendShowReminders(context.Context, time.Time) (service.SweepResult, error) {
	return s.res, s.err
}

type stubIdentities struct {
	events []service.IdentityEvent
	err    error
}

func (s *stubIdentities) HandleIdentityEvent(_ context.Context, ev service.IdentityEvent) error {
	s.events = append(s.events, ev)
	return s.err
}

type stubSignatures struct{ err error }

func (s stubSignatures) Verify([]byte, http.Header) error { return s.err }
