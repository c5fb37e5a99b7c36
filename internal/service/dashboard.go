package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

// DashboardService aggregates the admin overview.
type DashboardService struct {
	bookings BookingStore
	shows    ShowStore
	users    UserStore
	registry *RegistryService
	now      func() time.Time
}

func NewDashboardService(bookings BookingStore, shows ShowStore, users UserStore, registry *RegistryService) *DashboardService {
	return &DashboardService{bookings: bookings, shows: shows, users: users, registry: registry, now: time.Now}
}

// Dashboard counts paid bookings, their revenue, upcoming shows and users.
// The independent queries run concurrently.
func (s *DashboardService) Dashboard(ctx context.Context) (*model.Dashboard, error) {
	var (
		d          model.Dashboard
		paidCents  int64
		activeShow []model.ShowDetail
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		d.TotalBookings, paidCents, err = s.bookings.PaidTotals(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		d.ActiveShowCount, err = s.shows.CountUpcoming(gctx, s.now())
		return err
	})
	g.Go(func() error {
		var err error
		activeShow, err = s.registry.ListUpcomingShows(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		d.TotalUser, err = s.users.Count(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	d.TotalRevenue = model.CentsToAmount(paidCents)
	d.ActiveShows = activeShow
	if d.ActiveShows == nil {
		d.ActiveShows = []model.ShowDetail{}
	}
	return &d, nil
}

// AllBookings lists every booking with its user, show and movie, newest
// first.
func (s *DashboardService) AllBookings(ctx context.Context) ([]model.BookingDetail, error) {
	out, err := s.bookings.ListDetails(ctx)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.BookingDetail{}
	}
	return out, nil
}
