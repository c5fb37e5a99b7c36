// Package service holds the business logic of the booking backend: the
// reservation engine, the show registry, the admin dashboard, transactional
// notifications and the identity mirror.  Handlers and task consumers call
// into it; it reaches storage and external systems through the narrow
// interfaces below.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/cinema-ticket-booking/internal/gateway"
	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

// BookingStore is implemented by repository.BookingRepo.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	MarkPaid(ctx context.Context, id string) (bool, error)
	ReleaseUnpaid(ctx context.Context, id string) (bool, error)
	SetPaymentSession(ctx context.Context, id, sessionID, link string, expiresAt time.Time) error
	ListUnpaidCreatedBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetDetail(ctx context.Context, id string) (*model.BookingDetail, error)
	ListDetailsByUser(ctx context.Context, userID string) ([]model.BookingDetail, error)
	ListDetails(ctx context.Context) ([]model.BookingDetail, error)
	PaidTotals(ctx context.Context) (count int64, amountCents int64, err error)
}

// ShowStore is implemented by repository.ShowRepo.
type ShowStore interface {
	CreateSlots(ctx context.Context, shows []model.Show) error
	GetByID(ctx context.Context, id string) (*model.Show, error)
	ListUpcoming(ctx context.Context, now time.Time) ([]model.Show, error)
	ListUpcomingByMovie(ctx context.Context, movieID string, now time.Time) ([]model.Show, error)
	ListStartingBetween(ctx context.Context, from, to time.Time) ([]model.Show, error)
	CountUpcoming(ctx context.Context, now time.Time) (int64, error)
}

// SeatStore is implemented by repository.ShowSeatRepo.
type SeatStore interface {
	Occupancy(ctx context.Context, showID string) (map[string]string, error)
	HolderIDs(ctx context.Context, showID string) ([]string, error)
}

// MovieStore is implemented by repository.MovieRepo.
type MovieStore interface {
	Insert(ctx context.Context, m model.Movie) (bool, error)
	GetByID(ctx context.Context, id string) (*model.Movie, error)
	ListByIDs(ctx context.Context, ids []string) (map[string]model.Movie, error)
}

// UserStore is implemented by repository.UserRepo.
type UserStore interface {
	Upsert(ctx context.Context, u model.User) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Count(ctx context.Context) (int64, error)
}

// CatalogProvider is implemented by gateway.CatalogClient and CatalogMock.
type CatalogProvider interface {
	MovieDetails(ctx context.Context, movieID string) (model.Movie, error)
	NowPlaying(ctx context.Context) ([]gateway.MovieSummary, error)
}

// PaymentProvider is implemented by gateway.PaymentClient and PaymentMock.
type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, req gateway.CheckoutRequest) (gateway.CheckoutSession, error)
	// ExpireSession closes the session for further payment and reports
	// whether it had already been paid.
	ExpireSession(ctx context.Context, sessionID string) (bool, error)
}

// EmailSender is implemented by gateway.MailClient and MailMock.
type EmailSender interface {
	Send(ctx context.Context, msg gateway.Message) error
}
