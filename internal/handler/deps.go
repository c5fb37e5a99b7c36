package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/iliyamo/cinema-ticket-booking/internal/gateway"
	"github.com/iliyamo/cinema-ticket-booking/internal/model"
	"github.com/iliyamo/cinema-ticket-booking/internal/service"
)

// ShowCatalog is implemented by service.RegistryService.
type ShowCatalog interface {
	NowPlaying(ctx context.Context) ([]gateway.MovieSummary, error)
	ListUpcomingMovies(ctx context.Context) ([]model.Movie, error)
	ListUpcomingShows(ctx context.Context) ([]model.ShowDetail, error)
	GetMovieSchedule(ctx context.Context, movieID string) (*service.MovieSchedule, error)
	GetShow(ctx context.Context, showID string) (*model.ShowDetail, error)
	CreateShowSlots(ctx context.Context, movieID string, slots []service.DateTimes, priceCents int64) ([]model.Show, error)
}

// Bookings is implemented by service.BookingService.
type Bookings interface {
	CreateBooking(ctx context.Context, showID, userID string, labels []string, origin string) (*model.Booking, error)
	OccupiedSeats(ctx context.Context, showID string) ([]string, error)
	ListUserBookings(ctx context.Context, userID string) ([]model.BookingDetail, error)
	RetryCheckout(ctx context.Context, bookingID, userID string) (string, error)
	ConfirmPayment(ctx context.Context, bookingID string) error
}

// Reports is implemented by service.DashboardService.
type Reports interface {
	Dashboard(ctx context.Context) (*model.Dashboard, error)
	AllBookings(ctx context.Context) ([]model.BookingDetail, error)
}

// Reminders is implemented by service.NotificationService.
type Reminders interface {
	SendShowReminders(ctx context.Context, now time.Time) (service.SweepResult, error)
}

// Identities is implemented by service.UserService.
type Identities interface {
	HandleIdentityEvent(ctx context.Context, ev service.IdentityEvent) error
}

// PaymentEvents is implemented by gateway.PaymentClient and PaymentMock.
type PaymentEvents interface {
	ParseWebhook(payload []byte, signature string) (gateway.PaymentEvent, error)
}

// IdentitySignatures is implemented by gateway.IdentityVerifier.
type IdentitySignatures interface {
	Verify(payload []byte, headers http.Header) error
}
