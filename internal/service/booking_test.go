package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticket-booking/internal/gateway"
	"github.com/iliyamo/cinema-ticket-booking/internal/model"
	"github.com/iliyamo/cinema-ticket-booking/internal/queue"
	"github.com/iliyamo/cinema-ticket-booking/internal/repository"
)

var testNow = time.Date(2030, time.March, 10, 12, 0, 0, 0, time.UTC)

type bookingFixture struct {
	svc      *BookingService
	db       *memDB
	payments *gateway.PaymentMock
	tasks    *fakeScheduler
}

func newBookingFixture(t *testing.T, cache *SeatCache) *bookingFixture {
	t.Helper()
	db := newMemDB(testNow)
	db.addMovie(model.Movie{ID: "550", Title: "Fight Club"})
	db.addShow(model.Show{ID: "show-1", MovieID: "550", StartsAt: testNow.Add(3 * time.Hour), PriceCents: 1000})

	payments := &gateway.PaymentMock{}
	tasks := &fakeScheduler{}
	svc := NewBookingService(memBookings{db}, memShows{db}, memSeats{db}, memMovies{db}, payments, tasks, cache, 10*time.Minute)
	svc.now = func() time.Time { return testNow }
	return &bookingFixture{svc: svc, db: db, payments: payments, tasks: tasks}
}

func (f *bookingFixture) book(t *testing.T, user string, seats ...string) *model.Booking {
	t.Helper()
	b, err := f.svc.CreateBooking(context.Background(), "show-1", user, seats, "https://app.example")
	require.NoError(t, err)
	return b
}

func TestCreateBooking_ReservesAndOpensCheckout(t *testing.T) {
	f := newBookingFixture(t, nil)
	ctx := context.Background()

	b := f.book(t, "user-1", "A1", "A2")

	assert.Equal(t, int64(2000), b.AmountCents)
	assert.InDelta(t, 20.00, b.Amount(), 0.0001)
	assert.False(t, b.IsPaid)
	require.NotNil(t, b.PaymentLink)
	assert.Equal(t, "https://checkout.local/cs_"+b.ID, *b.PaymentLink)

	seats, err := f.svc.OccupiedSeats(ctx, "show-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A2"}, seats)

	req := f.payments.Sessions["cs_"+b.ID]
	assert.Equal(t, "Fight Club", req.LineItemName)
	assert.Equal(t, int64(2000), req.UnitAmountMinorUnits)
	assert.Equal(t, "https://app.example/loading/my-bookings", req.SuccessURL)
	assert.Equal(t, "https://app.example/my-bookings", req.CancelURL)

	require.Len(t, f.tasks.scheduled, 1)
	assert.Equal(t, queue.KindFinalizeBooking, f.tasks.scheduled[0].Kind)
	assert.Equal(t, queue.BookingPayload{BookingID: b.ID}, f.tasks.scheduled[0].Payload)
	assert.Equal(t, testNow.Add(10*time.Minute), f.tasks.scheduled[0].NotBefore)

	stored, ok := f.db.booking(b.ID)
	require.True(t, ok)
	require.NotNil(t, stored.PaymentSessionID)
	assert.Equal(t, "cs_"+b.ID, *stored.PaymentSessionID)
}

func TestReserve_RejectsHeldSeats(t *testing.T) {
	f := newBookingFixture(t, nil)
	ctx := context.Background()
	f.book(t, "user-1", "A1")

	_, err := f.svc.Reserve(ctx, "show-1", "user-2", []string{"A2", "A1"})

	var unavailable *repository.SeatsUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, []string{"A1"}, unavailable.Seats)
	assert.ErrorIs(t, err, repository.ErrSeatsUnavailable)

	seats, err := f.svc.OccupiedSeats(ctx, "show-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A1"}, seats, "a rejected request must not hold any seat")
	assert.Equal(t, 1, f.db.bookingCount())
}

func TestReserve_ConcurrentRequestsForOneSeat(t *testing.T) {
	f := newBookingFixture(t, nil)
	ctx := context.Background()

	const n = 25
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		won      int
		rejected int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Reserve(ctx, "show-1", "user-"+string(rune('a'+i)), []string{"C7", "C8"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case errors.Is(err, repository.ErrSeatsUnavailable):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, won)
	assert.Equal(t, n-1, rejected)
	assert.Equal(t, 1, f.db.bookingCount())
}

func TestReserve_Validation(t *testing.T) {
	f := newBookingFixture(t, nil)
	ctx := context.Background()
	f.db.addShow(model.Show{ID: "started", MovieID: "550", StartsAt: testNow.Add(-time.Minute), PriceCents: 1000})

	tests := []struct {
		name   string
		showID string
		seats  []string
		target error
	}{
		{"empty seat list", "show-1", nil, ErrValidation},
		{"blank label", "show-1", []string{" "}, ErrValidation},
		{"malformed label", "show-1", []string{"1A"}, ErrValidation},
		{"unknown show", "missing", []string{"A1"}, repository.ErrNotFound},
		{"show already started", "started", []string{"A1"}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Reserve(ctx, tt.showID, "user-1", tt.seats)
			assert.ErrorIs(t, err, tt.target)
		})
	}
	assert.Zero(t, f.db.bookingCount())
}

func TestNormalizeSeats(t *testing.T) {
	seats, err := NormalizeSeats([]string{" a1", "A1", "b12 ", "AB123"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "B12", "AB123"}, seats)

	_, err = NormalizeSeats([]string{"A1234"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "A1234")
}

func TestFinalizeOrExpire_ReleasesUnpaidBooking(t *testing.T) {
	f := newBookingFixture(t, nil)
	ctx := context.Background()
	b := f.book(t, "user-1", "A1", "A2")

	outcome, err := f.svc.FinalizeOrExpire(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReleased, outcome)

	assert.True(t, f.payments.Expired["cs_"+b.ID], "checkout must be closed before release")
	_, ok := f.db.booking(b.ID)
	assert.False(t, ok)
	seats, err := f.svc.OccupiedSeats(ctx, "show-1")
	require.NoError(t, err)
	assert.Empty(t, seats)

	// Redelivery of the same task is harmless.
	outcome, err = f.svc.FinalizeOrExpire(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReleased, outcome)

	// The seats can be booked again.
	_, err = f.svc.Reserve(ctx, "show-1", "user-2", []string{"A1"})
	assert.NoError(t, err)
}

func TestFinalizeOrExpire_KeepsPaidBooking(t *testing.T) {
	f := newBookingFixture(t, nil)
	ctx := context.Background()
	b := f.book(t, "user-1", "B3")

	require.NoError(t, f.svc.ConfirmPayment(ctx, b.ID))

	outcome, err := f.svc.FinalizeOrExpire(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)

	stored, ok := f.db.booking(b.ID)
	require.True(t, ok)
	assert.True(t, stored.IsPaid)
	seats, err := f.svc.OccupiedSeats(ctx, "show-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"B3"}, seats)
	assert.Empty(t, f.payments.Expired, "a paid booking's session is left alone")
}

func TestFinalizeOrExpire_PaidAtProviderWins(t *testing.T) {
	f := newBookingFixture(t, nil)
	ctx := context.Background()
	b := f.book(t, "user-1", "D4")

	// The customer paid but the webhook has not arrived yet.
	f.payments.MarkPaid("cs_" + b.ID)

	outcome, err := f.svc.FinalizeOrExpire(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)

	stored, ok := f.db.booking(b.ID)
	require.True(t, ok)
	assert.True(t, stored.IsPaid)
	assert.Len(t, f.tasks.dispatchedOf(queue.KindBookingConfirmed), 1)

	// The late webhook is a no-op.
	require.NoError(t, f.svc.ConfirmPayment(ctx, b.ID))
	assert.Len(t, f.tasks.dispatchedOf(queue.KindBookingConfirmed), 1)
}

func TestFinalizeOrExpire_RacingWebhook(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newBookingFixture(t, nil)
		ctx := context.Background()
		b := f.book(t, "user-1", "E5")
		f.payments.MarkPaid("cs_" + b.ID)

		var (
			wg         sync.WaitGroup
			outcome    Outcome
			finalErr   error
			confirmErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			outcome, finalErr = f.svc.FinalizeOrExpire(ctx, b.ID)
		}()
		go func() {
			defer wg.Done()
			confirmErr = f.svc.ConfirmPayment(ctx, b.ID)
		}()
		wg.Wait()

		require.NoError(t, finalErr)
		require.NoError(t, confirmErr)
		assert.Equal(t, OutcomeConfirmed, outcome)
		stored, ok := f.db.booking(b.ID)
		require.True(t, ok)
		assert.True(t, stored.IsPaid)
		assert.Len(t, f.tasks.dispatchedOf(queue.KindBookingConfirmed), 1)
	}
}

func TestFinalizeOrExpire_ProviderErrorKeepsHold(t *testing.T) {
	f := newBookingFixture(t, nil)
	ctx := context.Background()
	b := f.book(t, "user-1", "F6")
	f.payments.ExpireErr = gateway.ErrUpstreamUnavailable

	_, err := f.svc.FinalizeOrExpire(ctx, b.ID)
	assert.ErrorIs(t, err, gateway.ErrUpstreamUnavailable)

	_, ok := f.db.booking(b.ID)
	assert.True(t, ok, "the booking stays until the check can run again")
}

func TestFinalizeOrExpire_LapsedSessionReleasesWithoutProvider(t *testing.T) {
	f := newBookingFixture(t, nil)
	ctx := context.Background()
	b := f.book(t, "user-1", "F7")
	require.NotNil(t, b.PaymentExpiresAt)
	assert.Equal(t, testNow.Add(10*time.Minute), *b.PaymentExpiresAt)
	f.payments.ExpireErr = gateway.ErrUpstreamUnavailable

	// Inside the grace period the provider must still be asked.
	f.svc.now = func() time.Time { return b.PaymentExpiresAt.Add(time.Minute) }
	_, err := f.svc.FinalizeOrExpire(ctx, b.ID)
	require.ErrorIs(t, err, gateway.ErrUpstreamUnavailable)

	f.svc.now = func() time.Time { return b.PaymentExpiresAt.Add(sessionExpiryGrace + time.Second) }
	outcome, err := f.svc.FinalizeOrExpire(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReleased, outcome)

	_, ok := f.db.booking(b.ID)
	assert.False(t, ok)
	seats, err := f.svc.OccupiedSeats(ctx, "show-1")
	require.NoError(t, err)
	assert.Empty(t, seats)
}

func TestReleaseOverdue(t *testing.T) {
	f := newBookingFixture(t, nil)
	ctx := context.Background()
	stale := f.book(t, "user-1", "H1")
	paid := f.book(t, "user-2", "H2")
	require.NoError(t, f.svc.ConfirmPayment(ctx, paid.ID))

	// Nothing is overdue while the hold window is still open.
	res, err := f.svc.ReleaseOverdue(ctx, testNow.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, OverdueResult{}, res)

	res, err = f.svc.ReleaseOverdue(ctx, testNow.Add(11*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, OverdueResult{Finalized: 1}, res)

	_, ok := f.db.booking(stale.ID)
	assert.False(t, ok)
	_, ok = f.db.booking(paid.ID)
	assert.True(t, ok)
	seats, err := f.svc.OccupiedSeats(ctx, "show-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"H2"}, seats)
}

func TestReleaseOverdue_CountsFailures(t *testing.T) {
	f := newBookingFixture(t, nil)
	ctx := context.Background()
	b := f.book(t, "user-1", "H3")
	f.payments.ExpireErr = gateway.ErrUpstreamUnavailable

	res, err := f.svc.ReleaseOverdue(ctx, testNow.Add(11*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, OverdueResult{Failed: 1}, res)
	_, ok := f.db.booking(b.ID)
	assert.True(t, ok)
}

func TestConfirmPayment(t *testing.T) {
	f := newBookingFixture(t, nil)
	ctx := context.Background()
	b := f.book(t, "user-1", "G1")

	require.NoError(t, f.svc.ConfirmPayment(ctx, b.ID))
	require.NoError(t, f.svc.ConfirmPayment(ctx, b.ID))

	confirmed := f.tasks.dispatchedOf(queue.KindBookingConfirmed)
	require.Len(t, confirmed, 1)
	assert.Equal(t, queue.BookingPayload{BookingID: b.ID}, confirmed[0].Payload)

	err := f.svc.ConfirmPayment(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestConfirmPayment_DispatchFailureKeepsPayment(t *testing.T) {
	f := newBookingFixture(t, nil)
	ctx := context.Background()
	b := f.book(t, "user-1", "G2")
	f.tasks.dispatchErr = errors.New("broker down")

	require.NoError(t, f.svc.ConfirmPayment(ctx, b.ID))
	stored, _ := f.db.booking(b.ID)
	assert.True(t, stored.IsPaid)
}

func TestCreateBooking_CheckoutFailureReleasesSeats(t *testing.T) {
	f := newBookingFixture(t, nil)
	ctx := context.Background()
	f.payments.CreateErr = gateway.ErrUpstreamUnavailable

	_, err := f.svc.CreateBooking(ctx, "show-1", "user-1", []string{"H1"}, "https://app.example")
	assert.ErrorIs(t, err, gateway.ErrUpstreamUnavailable)

	assert.Zero(t, f.db.bookingCount())
	seats, err := f.svc.OccupiedSeats(ctx, "show-1")
	require.NoError(t, err)
	assert.Empty(t, seats)
}

func TestCreateBooking_ScheduleFailureReleasesSeats(t *testing.T) {
	f := newBookingFixture(t, nil)
	f.tasks.scheduleErr = errors.New("broker down")

	_, err := f.svc.CreateBooking(context.Background(), "show-1", "user-1", []string{"H2"}, "https://app.example")
	assert.Error(t, err)
	assert.Zero(t, f.db.bookingCount())
	assert.Empty(t, f.payments.Sessions)
}

func TestRetryCheckout(t *testing.T) {
	f := newBookingFixture(t, nil)
	ctx := context.Background()
	b := f.book(t, "user-1", "J1")

	link, err := f.svc.RetryCheckout(ctx, b.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, *b.PaymentLink, link)

	_, err = f.svc.RetryCheckout(ctx, b.ID, "user-2")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, f.svc.ConfirmPayment(ctx, b.ID))
	_, err = f.svc.RetryCheckout(ctx, b.ID, "user-1")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestOccupiedSeats_UnknownShow(t *testing.T) {
	f := newBookingFixture(t, nil)
	_, err := f.svc.OccupiedSeats(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrShowNotFound)
}

func TestOccupiedSeats_ServedFromCache(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	f := newBookingFixture(t, NewSeatCache(rdb, time.Minute))

	mock.ExpectGet("seats:show-1").SetVal(`{"K2":"user-9","K1":"user-9"}`)

	seats, err := f.svc.OccupiedSeats(context.Background(), "show-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"K1", "K2"}, seats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOccupiedSeats_FillsCacheOnMiss(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	f := newBookingFixture(t, NewSeatCache(rdb, time.Minute))
	ctx := context.Background()

	mock.ExpectDel("seats:show-1").SetVal(0)
	_, err := f.svc.Reserve(ctx, "show-1", "user-1", []string{"L1"})
	require.NoError(t, err)

	mock.ExpectGet("seats:show-1").RedisNil()
	mock.ExpectSet("seats:show-1", []byte(`{"L1":"user-1"}`), time.Minute).SetVal("OK")

	seats, err := f.svc.OccupiedSeats(ctx, "show-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"L1"}, seats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestKeyedMutex_ForgetsIdleKeys(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("a")
	unlockB := k.Lock("b")
	unlock()
	unlockB()
	assert.Empty(t, k.locks)
}
