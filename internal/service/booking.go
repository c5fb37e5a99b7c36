package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-booking/internal/gateway"
	"github.com/iliyamo/cinema-ticket-booking/internal/log"
	"github.com/iliyamo/cinema-ticket-booking/internal/metrics"
	"github.com/iliyamo/cinema-ticket-booking/internal/model"
	"github.com/iliyamo/cinema-ticket-booking/internal/queue"
	"github.com/iliyamo/cinema-ticket-booking/internal/repository"
)

// Outcome is the result of a hold-window check.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeReleased  Outcome = "released"
)

// OverdueResult counts the bookings handled by one ReleaseOverdue pass.
type OverdueResult struct {
	Finalized int
	Failed    int
}

// sessionExpiryGrace covers clock skew between us and the payment
// provider when judging whether a checkout session has lapsed.
const sessionExpiryGrace = 2 * time.Minute

var seatLabelPattern = regexp.MustCompile(`^[A-Z]{1,2}[0-9]{1,3}$`)

// NormalizeSeats trims, upper-cases and de-duplicates seat labels keeping
// the first occurrence order.  It rejects empty input and labels that do
// not look like "A1" or "AB123".
func NormalizeSeats(labels []string) ([]string, error) {
	if len(labels) == 0 {
		return nil, invalid("at least one seat must be selected")
	}
	seats := lo.Map(labels, func(l string, _ int) string { return strings.ToUpper(strings.TrimSpace(l)) })
	for i, l := range seats {
		if l == "" {
			return nil, invalid("seat labels must not be empty")
		}
		if !seatLabelPattern.MatchString(l) {
			return nil, invalid(fmt.Sprintf("invalid seat label %q", labels[i]))
		}
	}
	return lo.Uniq(seats), nil
}

// BookingService is the seat reservation engine.  All occupancy changes of
// one show are serialized by an in-process lock keyed by show id; the
// repository adds a row lock on the show so that several instances stay
// consistent too.
type BookingService struct {
	bookings BookingStore
	shows    ShowStore
	seats    SeatStore
	movies   MovieStore
	payments PaymentProvider
	tasks    queue.Scheduler
	cache    *SeatCache
	locks    *keyedMutex

	holdWindow time.Duration
	now        func() time.Time
}

func NewBookingService(bookings BookingStore, shows ShowStore, seats SeatStore, movies MovieStore,
	payments PaymentProvider, tasks queue.Scheduler, cache *SeatCache, holdWindow time.Duration) *BookingService {
	return &BookingService{
		bookings:   bookings,
		shows:      shows,
		seats:      seats,
		movies:     movies,
		payments:   payments,
		tasks:      tasks,
		cache:      cache,
		locks:      newKeyedMutex(),
		holdWindow: holdWindow,
		now:        time.Now,
	}
}

// Reserve claims seats of a show for a user and records an unpaid
// booking.  Either all requested seats are claimed or none is.
func (s *BookingService) Reserve(ctx context.Context, showID, userID string, labels []string) (*model.Booking, error) {
	b, _, err := s.reserve(ctx, showID, userID, labels)
	return b, err
}

func (s *BookingService) reserve(ctx context.Context, showID, userID string, labels []string) (*model.Booking, *model.Show, error) {
	seats, err := NormalizeSeats(labels)
	if err != nil {
		metrics.Reservations.WithLabelValues("invalid").Inc()
		return nil, nil, err
	}
	if strings.TrimSpace(userID) == "" {
		return nil, nil, invalid("user is required")
	}
	show, err := s.shows.GetByID(ctx, showID)
	if err != nil {
		return nil, nil, err
	}
	if !show.StartsAt.After(s.now()) {
		metrics.Reservations.WithLabelValues("invalid").Inc()
		return nil, nil, invalid("show has already started")
	}

	unlock := s.locks.Lock(showID)
	defer unlock()

	occ, err := s.seats.Occupancy(ctx, showID)
	if err != nil {
		metrics.Reservations.WithLabelValues("error").Inc()
		return nil, nil, err
	}
	if conflicts := lo.Filter(seats, func(l string, _ int) bool { _, held := occ[l]; return held }); len(conflicts) > 0 {
		metrics.Reservations.WithLabelValues("seats_unavailable").Inc()
		return nil, nil, &repository.SeatsUnavailableError{Seats: conflicts}
	}

	b := &model.Booking{
		ID:          uuid.NewString(),
		UserID:      userID,
		ShowID:      showID,
		Seats:       seats,
		AmountCents: show.PriceCents * int64(len(seats)),
	}
	if err := s.bookings.Create(ctx, b); err != nil {
		if errors.Is(err, repository.ErrSeatsUnavailable) {
			metrics.Reservations.WithLabelValues("seats_unavailable").Inc()
		} else {
			metrics.Reservations.WithLabelValues("error").Inc()
		}
		return nil, nil, err
	}
	s.cache.Invalidate(ctx, showID)
	metrics.Reservations.WithLabelValues("ok").Inc()

	log.FromContext(ctx).WithFields(logrus.Fields{
		"booking_id": b.ID,
		"show_id":    showID,
		"user_id":    userID,
		"seats":      strings.Join(seats, ","),
	}).Info("seats reserved")
	return b, show, nil
}

// CreateBooking reserves the seats, schedules the hold-window check and
// opens a checkout session whose success and cancel pages live under
// origin.  When the check cannot be scheduled or the checkout cannot be
// opened the seats are released again before the error is returned.
func (s *BookingService) CreateBooking(ctx context.Context, showID, userID string, labels []string, origin string) (*model.Booking, error) {
	b, show, err := s.reserve(ctx, showID, userID, labels)
	if err != nil {
		return nil, err
	}

	deadline := s.now().Add(s.holdWindow)
	if err := s.tasks.Schedule(ctx, queue.KindFinalizeBooking, queue.BookingPayload{BookingID: b.ID}, deadline); err != nil {
		s.abandon(ctx, b)
		return nil, fmt.Errorf("schedule hold expiry for booking %s: %w", b.ID, err)
	}

	title := "Movie ticket"
	if m, err := s.movies.GetByID(ctx, show.MovieID); err == nil {
		title = m.Title
	}
	origin = strings.TrimRight(origin, "/")
	sess, err := s.payments.CreateCheckoutSession(ctx, gateway.CheckoutRequest{
		LineItemName:         title,
		UnitAmountMinorUnits: b.AmountCents,
		SuccessURL:           origin + "/loading/my-bookings",
		CancelURL:            origin + "/my-bookings",
		BookingID:            b.ID,
		ExpiresAt:            deadline,
	})
	if err != nil {
		s.abandon(ctx, b)
		return nil, err
	}
	if sess.ExpiresAt.IsZero() {
		sess.ExpiresAt = deadline
	}
	if err := s.bookings.SetPaymentSession(ctx, b.ID, sess.SessionID, sess.URL, sess.ExpiresAt); err != nil {
		// The session exists but is not linked to the booking, so close
		// it before the seats go back on sale.
		if _, expErr := s.payments.ExpireSession(ctx, sess.SessionID); expErr != nil {
			log.FromContext(ctx).WithError(expErr).WithField("session_id", sess.SessionID).Error("failed to expire orphaned checkout session")
		}
		s.abandon(ctx, b)
		return nil, err
	}
	b.PaymentSessionID = &sess.SessionID
	b.PaymentLink = &sess.URL
	b.PaymentExpiresAt = &sess.ExpiresAt
	return b, nil
}

// abandon releases a booking whose checkout could not be set up.
func (s *BookingService) abandon(ctx context.Context, b *model.Booking) {
	unlock := s.locks.Lock(b.ShowID)
	defer unlock()
	if _, err := s.bookings.ReleaseUnpaid(ctx, b.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.FromContext(ctx).WithError(err).WithField("booking_id", b.ID).Error("failed to release abandoned booking")
		return
	}
	s.cache.Invalidate(ctx, b.ShowID)
}

// FinalizeOrExpire runs when the hold window of a booking has elapsed.  A
// paid booking stays confirmed.  An unpaid one has its checkout session
// expired first; if the provider reports the session as paid the payment
// is confirmed instead of releasing the seats.  When the provider cannot
// be reached the check fails and is retried, unless the session has
// already passed its own expiry: it can no longer be paid then, so the
// seats are released without the provider.  Re-running it on a booking
// that is already gone reports OutcomeReleased.
func (s *BookingService) FinalizeOrExpire(ctx context.Context, bookingID string) (Outcome, error) {
	logger := log.FromContext(ctx).WithField("booking_id", bookingID)

	b, err := s.bookings.GetByID(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.Finalizations.WithLabelValues(string(OutcomeReleased)).Inc()
		return OutcomeReleased, nil
	}
	if err != nil {
		metrics.Finalizations.WithLabelValues("error").Inc()
		return "", err
	}
	if b.IsPaid {
		metrics.Finalizations.WithLabelValues(string(OutcomeConfirmed)).Inc()
		return OutcomeConfirmed, nil
	}

	if b.PaymentSessionID != nil && *b.PaymentSessionID != "" {
		paid, err := s.payments.ExpireSession(ctx, *b.PaymentSessionID)
		if err != nil {
			if !s.sessionLapsed(b) {
				metrics.Finalizations.WithLabelValues("error").Inc()
				return "", fmt.Errorf("expire checkout session of booking %s: %w", bookingID, err)
			}
			logger.WithError(err).Warn("payment provider unavailable; checkout session already lapsed, releasing")
		}
		if paid {
			logger.Info("checkout was paid before the hold expired")
			if err := s.ConfirmPayment(ctx, bookingID); err != nil && !errors.Is(err, repository.ErrNotFound) {
				metrics.Finalizations.WithLabelValues("error").Inc()
				return "", err
			}
			metrics.Finalizations.WithLabelValues(string(OutcomeConfirmed)).Inc()
			return OutcomeConfirmed, nil
		}
	}

	unlock := s.locks.Lock(b.ShowID)
	released, err := s.bookings.ReleaseUnpaid(ctx, bookingID)
	if err == nil && released {
		s.cache.Invalidate(ctx, b.ShowID)
	}
	unlock()

	switch {
	case errors.Is(err, repository.ErrNotFound):
		metrics.Finalizations.WithLabelValues(string(OutcomeReleased)).Inc()
		return OutcomeReleased, nil
	case err != nil:
		metrics.Finalizations.WithLabelValues("error").Inc()
		return "", err
	case !released:
		metrics.Finalizations.WithLabelValues(string(OutcomeConfirmed)).Inc()
		return OutcomeConfirmed, nil
	}
	logger.WithField("show_id", b.ShowID).Info("unpaid booking released")
	metrics.Finalizations.WithLabelValues(string(OutcomeReleased)).Inc()
	return OutcomeReleased, nil
}

// sessionLapsed reports whether the checkout session of b is past its own
// expiry by more than sessionExpiryGrace.
func (s *BookingService) sessionLapsed(b *model.Booking) bool {
	return b.PaymentExpiresAt != nil && s.now().After(b.PaymentExpiresAt.Add(sessionExpiryGrace))
}

// ReleaseOverdue runs FinalizeOrExpire for every unpaid booking whose hold
// window ended before now.  It backs up the scheduled per-booking check;
// bookings the check already handled are no longer listed.
func (s *BookingService) ReleaseOverdue(ctx context.Context, now time.Time) (OverdueResult, error) {
	var res OverdueResult
	ids, err := s.bookings.ListUnpaidCreatedBefore(ctx, now.Add(-s.holdWindow))
	if err != nil {
		return res, err
	}
	for _, id := range ids {
		if _, err := s.FinalizeOrExpire(ctx, id); err != nil {
			log.FromContext(ctx).WithError(err).WithField("booking_id", id).Warn("overdue booking not finalized")
			res.Failed++
			continue
		}
		res.Finalized++
	}
	return res, nil
}

// ConfirmPayment marks a booking paid.  Confirming twice is a no-op; only
// the first transition dispatches the confirmation email.
func (s *BookingService) ConfirmPayment(ctx context.Context, bookingID string) error {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(b.ShowID)
	changed, err := s.bookings.MarkPaid(ctx, bookingID)
	unlock()
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	logger := log.FromContext(ctx).WithField("booking_id", bookingID)
	logger.Info("booking paid")
	if err := s.tasks.Dispatch(ctx, queue.KindBookingConfirmed, queue.BookingPayload{BookingID: bookingID}); err != nil {
		logger.WithError(err).Error("failed to dispatch booking confirmation")
	}
	return nil
}

// OccupiedSeats returns the sorted labels of every held seat of a show.
func (s *BookingService) OccupiedSeats(ctx context.Context, showID string) ([]string, error) {
	occ, ok := s.cache.Get(ctx, showID)
	if !ok {
		if _, err := s.shows.GetByID(ctx, showID); err != nil {
			return nil, err
		}
		// Fill under the show lock so a concurrent reservation cannot
		// invalidate between our read and our write.
		unlock := s.locks.Lock(showID)
		var err error
		occ, err = s.seats.Occupancy(ctx, showID)
		if err == nil {
			s.cache.Set(ctx, showID, occ)
		}
		unlock()
		if err != nil {
			return nil, err
		}
	}
	labels := lo.Keys(occ)
	sort.Strings(labels)
	return labels, nil
}

// ListUserBookings returns the user's bookings, newest first.
func (s *BookingService) ListUserBookings(ctx context.Context, userID string) ([]model.BookingDetail, error) {
	return s.bookings.ListDetailsByUser(ctx, userID)
}

// RetryCheckout returns the payment link of an unpaid booking owned by
// userID.
func (s *BookingService) RetryCheckout(ctx context.Context, bookingID, userID string) (string, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return "", err
	}
	if b.UserID != userID {
		return "", repository.ErrBookingNotFound
	}
	if b.IsPaid {
		return "", invalid("booking is already paid")
	}
	if b.PaymentLink == nil || *b.PaymentLink == "" {
		return "", repository.ErrBookingNotFound
	}
	return *b.PaymentLink, nil
}
