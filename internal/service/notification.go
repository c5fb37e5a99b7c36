package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-booking/internal/config"
	"github.com/iliyamo/cinema-ticket-booking/internal/gateway"
	"github.com/iliyamo/cinema-ticket-booking/internal/log"
	"github.com/iliyamo/cinema-ticket-booking/internal/mail"
	"github.com/iliyamo/cinema-ticket-booking/internal/metrics"
	"github.com/iliyamo/cinema-ticket-booking/internal/model"
	"github.com/iliyamo/cinema-ticket-booking/internal/repository"
)

// SweepResult counts the outcome of a batch of emails.
type SweepResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

func (r *SweepResult) add(err error) {
	if err != nil {
		r.Failed++
		return
	}
	r.Sent++
}

// NotificationService sends the transactional emails: payment
// confirmations, new show announcements and show reminders.
type NotificationService struct {
	bookings BookingStore
	shows    ShowStore
	seats    SeatStore
	movies   MovieStore
	users    UserStore
	mail     EmailSender

	ahead    time.Duration
	window   time.Duration
	loc      *time.Location
	currency string
}

func NewNotificationService(bookings BookingStore, shows ShowStore, seats SeatStore, movies MovieStore,
	users UserStore, sender EmailSender, cfg config.BookingConfig, currency string) *NotificationService {
	loc := cfg.DisplayLocation
	if loc == nil {
		loc = time.UTC
	}
	return &NotificationService{
		bookings: bookings,
		shows:    shows,
		seats:    seats,
		movies:   movies,
		users:    users,
		mail:     sender,
		ahead:    cfg.ReminderAhead,
		window:   cfg.ReminderWindow,
		loc:      loc,
		currency: strings.ToUpper(currency),
	}
}

// SendBookingConfirmation emails the payment confirmation of a booking.
// A booking or user that cannot be found is logged and skipped since
// retrying would not help.
func (s *NotificationService) SendBookingConfirmation(ctx context.Context, bookingID string) error {
	logger := log.FromContext(ctx).WithField("booking_id", bookingID)
	d, err := s.bookings.GetDetail(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		logger.Warn("confirmation skipped: booking not found")
		return nil
	}
	if err != nil {
		return err
	}
	if d.User.Email == "" {
		logger.WithField("user_id", d.UserID).Warn("confirmation skipped: user has no email")
		return nil
	}

	data := mail.BookingConfirmedData{
		UserName:   d.User.Name,
		MovieTitle: d.Movie.Title,
		ShowDate:   s.formatDate(d.Show.StartsAt),
		ShowTime:   s.formatTime(d.Show.StartsAt),
		Seats:      strings.Join(d.Seats, ", "),
		Amount:     strings.TrimSpace(fmt.Sprintf("%.2f %s", d.Amount, s.currency)),
	}
	subject := fmt.Sprintf("Payment Confirmation for: %q booked!", d.Movie.Title)
	return s.deliver(ctx, mail.BookingConfirmed, d.User.Email, subject, data)
}

// NotifyNewShow announces a newly scheduled movie to every user with an
// email address.  One failed recipient does not stop the batch.
func (s *NotificationService) NotifyNewShow(ctx context.Context, movieID string) (SweepResult, error) {
	var res SweepResult
	m, err := s.movies.GetByID(ctx, movieID)
	if err != nil {
		return res, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return res, err
	}
	subject := fmt.Sprintf("New Show Added: %q", m.Title)
	for _, u := range users {
		if u.Email == "" {
			continue
		}
		res.add(s.deliver(ctx, mail.ShowAdded, u.Email, subject, mail.ShowAddedData{UserName: u.Name, MovieTitle: m.Title}))
	}
	log.FromContext(ctx).WithFields(logrus.Fields{"movie_id": movieID, "sent": res.Sent, "failed": res.Failed}).
		Info("new show announced")
	return res, nil
}

// SendShowReminders emails every distinct seat holder of the shows that
// start within the reminder window ending at now+ahead.  Holders whose
// account is unknown count as failed deliveries.
func (s *NotificationService) SendShowReminders(ctx context.Context, now time.Time) (SweepResult, error) {
	var res SweepResult
	to := now.Add(s.ahead)
	from := to.Add(-s.window)
	shows, err := s.shows.ListStartingBetween(ctx, from, to)
	if err != nil {
		return res, err
	}
	if len(shows) == 0 {
		return res, nil
	}

	movieIDs := make([]string, 0, len(shows))
	for _, sh := range shows {
		movieIDs = append(movieIDs, sh.MovieID)
	}
	movies, err := s.movies.ListByIDs(ctx, movieIDs)
	if err != nil {
		return res, err
	}

	logger := log.FromContext(ctx)
	for _, sh := range shows {
		holders, err := s.seats.HolderIDs(ctx, sh.ID)
		if err != nil {
			return res, err
		}
		users, err := s.users.ListByIDs(ctx, holders)
		if err != nil {
			return res, err
		}
		byID := make(map[string]model.User, len(users))
		for _, u := range users {
			byID[u.ID] = u
		}

		title := movies[sh.MovieID].Title
		subject := fmt.Sprintf("Reminder for: %q", title)
		for _, id := range holders {
			u, ok := byID[id]
			if !ok || u.Email == "" {
				logger.WithFields(logrus.Fields{"show_id": sh.ID, "user_id": id}).Warn("reminder skipped: user has no email")
				metrics.EmailsSent.WithLabelValues(mail.ShowReminder, "failed").Inc()
				res.Failed++
				continue
			}
			res.add(s.deliver(ctx, mail.ShowReminder, u.Email, subject, mail.ShowReminderData{
				UserName:   u.Name,
				MovieTitle: title,
				ShowDate:   s.formatDate(sh.StartsAt),
				ShowTime:   s.formatTime(sh.StartsAt),
				HoursAhead: int(s.ahead.Hours()),
			}))
		}
	}
	logger.WithFields(logrus.Fields{"shows": len(shows), "sent": res.Sent, "failed": res.Failed}).Info("show reminders sent")
	return res, nil
}

func (s *NotificationService) deliver(ctx context.Context, templateID, to, subject string, data any) error {
	body, err := mail.Render(templateID, data)
	if err == nil {
		err = s.mail.Send(ctx, gateway.Message{To: to, Subject: subject, HTMLBody: body})
	}
	if err != nil {
		metrics.EmailsSent.WithLabelValues(templateID, "failed").Inc()
		log.FromContext(ctx).WithError(err).WithFields(logrus.Fields{"template": templateID, "to": to}).Error("email delivery failed")
		return err
	}
	metrics.EmailsSent.WithLabelValues(templateID, "sent").Inc()
	return nil
}

func (s *NotificationService) formatDate(t time.Time) string {
	return t.In(s.loc).Format("Monday, January 2, 2006")
}

func (s *NotificationService) formatTime(t time.Time) string {
	return t.In(s.loc).Format("3:04 PM MST")
}
