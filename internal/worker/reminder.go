// Package worker runs the periodic background jobs of the service.
package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-booking/internal/log"
	"github.com/iliyamo/cinema-ticket-booking/internal/service"
)

// ReminderSender is implemented by service.NotificationService.
type ReminderSender interface {
	SendShowReminders(ctx context.Context, now time.Time) (service.SweepResult, error)
}

// ReminderWorker triggers the show reminder sweep on wall-clock boundaries
// of its period (00:00, 08:00 and 16:00 UTC for the default eight hours).
type ReminderWorker struct {
	sender ReminderSender
	every  time.Duration
	now    func() time.Time
}

func NewReminderWorker(sender ReminderSender, every time.Duration) *ReminderWorker {
	return &ReminderWorker{sender: sender, every: every, now: time.Now}
}

// Run blocks until ctx is cancelled.  A failed sweep is logged and the
// next one runs at the following boundary.
func (w *ReminderWorker) Run(ctx context.Context) error {
	logger := log.FromContext(ctx).WithField("worker", "reminder")
	logger.WithField("every", w.every.String()).Info("reminder worker started")
	for {
		next := nextTick(w.now(), w.every)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info("reminder worker stopped")
			return nil
		case <-timer.C:
			w.RunOnce(ctx, next)
		}
	}
}

// RunOnce performs one sweep as of now.
func (w *ReminderWorker) RunOnce(ctx context.Context, now time.Time) (service.SweepResult, error) {
	ctx = log.ContextWithCorrelationID(ctx, log.NewCorrelationID())
	logger := log.FromContext(ctx).WithField("worker", "reminder")
	res, err := w.sender.SendShowReminders(ctx, now)
	if err != nil {
		logger.WithError(err).Error("reminder sweep failed")
		return res, err
	}
	logger.WithFields(logrus.Fields{"sent": res.Sent, "failed": res.Failed}).Info("reminder sweep finished")
	return res, nil
}

// nextTick returns the first multiple of every after now.
func nextTick(now time.Time, every time.Duration) time.Time {
	return now.Truncate(every).Add(every)
}
