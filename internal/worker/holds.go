package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-booking/internal/log"
	"github.com/iliyamo/cinema-ticket-booking/internal/service"
)

// OverdueReleaser is implemented by service.BookingService.
type OverdueReleaser interface {
	ReleaseOverdue(ctx context.Context, now time.Time) (service.OverdueResult, error)
}

// HoldSweeper periodically finalizes unpaid bookings whose hold window has
// ended but whose scheduled check has not released them yet.
type HoldSweeper struct {
	releaser OverdueReleaser
	every    time.Duration
	now      func() time.Time
}

func NewHoldSweeper(releaser OverdueReleaser, every time.Duration) *HoldSweeper {
	return &HoldSweeper{releaser: releaser, every: every, now: time.Now}
}

// Run blocks until ctx is cancelled.
func (w *HoldSweeper) Run(ctx context.Context) error {
	logger := log.FromContext(ctx).WithField("worker", "holds")
	logger.WithField("every", w.every.String()).Info("hold sweeper started")
	ticker := time.NewTicker(w.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("hold sweeper stopped")
			return nil
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs one sweep as of the current time.
func (w *HoldSweeper) RunOnce(ctx context.Context) (service.OverdueResult, error) {
	ctx = log.ContextWithCorrelationID(ctx, log.NewCorrelationID())
	logger := log.FromContext(ctx).WithField("worker", "holds")
	res, err := w.releaser.ReleaseOverdue(ctx, w.now())
	if err != nil {
		logger.WithError(err).Error("hold sweep failed")
		return res, err
	}
	if res.Finalized > 0 || res.Failed > 0 {
		logger.WithFields(logrus.Fields{"finalized": res.Finalized, "failed": res.Failed}).Warn("overdue bookings finalized by sweep")
	}
	return res, nil
}
