package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticket-booking/internal/config"
)

type retryRecorder struct {
	mu    sync.Mutex
	tasks []Task
	err   error
}

func (r *retryRecorder) Publish(ctx context.Context, task Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.tasks = append(r.tasks, task)
	return nil
}

func encodeTask(t *testing.T, kind Kind, payload any) []byte {
	t.Helper()
	task, err := NewTask(kind, payload, time.Now())
	require.NoError(t, err)
	body, err := json.Marshal(task)
	require.NoError(t, err)
	return body
}

func TestConsumer_RoutesByKind(t *testing.T) {
	c := NewConsumer(config.AMQPConfig{TaskQueue: "tasks"}, &retryRecorder{}, 3)

	var got BookingPayload
	c.Handle(KindFinalizeBooking, func(ctx context.Context, task Task) error {
		return task.Decode(&got)
	})
	c.Handle(KindShowAdded, func(ctx context.Context, task Task) error {
		t.Fatal("show.added handler must not run")
		return nil
	})

	err := c.deliver(context.Background(), encodeTask(t, KindFinalizeBooking, BookingPayload{BookingID: "b-1"}))
	require.NoError(t, err)
	assert.Equal(t, "b-1", got.BookingID)
}

func TestConsumer_FailedTaskIsRescheduled(t *testing.T) {
	retry := &retryRecorder{}
	c := NewConsumer(config.AMQPConfig{TaskQueue: "tasks"}, retry, 3)
	c.Handle(KindBookingConfirmed, func(ctx context.Context, task Task) error {
		return errors.New("smtp down")
	})

	before := time.Now()
	err := c.deliver(context.Background(), encodeTask(t, KindBookingConfirmed, BookingPayload{BookingID: "b-2"}))
	require.Error(t, err)

	require.Len(t, retry.tasks, 1)
	assert.Equal(t, 1, retry.tasks[0].Attempt)
	assert.True(t, retry.tasks[0].NotBefore.After(before))
}

func TestConsumer_DropsAfterMaxAttempts(t *testing.T) {
	retry := &retryRecorder{}
	c := NewConsumer(config.AMQPConfig{TaskQueue: "tasks"}, retry, 2)
	c.Handle(KindShowAdded, func(ctx context.Context, task Task) error {
		return errors.New("boom")
	})

	task, err := NewTask(KindShowAdded, ShowAddedPayload{MovieID: "42"}, time.Now())
	require.NoError(t, err)
	task.Attempt = 1
	body, err := json.Marshal(task)
	require.NoError(t, err)

	require.Error(t, c.deliver(context.Background(), body))
	assert.Empty(t, retry.tasks)
}

func TestConsumer_DurableTaskIsNeverDropped(t *testing.T) {
	retry := &retryRecorder{}
	c := NewConsumer(config.AMQPConfig{TaskQueue: "tasks"}, retry, 5)
	failures := 0
	c.HandleDurable(KindFinalizeBooking, func(ctx context.Context, task Task) error {
		failures++
		return errors.New("payment provider unavailable")
	})

	body := encodeTask(t, KindFinalizeBooking, BookingPayload{BookingID: "b-3"})
	for i := 1; i <= 12; i++ {
		require.Error(t, c.deliver(context.Background(), body))
		require.Len(t, retry.tasks, i, "attempt %d must be re-scheduled", i)

		next := retry.tasks[i-1]
		assert.Equal(t, i, next.Attempt)
		assert.WithinDuration(t, time.Now().Add(retryDelay(i)), next.NotBefore, 2*time.Second)

		var err error
		body, err = json.Marshal(next)
		require.NoError(t, err)
	}
	assert.Equal(t, 12, failures)
	assert.Equal(t, 5*time.Minute, retryDelay(12))
}

func TestConsumer_RetryPublishFailureRequeues(t *testing.T) {
	retry := &retryRecorder{err: errors.New("channel closed")}
	c := NewConsumer(config.AMQPConfig{TaskQueue: "tasks"}, retry, 5)
	c.HandleDurable(KindFinalizeBooking, func(ctx context.Context, task Task) error {
		return errors.New("payment provider unavailable")
	})

	err := c.deliver(context.Background(), encodeTask(t, KindFinalizeBooking, BookingPayload{BookingID: "b-4"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, errNotRescheduled)
}

func TestConsumer_HandlerErrorAloneIsNotRequeued(t *testing.T) {
	c := NewConsumer(config.AMQPConfig{TaskQueue: "tasks"}, &retryRecorder{}, 3)
	c.Handle(KindShowAdded, func(ctx context.Context, task Task) error {
		return errors.New("boom")
	})

	err := c.deliver(context.Background(), encodeTask(t, KindShowAdded, ShowAddedPayload{MovieID: "7"}))
	require.Error(t, err)
	assert.NotErrorIs(t, err, errNotRescheduled)
}

func TestConsumer_UnknownKindIsAcked(t *testing.T) {
	retry := &retryRecorder{}
	c := NewConsumer(config.AMQPConfig{TaskQueue: "tasks"}, retry, 3)

	assert.NoError(t, c.deliver(context.Background(), encodeTask(t, Kind("nope"), struct{}{})))
	assert.Empty(t, retry.tasks)
}

func TestConsumer_MalformedMessage(t *testing.T) {
	c := NewConsumer(config.AMQPConfig{TaskQueue: "tasks"}, &retryRecorder{}, 3)
	assert.Error(t, c.deliver(context.Background(), []byte("{not json")))
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 5*time.Second, retryDelay(1))
	assert.Equal(t, 10*time.Second, retryDelay(2))
	assert.Equal(t, 20*time.Second, retryDelay(3))
	assert.Equal(t, 5*time.Minute, retryDelay(20))
}
