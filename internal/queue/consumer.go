package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-booking/internal/config"
	"github.com/iliyamo/cinema-ticket-booking/internal/log"
	"github.com/iliyamo/cinema-ticket-booking/internal/metrics"
)

// Handler executes one task.  Returning an error schedules a retry.
type Handler func(ctx context.Context, task Task) error

// errNotRescheduled marks a failed task whose retry could not be
// published.  The delivery is then handed back to the broker.
var errNotRescheduled = errors.New("task not re-scheduled")

// retryPublisher re-publishes failed tasks with a later NotBefore.
type retryPublisher interface {
	Publish(ctx context.Context, task Task) error
}

// Consumer reads the task queue and routes each task to the handler
// registered for its kind.
type Consumer struct {
	cfg         config.AMQPConfig
	retry       retryPublisher
	maxAttempts int
	handlers    map[Kind]Handler
	durable     map[Kind]bool
}

func NewConsumer(cfg config.AMQPConfig, retry retryPublisher, maxAttempts int) *Consumer {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Consumer{cfg: cfg, retry: retry, maxAttempts: maxAttempts, handlers: map[Kind]Handler{}, durable: map[Kind]bool{}}
}

// Handle registers h for kind.  It must be called before Run.
func (c *Consumer) Handle(kind Kind, h Handler) {
	c.handlers[kind] = h
}

// HandleDurable registers h for a kind whose tasks are never dropped.  A
// failing task is re-scheduled with the capped retry delay until it
// succeeds, regardless of the attempt limit.
func (c *Consumer) HandleDurable(kind Kind, h Handler) {
	c.handlers[kind] = h
	c.durable[kind] = true
}

// Run connects to RabbitMQ, declares the task queue (durable) and consumes
// until ctx is cancelled.  Broker failures never stop the consumer: it
// reconnects with a capped exponential backoff and keeps going.
func (c *Consumer) Run(ctx context.Context) error {
	reconnect := backoff.NewExponentialBackOff()
	reconnect.InitialInterval = time.Second
	reconnect.MaxInterval = 30 * time.Second
	reconnect.MaxElapsedTime = 0 // never give up
	for {
		conn, err := amqp.Dial(c.cfg.URL)
		if err != nil {
			wait := reconnect.NextBackOff()
			logrus.WithError(err).Warnf("task-consumer: failed to dial broker; retrying in %s", wait)
			if !sleep(ctx, wait) {
				return nil
			}
			continue
		}
		reconnect.Reset() // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		logrus.WithError(err).Warn("task-consumer: consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		logrus.WithError(err).Warn("task-consumer: set QoS failed")
	}
	if err := declareTaskQueue(ch, c.cfg.TaskQueue); err != nil {
		return err
	}
	msgs, err := ch.Consume(c.cfg.TaskQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	logrus.WithField("queue", c.cfg.TaskQueue).Info("task-consumer: consuming")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.deliver(ctx, d.Body); errors.Is(err, errNotRescheduled) {
				// Give the broker a moment before it redelivers.
				sleep(ctx, time.Second)
				_ = d.Nack(false, true)
				continue
			}
			// Failed tasks are re-published by deliver, so the original
			// delivery is acknowledged.
			_ = d.Ack(false)
		}
	}
}

// deliver runs one message through its handler and re-schedules it on
// failure.  It returns the error of the handler, if any, joined with
// errNotRescheduled when the retry could not be published.
func (c *Consumer) deliver(ctx context.Context, body []byte) error {
	var task Task
	if err := json.Unmarshal(body, &task); err != nil {
		logrus.WithError(err).Error("task-consumer: dropping malformed message")
		return err
	}
	if task.CorrelationID != "" {
		ctx = log.ContextWithCorrelationID(ctx, task.CorrelationID)
	}
	logger := log.FromContext(ctx).WithFields(logrus.Fields{"task_id": task.ID, "kind": task.Kind, "attempt": task.Attempt})

	h, ok := c.handlers[task.Kind]
	if !ok {
		logger.Warn("task-consumer: no handler for task kind")
		return nil
	}

	start := time.Now()
	err := h(ctx, task)
	metrics.TaskDuration.WithLabelValues(string(task.Kind)).Observe(time.Since(start).Seconds())
	if err == nil {
		metrics.TasksProcessed.WithLabelValues(string(task.Kind)).Inc()
		return nil
	}
	metrics.TasksFailed.WithLabelValues(string(task.Kind)).Inc()

	task.Attempt++
	if task.Attempt >= c.maxAttempts && !c.durable[task.Kind] {
		logger.WithError(err).Error("task-consumer: task failed permanently, dropping")
		return err
	}
	task.NotBefore = time.Now().Add(retryDelay(task.Attempt))
	if perr := c.retry.Publish(ctx, task); perr != nil {
		logger.WithError(perr).Error("task-consumer: failed to re-schedule task")
		return errors.Join(err, fmt.Errorf("%w: %v", errNotRescheduled, perr))
	}
	logger.WithError(err).Warnf("task-consumer: task failed, retry scheduled at %s", task.NotBefore.Format(time.RFC3339))
	return err
}

// retryDelay grows exponentially from 5s and is capped at 5 minutes.
func retryDelay(attempt int) time.Duration {
	d := 5 * time.Second
	for i := 1; i < attempt && d < 5*time.Minute; i++ {
		d *= 2
	}
	if d > 5*time.Minute {
		d = 5 * time.Minute
	}
	return d
}
