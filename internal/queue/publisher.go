package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-booking/internal/config"
	"github.com/iliyamo/cinema-ticket-booking/internal/log"
)

// Publisher implements Scheduler on RabbitMQ.  Immediate tasks go to the
// durable task queue through the default exchange.  Delayed tasks are
// parked in a per-delay queue whose messages expire after the delay and
// are dead-lettered into the task queue.
type Publisher struct {
	cfg  config.AMQPConfig
	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher connects to the broker and declares the task queue.
func NewPublisher(cfg config.AMQPConfig) (*Publisher, error) {
	p := &Publisher{cfg: cfg}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connectLocked() error {
	conn, err := amqp.Dial(p.cfg.URL)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel open: %w", err)
	}
	if err := declareTaskQueue(ch, p.cfg.TaskQueue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}
	p.conn, p.ch = conn, ch
	return nil
}

func declareTaskQueue(ch *amqp.Channel, name string) error {
	// Durable so tasks survive broker restarts.
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare %s: %w", name, err)
	}
	return nil
}

// Dispatch publishes a task for immediate execution.
func (p *Publisher) Dispatch(ctx context.Context, kind Kind, payload any) error {
	return p.Schedule(ctx, kind, payload, time.Now())
}

// Schedule publishes a task that must not run before notBefore.
func (p *Publisher) Schedule(ctx context.Context, kind Kind, payload any, notBefore time.Time) error {
	task, err := NewTask(kind, payload, notBefore)
	if err != nil {
		return err
	}
	task.CorrelationID = log.CorrelationIDFromContext(ctx)
	return p.Publish(ctx, task)
}

// Publish sends an already built task, honouring its NotBefore.  The
// consumer uses it to re-schedule failed tasks.
func (p *Publisher) Publish(ctx context.Context, task Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	delay := time.Until(task.NotBefore).Round(time.Second)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil || p.ch.IsClosed() {
		if p.conn != nil {
			_ = p.conn.Close()
		}
		if err := p.connectLocked(); err != nil {
			return err
		}
	}

	routingKey := p.cfg.TaskQueue
	if delay > 0 {
		routingKey = fmt.Sprintf("%s.delay.%d", p.cfg.TaskQueue, delay.Milliseconds())
		if _, err := p.ch.QueueDeclare(routingKey, true, false, false, false, amqp.Table{
			"x-message-ttl":             delay.Milliseconds(),
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": p.cfg.TaskQueue,
			"x-expires":                 delay.Milliseconds() + int64(time.Minute/time.Millisecond),
		}); err != nil {
			return fmt.Errorf("declare delay queue: %w", err)
		}
	}

	pub := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent, // store on disk
		MessageId:     task.ID,
		CorrelationId: task.CorrelationID,
		Type:          string(task.Kind),
		Timestamp:     time.Now().UTC(),
		Body:          body,
	}
	if err := p.ch.PublishWithContext(ctx, "", routingKey, false, false, pub); err != nil {
		return fmt.Errorf("publish %s: %w", task.Kind, err)
	}
	log.FromContext(ctx).WithFields(logrus.Fields{
		"task_id": task.ID, "kind": task.Kind, "delay": delay.String(),
	}).Debug("task published")
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
