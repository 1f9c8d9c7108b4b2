package helpers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// rabbitConn is one connection with one channel bound to a durable queue.
type rabbitConn struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	Queue string
}

// dialRabbit connects, opens a channel and declares queue. setup runs on the channel
// before the queue is declared and may be nil.
func dialRabbit(url, queue string, setup func(*amqp.Channel) error) (rabbitConn, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return rabbitConn{}, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return rabbitConn{}, fmt.Errorf("amqp channel: %w", err)
	}
	rc := rabbitConn{conn: conn, ch: ch, Queue: queue}
	if setup != nil {
		if err := setup(ch); err != nil {
			rc.close()
			return rabbitConn{}, err
		}
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		rc.close()
		return rabbitConn{}, fmt.Errorf("declare %s: %w", queue, err)
	}
	return rc, nil
}

func (rc rabbitConn) close() {
	if rc.ch != nil {
		_ = rc.ch.Close()
	}
	if rc.conn != nil {
		_ = rc.conn.Close()
	}
}

// RabbitPublisher publishes JSON messages to one queue through the default exchange.
// It satisfies application.ActivityPublisher.
type RabbitPublisher struct {
	rabbitConn
}

func NewRabbitPublisher(url, queue string) (*RabbitPublisher, error) {
	rc, err := dialRabbit(url, queue, nil)
	if err != nil {
		return nil, err
	}
	return &RabbitPublisher{rabbitConn: rc}, nil
}

func (p *RabbitPublisher) Close() {
	if p != nil {
		p.close()
	}
}

// Ping reports an error once the broker connection is gone.
func (p *RabbitPublisher) Ping(context.Context) error {
	if p.conn == nil || p.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	return nil
}

// PublishJSON encodes body and publishes it as a persistent message.
func (p *RabbitPublisher) PublishJSON(ctx context.Context, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return p.ch.PublishWithContext(ctx, "", p.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         b,
	})
}

// RabbitConsumer reads deliveries from one durable queue with manual acks.
type RabbitConsumer struct {
	rabbitConn
}

// NewRabbitConsumer limits unacked deliveries to prefetch for fair dispatch across workers.
func NewRabbitConsumer(url, queue string, prefetch int) (*RabbitConsumer, error) {
	rc, err := dialRabbit(url, queue, func(ch *amqp.Channel) error {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			return fmt.Errorf("qos: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &RabbitConsumer{rabbitConn: rc}, nil
}

func (c *RabbitConsumer) Deliveries() (<-chan amqp.Delivery, error) {
	return c.ch.Consume(c.Queue, "", false, false, false, false, nil)
}

func (c *RabbitConsumer) Close() {
	if c != nil {
		c.close()
	}
}
