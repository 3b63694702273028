// README: RabbitMQ transport for lifecycle events; used when workers run out of process.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"trego/internal/types"
)

// Publisher implements the engine's emitter over an AMQP topic exchange.
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	log      *zap.Logger
}

func NewPublisher(url, exchange string, log *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange, log: log}, nil
}

func (p *Publisher) Emit(ctx context.Context, rideID types.ID, event string) error {
	body, err := json.Marshal(Event{RideID: rideID, Name: event})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	routingKey := "ride." + event
	if err := p.ch.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	p.log.Debug("event published",
		zap.Int64("ride_id", int64(rideID)), zap.String("routing_key", routingKey))
	return nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			return fmt.Errorf("failed to close channel: %w", err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}
	return nil
}

// Consumer binds a queue to the ride event exchange and feeds a Worker.
// Redelivery on handler failure follows the broker's policy.
type Consumer struct {
	ch    *amqp.Channel
	queue string
	log   *zap.Logger
}

func NewConsumer(url, exchange, queue string, log *zap.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(queue, "ride.#", exchange, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}
	return &Consumer{ch: ch, queue: queue, log: log}, nil
}

func (c *Consumer) Run(ctx context.Context, worker *Worker) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			var e Event
			if err := json.Unmarshal(d.Body, &e); err != nil {
				c.log.Error("malformed event payload", zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			worker.Handle(ctx, e)
			_ = d.Ack(false)
		}
	}
}
