package events

import (
	"context"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher sends raw event envelopes to an external broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
	Close() error
}

// RabbitPublisher publishes JSON envelopes to a RabbitMQ topic exchange.
type RabbitPublisher struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	logger   *zap.Logger
}

// NewRabbitPublisher dials the broker and declares the exchange.
func NewRabbitPublisher(url, exchange string, logger *zap.Logger) (*RabbitPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	logger.Info("connected to broker", zap.String("exchange", exchange))
	return &RabbitPublisher{conn: conn, channel: ch, exchange: exchange, logger: logger}, nil
}

// Publish sends body with the given routing key.
func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	if p == nil {
		return nil
	}
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Body:         body,
	})
}

// Close terminates the connection.
func (p *RabbitPublisher) Close() error {
	if p == nil {
		return nil
	}
	if err := p.channel.Close(); err != nil {
		p.logger.Warn("close broker channel", zap.Error(err))
	}
	return p.conn.Close()
}

// RoutingKey is the topic an event is published under, e.g. "bookissue.ticket_created".
func RoutingKey(event Event) string {
	return "bookissue." + string(event.Type())
}

// Forwarder returns a handler that mirrors every event onto the broker.
func Forwarder(publisher Publisher) EventHandler {
	return func(ctx context.Context, event Event) error {
		body, err := Encode(event)
		if err != nil {
			return err
		}
		return publisher.Publish(ctx, RoutingKey(event), body)
	}
}
