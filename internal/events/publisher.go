// Package events publishes attempt notifications to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	DefaultExchange = "dsat.attempts"

	RoutingAttemptsSaved = "attempts.saved"
)

// AttemptsSaved is emitted after a bulk upsert wrote at least one record.
type AttemptsSaved struct {
	UserID    string   `json:"userId"`
	IDs       []string `json:"ids"`
	Timestamp int64    `json:"timestamp"`
}

// Publisher is a topic-exchange publisher. A Publisher built from an empty URI
// is disabled and drops every event.
type Publisher struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	enabled      bool
	now          func() time.Time
}

func NewPublisher(rabbitURI, exchange string) (*Publisher, error) {
	if rabbitURI == "" {
		log.Println("Warning: RabbitMQ URI is empty, event publishing is disabled")
		return &Publisher{enabled: false, now: time.Now}, nil
	}
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp091.Dial(rabbitURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		conn:         conn,
		channel:      channel,
		exchangeName: exchange,
		enabled:      true,
		now:          time.Now,
	}, nil
}

func (p *Publisher) Enabled() bool { return p != nil && p.enabled }

func (p *Publisher) publish(ctx context.Context, routingKey string, event any) error {
	if !p.Enabled() {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(
		pubCtx,
		p.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    p.now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// AttemptsSaved publishes the ids written for one user.
func (p *Publisher) AttemptsSaved(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 || !p.Enabled() {
		return nil
	}
	return p.publish(ctx, RoutingAttemptsSaved, AttemptsSaved{
		UserID:    userID,
		IDs:       ids,
		Timestamp: p.now().UnixMilli(),
	})
}

func (p *Publisher) Close() error {
	if !p.Enabled() {
		return nil
	}
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			log.Printf("Error closing RabbitMQ channel: %v", err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("error closing RabbitMQ connection: %w", err)
		}
	}
	return nil
}
