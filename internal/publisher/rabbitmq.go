package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"events_syncer/internal/domain"
)

// RabbitMQ announces created, updated and moved events on a durable direct
// exchange so downstream consumers (site rebuilds, chat bots) can react.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger = logger.With("exchange", cfg.Exchange, "routing_key", cfg.RoutingKey)
	logger.Info("connected to rabbitmq", "queue", cfg.QueueName)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

// declareTopology makes sure the exchange, queue and binding exist. All
// three are durable and non-exclusive.
func declareTopology(ch *amqp.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// EventMessage is the JSON body published for each changed event.
type EventMessage struct {
	Action    domain.Change `json:"action"`
	GuildID   string        `json:"guild_id"`
	Event     EventPayload  `json:"event"`
	Timestamp time.Time     `json:"timestamp"`
}

type EventPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Section     string `json:"section"`
}

func NewEventMessage(guildID string, event *domain.Event, change domain.Change) EventMessage {
	return EventMessage{
		Action:  change,
		GuildID: guildID,
		Event: EventPayload{
			ID:          event.ID,
			Name:        event.Name,
			Date:        event.Date.Format(time.DateOnly),
			Description: event.Description,
			Location:    event.Location,
			Section:     string(event.Section),
		},
		Timestamp: time.Now().UTC(),
	}
}

func (r *RabbitMQ) Publish(ctx context.Context, guildID string, event *domain.Event, change domain.Change) error {
	body, err := json.Marshal(NewEventMessage(guildID, event, change))
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	r.logger.Debug("published event",
		"event_id", event.ID,
		"action", change,
	)

	return nil
}

func (r *RabbitMQ) Close() error {
	var errs []error
	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}
