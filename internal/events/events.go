// Package events publishes visit lifecycle events for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/evcraddock/vigia/internal/visit"
)

// Routing keys.
const (
	VisitCreated = "visit.created"
	VisitDeleted = "visit.deleted"
)

// Event is the message body of every published event.
type Event struct {
	Name           string       `json:"event"`
	VisitID        string       `json:"visit_id"`
	OrganizationID string       `json:"organization_id"`
	AgentID        string       `json:"agent_id"`
	Type           visit.Type   `json:"type,omitempty"`
	Visit          *visit.Visit `json:"visit,omitempty"`
	OccurredAt     time.Time    `json:"occurred_at"`
}

// Created builds the event for a newly stored visit.
func Created(v *visit.Visit, at time.Time) Event {
	return Event{
		Name:           VisitCreated,
		VisitID:        v.ID,
		OrganizationID: v.OrganizationID,
		AgentID:        v.AgentID,
		Type:           v.Type,
		Visit:          v,
		OccurredAt:     at,
	}
}

// Deleted builds the event for a removed visit.
func Deleted(v *visit.Visit, at time.Time) Event {
	return Event{
		Name:           VisitDeleted,
		VisitID:        v.ID,
		OrganizationID: v.OrganizationID,
		AgentID:        v.AgentID,
		Type:           v.Type,
		OccurredAt:     at,
	}
}

// Publisher sends events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes events to a durable direct exchange, using the
// event name as routing key.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	exchange string
}

// NewAMQPPublisher connects to url and declares exchange.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		closeConn(conn)
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		if cerr := ch.Close(); cerr != nil {
			slog.Warn("closing channel", "error", cerr)
		}
		closeConn(conn)
		return nil, fmt.Errorf("declaring exchange: %w", err)
	}

	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// Publish sends e as a persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    e.OccurredAt,
		MessageId:    e.VisitID + ":" + e.Name,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Publish(p.exchange, e.Name, false, false, msg); err != nil {
		return fmt.Errorf("publishing %s: %w", e.Name, err)
	}
	return nil
}

// Close closes the channel and the connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	if p.ch != nil {
		if cerr := p.ch.Close(); cerr != nil {
			err = fmt.Errorf("closing channel: %w", cerr)
		}
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing connection: %w", cerr)
		}
	}
	return err
}

func closeConn(conn *amqp.Connection) {
	if err := conn.Close(); err != nil {
		slog.Warn("closing broker connection", "error", err)
	}
}
