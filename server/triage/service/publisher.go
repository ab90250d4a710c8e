package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"triage_server/server/triage/domain"
)

const EventsExchange = "triage.events"

const (
	EventEmergencyCreated           = "emergency.created"
	EventEmergencyUpdated           = "emergency.updated"
	EventEmergencyAssigned          = "emergency.assigned"
	EventEmergencyStatusChanged     = "emergency.status_changed"
	EventEmergencyVisibilityChanged = "emergency.visibility_changed"
	EventSMSSent                    = "communication.sms.sent"
	EventSMSFailed                  = "communication.sms.failed"
	EventEmailSent                  = "communication.email.sent"
	EventEmailFailed                = "communication.email.failed"
)

type EventPublisher interface {
	Publish(ctx context.Context, key string, payload any) error
}

type LifecycleEvent struct {
	Event        string                 `json:"event"`
	EmergencyID  string                 `json:"emergencyId"`
	Status       domain.EmergencyStatus `json:"status"`
	AssignedToID *string                `json:"assignedToId,omitempty"`
	IsHidden     bool                   `json:"isHidden"`
	OccurredAt   time.Time              `json:"occurredAt"`
}

type CommunicationEvent struct {
	Event       string                `json:"event"`
	EmergencyID string                `json:"emergencyId"`
	RecordID    string                `json:"recordId"`
	Status      domain.DeliveryStatus `json:"status"`
	OccurredAt  time.Time             `json:"occurredAt"`
}

// AMQPPublisher fans lifecycle events out on a durable topic exchange.
type AMQPPublisher struct {
	mu       sync.Mutex
	channel  *amqp.Channel
	exchange string
}

func NewAMQPPublisher(conn *amqp.Connection) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(EventsExchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return &AMQPPublisher{channel: ch, exchange: EventsExchange}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel == nil {
		return amqp.ErrClosed
	}
	return p.channel.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    time.Now(),
	})
}

func (p *AMQPPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
}

// NoopPublisher is used when the broker is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, any) error { return nil }
