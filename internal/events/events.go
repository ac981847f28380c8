// Package events publishes order lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pharmacy-store/internal/domain"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

const (
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
)

// OrderEvent is the payload written for every order change
type OrderEvent struct {
	Type           string             `json:"type"`
	OrderID        string             `json:"orderId"`
	OrderNumber    string             `json:"orderNumber"`
	UserID         string             `json:"userId"`
	Status         domain.OrderStatus `json:"status"`
	PreviousStatus domain.OrderStatus `json:"previousStatus,omitempty"`
	Total          string             `json:"total"`
	OccurredAt     time.Time          `json:"occurredAt"`
}

// NewOrderEvent builds an event of type eventType describing order
func NewOrderEvent(eventType string, order *domain.Order, previous domain.OrderStatus) OrderEvent {
	return OrderEvent{
		Type:           eventType,
		OrderID:        order.ID.String(),
		OrderNumber:    order.OrderNumber,
		UserID:         order.UserID,
		Status:         order.Status,
		PreviousStatus: previous,
		Total:          order.Total.StringFixed(2),
		OccurredAt:     time.Now().UTC(),
	}
}

// Publisher delivers order events
type Publisher interface {
	PublishOrder(ctx context.Context, event OrderEvent) error
	Close()
}

// Noop discards every event. It is used when no brokers are configured.
type Noop struct{}

func (Noop) PublishOrder(context.Context, OrderEvent) error { return nil }
func (Noop) Close() {}

// Kafka writes events to a single topic keyed by order id, so every event
// of one order lands on the same partition in order.
type Kafka struct {
	client *kgo.Client
	topic  string
	logger *zap.Logger
}

// NewKafka connects a producer to brokers
func NewKafka(brokers []string, topic string, logger *zap.Logger) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(10*time.Millisecond),
		kgo.RecordRetries(5),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return &Kafka{client: client, topic: topic, logger: logger.Named("events")}, nil
}

func (k *Kafka) PublishOrder(ctx context.Context, event OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}

	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(event.OrderID),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "type", Value: []byte(event.Type)},
		},
	}

	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce %s event: %w", event.Type, err)
	}

	k.logger.Debug("Event produced",
		zap.String("type", event.Type),
		zap.String("order_number", event.OrderNumber),
	)
	return nil
}

func (k *Kafka) Close() {
	k.client.Close()
}
