package events

import (
	"context"
	"encoding/json"
	"testing"

	"pharmacy-store/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestNewOrderEvent(t *testing.T) {
	order := &domain.Order{
		ID:          uuid.New(),
		OrderNumber: "ORD-20240101-ABC123",
		UserID:      "user-1",
		Status:      domain.OrderStatusConfirmed,
		Total:       decimal.NewFromInt(130),
	}

	event := NewOrderEvent(TypeOrderStatusChanged, order, domain.OrderStatusPending)

	if event.OrderID != order.ID.String() || event.Total != "130.00" {
		t.Errorf("unexpected event %+v", event)
	}

	raw, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["previousStatus"] != "pending" || decoded["status"] != "confirmed" {
		t.Errorf("unexpected payload %s", raw)
	}
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = Noop{}
	if err := p.PublishOrder(context.Background(), OrderEvent{Type: TypeOrderCreated}); err != nil {
		t.Errorf("noop publisher returned %v", err)
	}
	p.Close()
}
