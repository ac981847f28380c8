package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfillment state staff advance an order through
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusReady      OrderStatus = "ready"
	OrderStatusDelivered  OrderStatus = "delivered"
)

// OrderStatuses lists the lifecycle in forward order
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusReady,
	OrderStatusDelivered,
}

// ParseOrderStatus returns the status named s, or false when s is not one of
// the enumerated values.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	for _, st := range OrderStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Rank is the position of the status in the lifecycle, -1 if unknown
func (s OrderStatus) Rank() int {
	for i, st := range OrderStatuses {
		if st == s {
			return i
		}
	}
	return -1
}

// DeliveryType is how the customer receives the order
type DeliveryType string

const (
	DeliveryPickup   DeliveryType = "pickup"
	DeliveryDelivery DeliveryType = "delivery"
)

// Order is a submitted cart. It exclusively owns its items.
type Order struct {
	ID                   uuid.UUID       `json:"id" db:"id"`
	OrderNumber          string          `json:"orderNumber" db:"order_number"`
	UserID               string          `json:"userId" db:"user_id"`
	CustomerName         string          `json:"customerName" db:"customer_name"`
	CustomerPhone        string          `json:"customerPhone" db:"customer_phone"`
	DeliveryType         DeliveryType    `json:"deliveryType" db:"delivery_type"`
	DeliveryAddress      string          `json:"deliveryAddress,omitempty" db:"delivery_address"`
	Subtotal             decimal.Decimal `json:"subtotal" db:"subtotal"`
	DeliveryFee          decimal.Decimal `json:"deliveryFee" db:"delivery_fee"`
	Total                decimal.Decimal `json:"total" db:"total"`
	Status               OrderStatus     `json:"status" db:"status"`
	RequiresPrescription bool            `json:"requiresPrescription" db:"requires_prescription"`
	PrescriptionID       *uuid.UUID      `json:"prescriptionId,omitempty" db:"prescription_id"`
	Notes                string          `json:"notes,omitempty" db:"notes"`
	Items                []OrderItem     `json:"items"`
	CreatedAt            time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt            time.Time       `json:"updatedAt" db:"updated_at"`
}

// OrderItem is an immutable line of an order. Name and unit price are
// snapshots taken at creation.
type OrderItem struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	OrderID      uuid.UUID       `json:"orderId" db:"order_id"`
	MedicineID   uuid.UUID       `json:"medicineId" db:"medicine_id"`
	MedicineName string          `json:"medicineName" db:"medicine_name"`
	Quantity     int             `json:"quantity" db:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice" db:"unit_price"`
	LineTotal    decimal.Decimal `json:"lineTotal" db:"line_total"`
}
