package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pharmacy-store/internal/cart"
	"pharmacy-store/internal/domain"
	"pharmacy-store/internal/events"
	"pharmacy-store/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// orderNumberAttempts bounds retries when a generated order number collides
const orderNumberAttempts = 3

// OrderItemInput is one requested line of an order
type OrderItemInput struct {
	MedicineID uuid.UUID
	Quantity   int
}

// CreateOrderInput is everything a customer submits at checkout
type CreateOrderInput struct {
	Items           []OrderItemInput
	CustomerName    string
	CustomerPhone   string
	DeliveryType    string
	DeliveryAddress string
	PrescriptionID  *uuid.UUID
	Notes           string
}

// OrderPolicy holds the configurable parts of the order workflow
type OrderPolicy struct {
	DeliveryFee decimal.Decimal
	// EnforceAdjacent limits status updates to staying put or moving one
	// step forward. When false any enumerated status may follow any other.
	EnforceAdjacent bool
}

// OrderService defines the interface for order business logic
type OrderService interface {
	CreateOrder(ctx context.Context, userID string, input CreateOrderInput) (*domain.Order, error)
	Quote(ctx context.Context, items []OrderItemInput, prescriptionID *uuid.UUID) (*cart.Cart, error)
	ListForUser(ctx context.Context, userID string) ([]*domain.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListAll(ctx context.Context, status string) ([]*domain.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*domain.Order, error)
}

type orderService struct {
	orderRepo        repository.OrderRepository
	medicineRepo     repository.MedicineRepository
	prescriptionRepo repository.PrescriptionRepository
	publisher        events.Publisher
	policy           OrderPolicy
	logger           *zap.Logger
	now              func() time.Time
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(
	orderRepo repository.OrderRepository,
	medicineRepo repository.MedicineRepository,
	prescriptionRepo repository.PrescriptionRepository,
	publisher events.Publisher,
	policy OrderPolicy,
	logger *zap.Logger,
) OrderService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &orderService{
		orderRepo:        orderRepo,
		medicineRepo:     medicineRepo,
		prescriptionRepo: prescriptionRepo,
		publisher:        publisher,
		policy:           policy,
		logger:           logger.Named("orders"),
		now:              time.Now,
	}
}

// CreateOrder validates the submission against the current catalog and
// persists the order with all of its items, or nothing at all.
func (s *orderService) CreateOrder(ctx context.Context, userID string, input CreateOrderInput) (*domain.Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.NewValidationError("userId", "is required")
	}

	deliveryType, err := validateContact(&input)
	if err != nil {
		return nil, err
	}

	c, err := s.buildCart(ctx, input.Items, true)
	if err != nil {
		return nil, err
	}

	if input.PrescriptionID != nil {
		p, err := s.prescriptionRepo.FindByID(ctx, *input.PrescriptionID)
		if err != nil {
			return nil, err
		}
		if p.UserID != userID {
			return nil, domain.ErrForbiddenPrescription
		}
		if p.Status == domain.PrescriptionRejected {
			return nil, domain.NewValidationError("prescriptionId", "prescription was rejected")
		}
		c.SelectPrescription(p.ID)
	}

	if c.RequiresCheckoutBlock() {
		return nil, &domain.ValidationError{
			Field:   "prescriptionId",
			Message: "a prescription is required for restricted medicines",
			Err:     domain.ErrPrescriptionRequired,
		}
	}

	order := s.newOrder(userID, input, deliveryType, c)

	for attempt := 1; ; attempt++ {
		order.OrderNumber = s.orderNumber()
		err = s.orderRepo.Create(ctx, order)
		if !errors.Is(err, repository.ErrDuplicateOrderNumber) || attempt == orderNumberAttempts {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.logger.Info("Order created",
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", userID),
		zap.Int("items", len(order.Items)),
		zap.String("total", order.Total.StringFixed(2)),
		zap.Bool("requires_prescription", order.RequiresPrescription),
	)
	s.publish(ctx, events.NewOrderEvent(events.TypeOrderCreated, order, ""))

	return order, nil
}

// Quote prices items against the current catalog and evaluates the
// prescription gate without persisting anything. Quantities are clamped to
// stock the way the storefront cart clamps them.
func (s *orderService) Quote(ctx context.Context, items []OrderItemInput, prescriptionID *uuid.UUID) (*cart.Cart, error) {
	c, err := s.buildCart(ctx, items, false)
	if err != nil {
		return nil, err
	}
	if prescriptionID != nil {
		c.SelectPrescription(*prescriptionID)
	}
	return c, nil
}

// ListForUser returns a user's orders newest first
func (s *orderService) ListForUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	orders, err := s.orderRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// Get retrieves an order with its items
func (s *orderService) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.orderRepo.FindByID(ctx, id)
}

// ListAll returns every order, optionally only those in status
func (s *orderService) ListAll(ctx context.Context, status string) ([]*domain.Order, error) {
	var filter *domain.OrderStatus
	if status != "" {
		st, ok := domain.ParseOrderStatus(status)
		if !ok {
			return nil, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
		}
		filter = &st
	}

	orders, err := s.orderRepo.ListAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus moves an order to status
func (s *orderService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*domain.Order, error) {
	to, ok := domain.ParseOrderStatus(status)
	if !ok {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}

	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := order.Status
	if !s.CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s to %s", domain.ErrInvalidStatusTransition, from, to)
	}
	if from == to {
		return order, nil
	}

	if err := s.orderRepo.UpdateStatus(ctx, id, from, to); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, fmt.Errorf("%w: order changed while updating", domain.ErrInvalidStatusTransition)
		}
		return nil, err
	}

	order, err = s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order status changed",
		zap.String("order_number", order.OrderNumber),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	s.publish(ctx, events.NewOrderEvent(events.TypeOrderStatusChanged, order, from))

	return order, nil
}

// CanTransition reports whether the policy allows moving from one status to
// another
func (s *orderService) CanTransition(from, to domain.OrderStatus) bool {
	if from.Rank() < 0 || to.Rank() < 0 {
		return false
	}
	if !s.policy.EnforceAdjacent {
		return true
	}
	return to.Rank() == from.Rank() || to.Rank() == from.Rank()+1
}

// buildCart loads every requested medicine from the current catalog. With
// strict set a quantity above stock is an error instead of being clamped.
func (s *orderService) buildCart(ctx context.Context, items []OrderItemInput, strict bool) (*cart.Cart, error) {
	if len(items) == 0 {
		return nil, domain.NewValidationError("items", "at least one item is required")
	}

	ids := make([]uuid.UUID, 0, len(items))
	requested := make(map[uuid.UUID]int, len(items))
	for i, item := range items {
		if item.Quantity < 1 {
			return nil, domain.NewValidationError(fmt.Sprintf("items[%d].quantity", i), "must be at least 1")
		}
		if _, seen := requested[item.MedicineID]; !seen {
			ids = append(ids, item.MedicineID)
		}
		requested[item.MedicineID] += item.Quantity
	}

	medicines, err := s.medicineRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load medicines: %w", err)
	}

	c := cart.New()
	for _, id := range ids {
		m, ok := medicines[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", repository.ErrMedicineNotFound, id)
		}
		qty := requested[id]
		if strict && qty > m.Stock {
			return nil, domain.NewValidationError("items", fmt.Sprintf("only %d of %s in stock", m.Stock, m.Name))
		}
		m.CategoryName = CategoryOf(m)
		if err := c.Add(*m, qty); err != nil {
			if errors.Is(err, cart.ErrOutOfStock) {
				return nil, domain.NewValidationError("items", fmt.Sprintf("%s is out of stock", m.Name))
			}
			return nil, err
		}
	}
	return c, nil
}

func (s *orderService) newOrder(userID string, input CreateOrderInput, deliveryType domain.DeliveryType, c *cart.Cart) *domain.Order {
	now := s.now().UTC()

	fee := decimal.Zero
	if deliveryType == domain.DeliveryDelivery {
		fee = s.policy.DeliveryFee
	}
	subtotal := c.Subtotal()

	order := &domain.Order{
		ID:                   uuid.New(),
		UserID:               userID,
		CustomerName:         strings.TrimSpace(input.CustomerName),
		CustomerPhone:        strings.TrimSpace(input.CustomerPhone),
		DeliveryType:         deliveryType,
		Subtotal:             subtotal,
		DeliveryFee:          fee,
		Total:                subtotal.Add(fee),
		Status:               domain.OrderStatusPending,
		RequiresPrescription: c.RequiresPrescription(),
		Notes:                strings.TrimSpace(input.Notes),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if deliveryType == domain.DeliveryDelivery {
		order.DeliveryAddress = strings.TrimSpace(input.DeliveryAddress)
	}
	if ref, ok := c.Prescription(); ok {
		order.PrescriptionID = &ref
	}

	for _, line := range c.Lines() {
		order.Items = append(order.Items, domain.OrderItem{
			ID:           uuid.New(),
			OrderID:      order.ID,
			MedicineID:   line.Medicine.ID,
			MedicineName: line.Medicine.Name,
			Quantity:     line.Quantity,
			UnitPrice:    line.Medicine.Price,
			LineTotal:    line.LineTotal(),
		})
	}
	return order
}

// orderNumber returns a human-facing number such as ORD-20240131-4F9A1C
func (s *orderService) orderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("ORD-%s-%s", s.now().UTC().Format("20060102"), suffix)
}

func (s *orderService) publish(ctx context.Context, event events.OrderEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.publisher.PublishOrder(ctx, event); err != nil {
		s.logger.Warn("Failed to publish order event",
			zap.String("type", event.Type),
			zap.String("order_number", event.OrderNumber),
			zap.Error(err),
		)
	}
}

func validateContact(input *CreateOrderInput) (domain.DeliveryType, error) {
	if strings.TrimSpace(input.CustomerName) == "" {
		return "", domain.NewValidationError("customerName", "is required")
	}
	if strings.TrimSpace(input.CustomerPhone) == "" {
		return "", domain.NewValidationError("customerPhone", "is required")
	}

	switch dt := domain.DeliveryType(strings.ToLower(strings.TrimSpace(input.DeliveryType))); dt {
	case domain.DeliveryPickup:
		return dt, nil
	case domain.DeliveryDelivery:
		if strings.TrimSpace(input.DeliveryAddress) == "" {
			return "", domain.NewValidationError("deliveryAddress", "is required for delivery")
		}
		return dt, nil
	default:
		return "", domain.NewValidationError("deliveryType", "must be pickup or delivery")
	}
}
