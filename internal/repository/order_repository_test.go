package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"pharmacy-store/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newOrder(userID, number string) *domain.Order {
	now := time.Now().UTC().Truncate(time.Microsecond)
	unit := decimal.NewFromInt(50)
	return &domain.Order{
		ID:            uuid.New(),
		OrderNumber:   number,
		UserID:        userID,
		CustomerName:  "Asha Rao",
		CustomerPhone: "9876543210",
		DeliveryType:  domain.DeliveryPickup,
		Subtotal:      decimal.NewFromInt(100),
		DeliveryFee:   decimal.Zero,
		Total:         decimal.NewFromInt(100),
		Status:        domain.OrderStatusPending,
		Items: []domain.OrderItem{{
			ID:           uuid.New(),
			MedicineID:   uuid.New(),
			MedicineName: "Paracetamol 500mg",
			Quantity:     2,
			UnitPrice:    unit,
			LineTotal:    unit.Mul(decimal.NewFromInt(2)),
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderRepository_CreateAndFind(t *testing.T) {
	truncateAll(t)
	ctx := context.Background()
	repo := NewOrderRepository(testDB)

	order := newOrder("user-1", "ORD-20240101-000001")
	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	found, err := repo.FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}

	if found.OrderNumber != order.OrderNumber || found.Status != domain.OrderStatusPending {
		t.Errorf("unexpected order %+v", found)
	}
	if !found.Total.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected total 100, got %s", found.Total)
	}
	if len(found.Items) != 1 || found.Items[0].MedicineName != "Paracetamol 500mg" || found.Items[0].Quantity != 2 {
		t.Errorf("items not preserved: %+v", found.Items)
	}
}

func TestOrderRepository_ItemsKeepCartOrder(t *testing.T) {
	truncateAll(t)
	ctx := context.Background()
	repo := NewOrderRepository(testDB)

	order := newOrder("user-1", "ORD-20240101-000002")
	unit := decimal.NewFromInt(10)
	for _, name := range []string{"Zincovit", "Azithral 500", "Metformin 500mg"} {
		order.Items = append(order.Items, domain.OrderItem{
			ID:           uuid.New(),
			MedicineID:   uuid.New(),
			MedicineName: name,
			Quantity:     1,
			UnitPrice:    unit,
			LineTotal:    unit,
		})
	}
	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	found, err := repo.FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	want := []string{"Paracetamol 500mg", "Zincovit", "Azithral 500", "Metformin 500mg"}
	if len(found.Items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(found.Items))
	}
	for i, item := range found.Items {
		if item.MedicineName != want[i] {
			t.Errorf("item %d: expected %q, got %q", i, want[i], item.MedicineName)
		}
	}
}

func TestOrderRepository_FindMissing(t *testing.T) {
	truncateAll(t)
	_, err := NewOrderRepository(testDB).FindByID(context.Background(), uuid.New())
	if !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_DuplicateNumber(t *testing.T) {
	truncateAll(t)
	ctx := context.Background()
	repo := NewOrderRepository(testDB)

	if err := repo.Create(ctx, newOrder("user-1", "ORD-20240101-DUPDUP")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	err := repo.Create(ctx, newOrder("user-2", "ORD-20240101-DUPDUP"))
	if !errors.Is(err, ErrDuplicateOrderNumber) {
		t.Errorf("expected ErrDuplicateOrderNumber, got %v", err)
	}
}

func TestOrderRepository_RejectedItemRollsBackOrder(t *testing.T) {
	truncateAll(t)
	ctx := context.Background()
	repo := NewOrderRepository(testDB)

	order := newOrder("user-1", "ORD-20240101-BADQTY")
	order.Items[0].Quantity = 0

	if err := repo.Create(ctx, order); err == nil {
		t.Fatal("expected the quantity check to reject the item")
	}

	var n int
	if err := testDB.QueryRow(`SELECT COUNT(*) FROM orders`).Scan(&n); err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no order row after a failed item insert, got %d", n)
	}
}

func TestOrderRepository_ListByUserNewestFirst(t *testing.T) {
	truncateAll(t)
	ctx := context.Background()
	repo := NewOrderRepository(testDB)

	older := newOrder("user-1", "ORD-20240101-OLDER1")
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	newer := newOrder("user-1", "ORD-20240101-NEWER1")
	other := newOrder("user-2", "ORD-20240101-OTHER1")

	for _, o := range []*domain.Order{older, newer, other} {
		if err := repo.Create(ctx, o); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	list, err := repo.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(list))
	}
	if list[0].ID != newer.ID || list[1].ID != older.ID {
		t.Errorf("expected newest first, got %s then %s", list[0].OrderNumber, list[1].OrderNumber)
	}
}

func TestOrderRepository_ListAllByStatus(t *testing.T) {
	truncateAll(t)
	ctx := context.Background()
	repo := NewOrderRepository(testDB)

	a := newOrder("user-1", "ORD-20240101-STATUA")
	b := newOrder("user-2", "ORD-20240101-STATUB")
	for _, o := range []*domain.Order{a, b} {
		if err := repo.Create(ctx, o); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	if err := repo.UpdateStatus(ctx, b.ID, domain.OrderStatusPending, domain.OrderStatusConfirmed); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	all, err := repo.ListAll(ctx, nil)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 orders, got %d", len(all))
	}

	confirmed := domain.OrderStatusConfirmed
	filtered, err := repo.ListAll(ctx, &confirmed)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != b.ID {
		t.Errorf("expected only the confirmed order, got %d", len(filtered))
	}
}

func TestOrderRepository_UpdateStatusDetectsConcurrentChange(t *testing.T) {
	truncateAll(t)
	ctx := context.Background()
	repo := NewOrderRepository(testDB)

	order := newOrder("user-1", "ORD-20240101-RACE01")
	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := repo.UpdateStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusConfirmed); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	err := repo.UpdateStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusReady)
	if !errors.Is(err, ErrStatusChanged) {
		t.Errorf("expected ErrStatusChanged, got %v", err)
	}

	err = repo.UpdateStatus(ctx, uuid.New(), domain.OrderStatusPending, domain.OrderStatusReady)
	if !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}
