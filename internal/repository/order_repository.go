package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pharmacy-store/internal/database"
	"pharmacy-store/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrDuplicateOrderNumber = errors.New("order number already exists")

	// ErrStatusChanged is returned when the order left the expected status
	// between read and update
	ErrStatusChanged = errors.New("order status changed concurrently")
)

const uniqueViolation = "23505"

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Order, error)
	ListAll(ctx context.Context, status *domain.OrderStatus) ([]*domain.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `
	id, order_number, user_id, customer_name, customer_phone, delivery_type, delivery_address,
	subtotal, delivery_fee, total, status, requires_prescription, prescription_id, notes,
	created_at, updated_at`

// Create inserts the order and all of its items in one transaction
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO orders (`+orderColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		`,
			order.ID,
			order.OrderNumber,
			order.UserID,
			order.CustomerName,
			order.CustomerPhone,
			string(order.DeliveryType),
			order.DeliveryAddress,
			order.Subtotal,
			order.DeliveryFee,
			order.Total,
			string(order.Status),
			order.RequiresPrescription,
			order.PrescriptionID,
			order.Notes,
			order.CreatedAt,
			order.UpdatedAt,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "orders_order_number_key" {
				return ErrDuplicateOrderNumber
			}
			return fmt.Errorf("failed to create order: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO order_items (id, order_id, position, medicine_id, medicine_name, quantity, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare order item insert: %w", err)
		}
		defer stmt.Close()

		for i := range order.Items {
			item := &order.Items[i]
			item.OrderID = order.ID
			if _, err := stmt.ExecContext(ctx,
				item.ID, item.OrderID, i+1, item.MedicineID, item.MedicineName,
				item.Quantity, item.UnitPrice, item.LineTotal,
			); err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
		}

		return nil
	})
}

// FindByID retrieves an order with its items
func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}

	if err := r.attachItems(ctx, []*domain.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

// ListByUser retrieves a user's orders with items, newest first
func (r *orderRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, order_number DESC`
	return r.list(ctx, query, userID)
}

// ListAll retrieves every order, optionally filtered by status, newest first
func (r *orderRepository) ListAll(ctx context.Context, status *domain.OrderStatus) ([]*domain.Order, error) {
	if status != nil {
		query := `SELECT ` + orderColumns + ` FROM orders WHERE status = $1 ORDER BY created_at DESC, order_number DESC`
		return r.list(ctx, query, string(*status))
	}
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, order_number DESC`
	return r.list(ctx, query)
}

// UpdateStatus moves the order from one status to another. It fails with
// ErrStatusChanged when the stored status is no longer from.
func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $3
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check order: %w", err)
		}
		if !exists {
			return ErrOrderNotFound
		}
		return ErrStatusChanged
	}

	return nil
}

func (r *orderRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) attachItems(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*domain.Order, len(orders))
	keys := make([]string, 0, len(orders))
	for _, o := range orders {
		o.Items = []domain.OrderItem{}
		byID[o.ID] = o
		keys = append(keys, o.ID.String())
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, medicine_id, medicine_name, quantity, unit_price, line_total
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position ASC
	`, keys)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.MedicineID, &item.MedicineName,
			&item.Quantity, &item.UnitPrice, &item.LineTotal,
		); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating order items: %w", err)
	}
	return nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	o := &domain.Order{}
	var deliveryType, status string
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.UserID,
		&o.CustomerName,
		&o.CustomerPhone,
		&deliveryType,
		&o.DeliveryAddress,
		&o.Subtotal,
		&o.DeliveryFee,
		&o.Total,
		&status,
		&o.RequiresPrescription,
		&o.PrescriptionID,
		&o.Notes,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.DeliveryType = domain.DeliveryType(deliveryType)
	o.Status = domain.OrderStatus(status)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return o, nil
}
