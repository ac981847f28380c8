package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pharmacy-store/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
)

// ResetScope selects what a catalog replacement clears before loading
type ResetScope string

const (
	// ResetMedicines clears the medicine table only; categories and orders
	// are kept.
	ResetMedicines ResetScope = "medicines"
	// ResetFull also clears categories, orders and order items.
	ResetFull ResetScope = "full"
)

// ParseResetScope maps a request value onto a scope. Empty means medicines.
func ParseResetScope(s string) (ResetScope, bool) {
	switch ResetScope(s) {
	case "", ResetMedicines:
		return ResetMedicines, true
	case ResetFull:
		return ResetFull, true
	}
	return "", false
}

// CatalogWriter loads rows into a catalog being replaced. It is only valid
// inside the callback passed to CatalogStore.Replace.
type CatalogWriter interface {
	EnsureCategory(ctx context.Context, name string) (id uuid.UUID, created bool, err error)
	InsertMedicines(ctx context.Context, batch []*domain.Medicine) (int, error)
}

// CatalogStore swaps the whole catalog atomically. The clear and every write
// made through the writer commit together, or not at all when fn fails.
type CatalogStore interface {
	Replace(ctx context.Context, scope ResetScope, fn func(ctx context.Context, w CatalogWriter) error) error
}

type catalogStore struct {
	db *sql.DB
}

// NewCatalogStore creates a CatalogStore on top of a pgx-backed *sql.DB
func NewCatalogStore(db *sql.DB) CatalogStore {
	return &catalogStore{db: db}
}

var medicineCopyColumns = []string{
	"id", "name", "manufacturer", "generic_name", "pack_size", "price", "mrp", "stock",
	"requires_prescription", "category_id", "source_file", "image_url", "created_at", "updated_at",
}

func (s *catalogStore) Replace(ctx context.Context, scope ResetScope, fn func(ctx context.Context, w CatalogWriter) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	return conn.Raw(func(driverConn any) error {
		stdConn, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("catalog store requires the pgx driver, got %T", driverConn)
		}

		return pgx.BeginFunc(ctx, stdConn.Conn(), func(tx pgx.Tx) error {
			if err := clearCatalog(ctx, tx, scope); err != nil {
				return err
			}
			return fn(ctx, &pgxCatalogWriter{tx: tx})
		})
	})
}

// clearCatalog uses DELETE rather than TRUNCATE so concurrent readers keep
// seeing the previous catalog until commit.
func clearCatalog(ctx context.Context, tx pgx.Tx, scope ResetScope) error {
	var statements []string
	switch scope {
	case ResetMedicines:
		statements = []string{`DELETE FROM medicines`}
	case ResetFull:
		statements = []string{
			`DELETE FROM order_items`,
			`DELETE FROM orders`,
			`DELETE FROM medicines`,
			`DELETE FROM categories`,
		}
	default:
		return fmt.Errorf("unknown reset scope %q", scope)
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear catalog (%s): %w", stmt, err)
		}
	}
	return nil
}

type pgxCatalogWriter struct {
	tx pgx.Tx
}

func (w *pgxCatalogWriter) EnsureCategory(ctx context.Context, name string) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := w.tx.QueryRow(ctx, `
		INSERT INTO categories (id, name, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO NOTHING
		RETURNING id
	`, uuid.New(), name).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, fmt.Errorf("failed to create category %q: %w", name, err)
	}

	if err := w.tx.QueryRow(ctx, `SELECT id FROM categories WHERE name = $1`, name).Scan(&id); err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to find category %q: %w", name, err)
	}
	return id, false, nil
}

func (w *pgxCatalogWriter) InsertMedicines(ctx context.Context, batch []*domain.Medicine) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	n, err := w.tx.CopyFrom(ctx,
		pgx.Identifier{"medicines"},
		medicineCopyColumns,
		pgx.CopyFromSlice(len(batch), func(i int) ([]any, error) {
			m := batch[i]
			if m.ID == uuid.Nil {
				m.ID = uuid.New()
			}
			m.CreatedAt, m.UpdatedAt = now, now

			price, err := numeric(m.Price)
			if err != nil {
				return nil, err
			}
			mrp, err := numeric(m.MRP)
			if err != nil {
				return nil, err
			}

			return []any{
				m.ID, m.Name, m.Manufacturer, m.GenericName, m.PackSize, price, mrp, m.Stock,
				m.RequiresPrescription, m.CategoryID, m.SourceFile, m.ImageURL, m.CreatedAt, m.UpdatedAt,
			}, nil
		}),
	)
	if err != nil {
		return int(n), fmt.Errorf("failed to copy medicines: %w", err)
	}
	return int(n), nil
}

func numeric(d decimal.Decimal) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return n, fmt.Errorf("invalid amount %s: %w", d, err)
	}
	return n, nil
}
