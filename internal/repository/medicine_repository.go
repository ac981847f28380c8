package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"pharmacy-store/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrMedicineNotFound = errors.New("medicine not found")
)

// MedicineFilter narrows catalog reads. CategoryID keeps rows linked to that
// category plus rows with no category reference, whose category is only known
// after resolving their source tag. uuid.Nil keeps only the unlinked rows.
type MedicineFilter struct {
	Search      string
	InStockOnly bool
	CategoryID  *uuid.UUID
}

// InventoryUpdate is a staff edit of the sellable fields of a medicine. Nil
// fields keep their stored values.
type InventoryUpdate struct {
	Price                *decimal.Decimal
	MRP                  *decimal.Decimal
	Stock                *int
	RequiresPrescription *bool
}

// MedicineRepository defines the interface for medicine data access
type MedicineRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Medicine, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Medicine, error)
	List(ctx context.Context, filter MedicineFilter, limit, offset int) ([]*domain.Medicine, int, error)
	WorkingSet(ctx context.Context, filter MedicineFilter, max int) ([]*domain.Medicine, error)
	UpdateInventory(ctx context.Context, id uuid.UUID, update InventoryUpdate) (*domain.Medicine, error)
}

type medicineRepository struct {
	db *sql.DB
}

// NewMedicineRepository creates a new instance of MedicineRepository
func NewMedicineRepository(db *sql.DB) MedicineRepository {
	return &medicineRepository{db: db}
}

const medicineColumns = `
	m.id, m.name, m.manufacturer, m.generic_name, m.pack_size, m.price, m.mrp, m.stock,
	m.requires_prescription, m.category_id, COALESCE(c.name, ''), m.source_file, m.image_url,
	m.created_at, m.updated_at`

const medicineFrom = `FROM medicines m LEFT JOIN categories c ON c.id = m.category_id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMedicine(row rowScanner) (*domain.Medicine, error) {
	m := &domain.Medicine{}
	err := row.Scan(
		&m.ID,
		&m.Name,
		&m.Manufacturer,
		&m.GenericName,
		&m.PackSize,
		&m.Price,
		&m.MRP,
		&m.Stock,
		&m.RequiresPrescription,
		&m.CategoryID,
		&m.CategoryName,
		&m.SourceFile,
		&m.ImageURL,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return m, err
}

// FindByID retrieves a medicine by ID
func (r *medicineRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Medicine, error) {
	query := `SELECT ` + medicineColumns + ` ` + medicineFrom + ` WHERE m.id = $1`

	m, err := scanMedicine(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMedicineNotFound
		}
		return nil, fmt.Errorf("failed to find medicine by ID: %w", err)
	}

	return m, nil
}

// FindByIDs retrieves all medicines with the given IDs. Missing IDs are
// simply absent from the result.
func (r *medicineRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Medicine, error) {
	result := make(map[uuid.UUID]*domain.Medicine, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	query := `SELECT ` + medicineColumns + ` ` + medicineFrom + ` WHERE m.id = ANY($1::uuid[])`
	rows, err := r.db.QueryContext(ctx, query, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to find medicines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan medicine: %w", err)
		}
		result[m.ID] = m
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating medicines: %w", err)
	}

	return result, nil
}

// List returns one page of medicines in insertion order together with the
// total number of matching rows
func (r *medicineRepository) List(ctx context.Context, filter MedicineFilter, limit, offset int) ([]*domain.Medicine, int, error) {
	whereClause, args := buildMedicineWhere(filter)

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s %s", medicineFrom, whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count medicines: %w", err)
	}
	if offset >= total {
		return []*domain.Medicine{}, total, nil
	}

	query := fmt.Sprintf(`SELECT %s %s %s ORDER BY m.seq ASC LIMIT $%d OFFSET $%d`,
		medicineColumns, medicineFrom, whereClause, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	medicines, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return medicines, total, nil
}

// WorkingSet returns at most max matching medicines in insertion order
func (r *medicineRepository) WorkingSet(ctx context.Context, filter MedicineFilter, max int) ([]*domain.Medicine, error) {
	whereClause, args := buildMedicineWhere(filter)

	query := fmt.Sprintf(`SELECT %s %s %s ORDER BY m.seq ASC LIMIT $%d`,
		medicineColumns, medicineFrom, whereClause, len(args)+1)
	args = append(args, max)

	return r.query(ctx, query, args...)
}

// UpdateInventory applies a staff edit and returns the updated medicine
func (r *medicineRepository) UpdateInventory(ctx context.Context, id uuid.UUID, update InventoryUpdate) (*domain.Medicine, error) {
	query := `
		UPDATE medicines
		SET price = COALESCE($2, price),
			mrp = COALESCE($3, mrp),
			stock = COALESCE($4, stock),
			requires_prescription = COALESCE($5, requires_prescription)
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, update.Price, update.MRP, update.Stock, update.RequiresPrescription)
	if err != nil {
		return nil, fmt.Errorf("failed to update medicine: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return nil, ErrMedicineNotFound
	}

	return r.FindByID(ctx, id)
}

func (r *medicineRepository) query(ctx context.Context, query string, args ...interface{}) ([]*domain.Medicine, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list medicines: %w", err)
	}
	defer rows.Close()

	medicines := []*domain.Medicine{}
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan medicine: %w", err)
		}
		medicines = append(medicines, m)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating medicines: %w", err)
	}

	return medicines, nil
}

func buildMedicineWhere(filter MedicineFilter) (string, []interface{}) {
	conditions := []string{}
	args := []interface{}{}

	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		conditions = append(conditions, fmt.Sprintf("m.name ILIKE $%d", len(args)))
	}

	if filter.InStockOnly {
		conditions = append(conditions, "m.stock > 0")
	}

	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		conditions = append(conditions, fmt.Sprintf("(m.category_id = $%d OR m.category_id IS NULL)", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
