package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pharmacy-store/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

var (
	ErrPrescriptionNotFound = errors.New("prescription not found")
)

// PrescriptionRepository defines the interface for prescription data access
type PrescriptionRepository interface {
	Create(ctx context.Context, p *domain.Prescription) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Prescription, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Prescription, error)
}

type prescriptionRepository struct {
	db *sql.DB
}

// NewPrescriptionRepository creates a new instance of PrescriptionRepository
func NewPrescriptionRepository(db *sql.DB) PrescriptionRepository {
	return &prescriptionRepository{db: db}
}

// Create inserts a new prescription
func (r *prescriptionRepository) Create(ctx context.Context, p *domain.Prescription) error {
	query := `
		INSERT INTO prescriptions (id, user_id, image_urls, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query, p.ID, p.UserID, p.ImageURLs, string(p.Status), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create prescription: %w", err)
	}

	return nil
}

// FindByID retrieves a prescription by ID
func (r *prescriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Prescription, error) {
	query := `
		SELECT id, user_id, image_urls, status, created_at
		FROM prescriptions
		WHERE id = $1
	`

	p, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPrescriptionNotFound
		}
		return nil, fmt.Errorf("failed to find prescription by ID: %w", err)
	}

	return p, nil
}

// ListByUser retrieves a user's prescriptions, newest first
func (r *prescriptionRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Prescription, error) {
	query := `
		SELECT id, user_id, image_urls, status, created_at
		FROM prescriptions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	defer rows.Close()

	prescriptions := []*domain.Prescription{}
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prescription: %w", err)
		}
		prescriptions = append(prescriptions, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prescriptions: %w", err)
	}

	return prescriptions, nil
}

func (r *prescriptionRepository) scan(row rowScanner) (*domain.Prescription, error) {
	p := &domain.Prescription{}
	var status string
	// pgtype.Map caches scan plans and is not safe to share between goroutines
	urls := pgtype.NewMap().SQLScanner(&p.ImageURLs)
	if err := row.Scan(&p.ID, &p.UserID, urls, &status, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Status = domain.PrescriptionStatus(status)
	return p, nil
}
