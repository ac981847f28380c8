package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Medicine represents a catalog entry
type Medicine struct {
	ID                   uuid.UUID       `json:"id" db:"id"`
	Name                 string          `json:"name" db:"name"`
	Manufacturer         string          `json:"manufacturer" db:"manufacturer"`
	GenericName          string          `json:"genericName" db:"generic_name"`
	PackSize             string          `json:"packSize" db:"pack_size"`
	Price                decimal.Decimal `json:"price" db:"price"`
	MRP                  decimal.Decimal `json:"mrp" db:"mrp"`
	Stock                int             `json:"stock" db:"stock"`
	RequiresPrescription bool            `json:"requiresPrescription" db:"requires_prescription"`
	CategoryID           *uuid.UUID      `json:"categoryId,omitempty" db:"category_id"`
	CategoryName         string          `json:"category"`
	SourceFile           *string         `json:"sourceFile,omitempty" db:"source_file"`
	ImageURL             *string         `json:"imageUrl,omitempty" db:"image_url"`
	CreatedAt            time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt            time.Time       `json:"updatedAt" db:"updated_at"`
}

// InStock reports whether at least one unit can be sold
func (m *Medicine) InStock() bool {
	return m.Stock > 0
}

// Category represents a canonical medicine category
type Category struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"-" db:"created_at"`
}
