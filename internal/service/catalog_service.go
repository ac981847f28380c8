package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"pharmacy-store/internal/category"
	"pharmacy-store/internal/domain"
	"pharmacy-store/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CatalogFilter narrows a catalog listing
type CatalogFilter struct {
	Search      string
	Category    string
	InStockOnly bool
}

// CatalogPage is one page of a catalog listing
type CatalogPage struct {
	Items      []*domain.Medicine `json:"medicines"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	TotalPages int                `json:"totalPages"`
}

// CatalogLimits bounds page sizes and the category working set
type CatalogLimits struct {
	MinLimit     int
	MaxLimit     int
	DefaultLimit int
	WorkingSet   int
}

// DefaultCatalogLimits matches the storefront's grid sizes
var DefaultCatalogLimits = CatalogLimits{MinLimit: 12, MaxLimit: 60, DefaultLimit: 24, WorkingSet: 5000}

// InventoryInput is a staff edit of a medicine's sellable fields. Nil fields
// are left unchanged.
type InventoryInput struct {
	Price                *decimal.Decimal
	MRP                  *decimal.Decimal
	Stock                *int
	RequiresPrescription *bool
}

// CatalogService defines the interface for catalog reads
type CatalogService interface {
	List(ctx context.Context, filter CatalogFilter, page, limit int) (*CatalogPage, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Medicine, error)
	Categories(ctx context.Context) ([]*domain.Category, error)
	UpdateInventory(ctx context.Context, id uuid.UUID, input InventoryInput) (*domain.Medicine, error)
}

type catalogService struct {
	medicineRepo repository.MedicineRepository
	categoryRepo repository.CategoryRepository
	limits       CatalogLimits
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(
	medicineRepo repository.MedicineRepository,
	categoryRepo repository.CategoryRepository,
	limits CatalogLimits,
) CatalogService {
	if limits.MinLimit <= 0 || limits.MaxLimit < limits.MinLimit {
		limits.MinLimit, limits.MaxLimit = DefaultCatalogLimits.MinLimit, DefaultCatalogLimits.MaxLimit
	}
	if limits.DefaultLimit <= 0 {
		limits.DefaultLimit = DefaultCatalogLimits.DefaultLimit
	}
	if limits.WorkingSet <= 0 {
		limits.WorkingSet = DefaultCatalogLimits.WorkingSet
	}
	return &catalogService{
		medicineRepo: medicineRepo,
		categoryRepo: categoryRepo,
		limits:       limits,
	}
}

// List returns one page of the catalog. Listings by category are resolved
// over a bounded working set because a medicine's category may only be
// derivable from its source tag.
func (s *catalogService) List(ctx context.Context, filter CatalogFilter, page, limit int) (*CatalogPage, error) {
	limit = ClampLimit(limit, s.limits)
	if page < 1 {
		page = 1
	}
	offset := pageOffset(page, limit)

	repoFilter := repository.MedicineFilter{
		Search:      filter.Search,
		InStockOnly: filter.InStockOnly,
	}

	if strings.TrimSpace(filter.Category) == "" {
		items, total, err := s.medicineRepo.List(ctx, repoFilter, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list medicines: %w", err)
		}
		for _, m := range items {
			m.CategoryName = CategoryOf(m)
		}
		return newCatalogPage(items, total, page, limit), nil
	}

	want := category.Normalize(filter.Category)
	if !category.IsCanonical(want) {
		want = category.Resolve("", filter.Category)
	}

	// Linked rows of other categories are excluded in storage. When want was
	// never stored only unlinked rows can resolve to it.
	categoryID := uuid.Nil
	stored, err := s.categoryRepo.FindByName(ctx, want)
	switch {
	case err == nil:
		categoryID = stored.ID
	case !errors.Is(err, repository.ErrCategoryNotFound):
		return nil, fmt.Errorf("failed to resolve category: %w", err)
	}
	repoFilter.CategoryID = &categoryID

	candidates, err := s.medicineRepo.WorkingSet(ctx, repoFilter, s.limits.WorkingSet)
	if err != nil {
		return nil, fmt.Errorf("failed to list medicines: %w", err)
	}

	matched := make([]*domain.Medicine, 0, len(candidates))
	for _, m := range candidates {
		m.CategoryName = CategoryOf(m)
		if m.CategoryName == want {
			matched = append(matched, m)
		}
	}

	total := len(matched)
	items := []*domain.Medicine{}
	if offset < total {
		end := offset + limit
		if end > total {
			end = total
		}
		items = matched[offset:end]
	}
	return newCatalogPage(items, total, page, limit), nil
}

// Get retrieves a single medicine
func (s *catalogService) Get(ctx context.Context, id uuid.UUID) (*domain.Medicine, error) {
	m, err := s.medicineRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.CategoryName = CategoryOf(m)
	return m, nil
}

// Categories lists the stored canonical categories alphabetically
func (s *catalogService) Categories(ctx context.Context) ([]*domain.Category, error) {
	categories, err := s.categoryRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// UpdateInventory applies the fields present in input to price, stock and the
// restricted flag
func (s *catalogService) UpdateInventory(ctx context.Context, id uuid.UUID, input InventoryInput) (*domain.Medicine, error) {
	switch {
	case input.Price == nil && input.MRP == nil && input.Stock == nil && input.RequiresPrescription == nil:
		return nil, domain.NewValidationError("inventory", "at least one field must be set")
	case input.Price != nil && input.Price.IsNegative():
		return nil, domain.NewValidationError("price", "must not be negative")
	case input.MRP != nil && input.MRP.IsNegative():
		return nil, domain.NewValidationError("mrp", "must not be negative")
	case input.Stock != nil && *input.Stock < 0:
		return nil, domain.NewValidationError("stock", "must not be negative")
	}

	m, err := s.medicineRepo.UpdateInventory(ctx, id, repository.InventoryUpdate{
		Price:                input.Price,
		MRP:                  input.MRP,
		Stock:                input.Stock,
		RequiresPrescription: input.RequiresPrescription,
	})
	if err != nil {
		return nil, err
	}
	m.CategoryName = CategoryOf(m)
	return m, nil
}

// CategoryOf returns the display category of m: its stored category when it
// has one, otherwise the category implied by its source tag.
func CategoryOf(m *domain.Medicine) string {
	if m.CategoryName != "" && category.IsCanonical(m.CategoryName) {
		return m.CategoryName
	}
	if m.SourceFile != nil {
		return category.Resolve(*m.SourceFile, "")
	}
	return category.None
}

// ClampLimit bounds a requested page size
func ClampLimit(limit int, limits CatalogLimits) int {
	switch {
	case limit <= 0:
		limit = limits.DefaultLimit
	case limit < limits.MinLimit:
		limit = limits.MinLimit
	case limit > limits.MaxLimit:
		limit = limits.MaxLimit
	}
	return limit
}

// pageOffset returns the row offset of page, saturating instead of
// overflowing for absurd page numbers
func pageOffset(page, limit int) int {
	if page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (page - 1) * limit
}

func newCatalogPage(items []*domain.Medicine, total, page, limit int) *CatalogPage {
	totalPages := (total + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}
	return &CatalogPage{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}
}
