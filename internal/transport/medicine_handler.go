package transport

import (
	"net/http"
	"strconv"
	"strings"

	"pharmacy-store/internal/domain"
	"pharmacy-store/internal/middleware"
	"pharmacy-store/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MedicineListResponse is one page of the catalog
type MedicineListResponse struct {
	Success bool `json:"success"`
	*service.CatalogPage
}

// MedicineResponse wraps a single medicine
type MedicineResponse struct {
	Success  bool             `json:"success"`
	Medicine *domain.Medicine `json:"medicine"`
}

// CategoryListResponse lists canonical categories
type CategoryListResponse struct {
	Success    bool               `json:"success"`
	Categories []*domain.Category `json:"categories"`
}

// InventoryRequest is a staff edit of price, stock and the restricted flag.
// Omitted fields keep their stored values.
type InventoryRequest struct {
	Price                *decimal.Decimal `json:"price"`
	MRP                  *decimal.Decimal `json:"mrp"`
	Stock                *int             `json:"stock" validate:"omitempty,gte=0"`
	RequiresPrescription *bool            `json:"requiresPrescription"`
}

// MedicineHandler serves the storefront catalog
type MedicineHandler struct {
	catalogService service.CatalogService
	logger         *zap.Logger
}

// NewMedicineHandler creates a new MedicineHandler
func NewMedicineHandler(catalogService service.CatalogService, logger *zap.Logger) *MedicineHandler {
	return &MedicineHandler{
		catalogService: catalogService,
		logger:         logger,
	}
}

// RegisterRoutes registers all catalog routes
func (h *MedicineHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Get("/api/medicines", h.List)
	r.Get("/api/medicines/{id}", h.Get)
	r.Get("/api/categories", h.Categories)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequireStaff(h.logger))
		r.Patch("/api/admin/medicines/{id}/inventory", h.UpdateInventory)
	})
}

// List handles catalog browsing with search, category and stock filters
func (h *MedicineHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := service.CatalogFilter{
		Search:      strings.TrimSpace(q.Get("search")),
		Category:    strings.TrimSpace(q.Get("category")),
		InStockOnly: parseBool(q.Get("inStock")),
	}

	page, err := h.catalogService.List(r.Context(), filter, queryInt(q.Get("page"), 1), queryInt(q.Get("limit"), 0))
	if err != nil {
		middleware.RespondWithServiceError(w, h.logger, err, "failed to list medicines")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, MedicineListResponse{Success: true, CatalogPage: page})
}

// Get returns a single medicine
func (h *MedicineHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	m, err := h.catalogService.Get(r.Context(), id)
	if err != nil {
		middleware.RespondWithServiceError(w, h.logger, err, "failed to get medicine")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, MedicineResponse{Success: true, Medicine: m})
}

// Categories lists the canonical categories alphabetically
func (h *MedicineHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalogService.Categories(r.Context())
	if err != nil {
		middleware.RespondWithServiceError(w, h.logger, err, "failed to list categories")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, CategoryListResponse{Success: true, Categories: categories})
}

// UpdateInventory applies a staff edit to a medicine
func (h *MedicineHandler) UpdateInventory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req InventoryRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	m, err := h.catalogService.UpdateInventory(r.Context(), id, service.InventoryInput{
		Price:                req.Price,
		MRP:                  req.MRP,
		Stock:                req.Stock,
		RequiresPrescription: req.RequiresPrescription,
	})
	if err != nil {
		middleware.RespondWithServiceError(w, h.logger, err, "failed to update inventory")
		return
	}

	userID, _ := middleware.GetUserID(r.Context())
	h.logger.Info("Inventory updated",
		zap.String("medicine_id", id.String()),
		zap.String("by", userID),
		zap.Int("stock", m.Stock),
	)
	middleware.RespondWithJSON(w, http.StatusOK, MedicineResponse{Success: true, Medicine: m})
}

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

// queryInt parses a positive integer query value, falling back to def
func queryInt(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return def
	}
	return n
}

func parseBool(raw string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && b
}
