package transport

import (
	"net/http"

	"pharmacy-store/internal/domain"
	"pharmacy-store/internal/middleware"
	"pharmacy-store/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderItemRequest is one requested line
type OrderItemRequest struct {
	MedicineID string `json:"medicineId" validate:"required,uuid"`
	Quantity   int    `json:"quantity" validate:"gte=1"`
}

// CreateOrderRequest represents the checkout payload
type CreateOrderRequest struct {
	Items           []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	CustomerName    string             `json:"customerName" validate:"required,max=255"`
	CustomerPhone   string             `json:"customerPhone" validate:"required,max=32"`
	DeliveryType    string             `json:"deliveryType" validate:"required,oneof=pickup delivery"`
	DeliveryAddress string             `json:"deliveryAddress" validate:"required_if=DeliveryType delivery,max=1000"`
	PrescriptionID  string             `json:"prescriptionId" validate:"omitempty,uuid"`
	Notes           string             `json:"notes" validate:"max=1000"`
}

// UpdateStatusRequest represents a staff status change
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// CreateOrderResponse is returned for a submitted order
type CreateOrderResponse struct {
	Success     bool          `json:"success"`
	OrderNumber string        `json:"orderNumber"`
	Order       *domain.Order `json:"order"`
}

// OrderResponse wraps a single order
type OrderResponse struct {
	Success bool          `json:"success"`
	Order   *domain.Order `json:"order"`
}

// OrderListResponse wraps a list of orders
type OrderListResponse struct {
	Success bool            `json:"success"`
	Orders  []*domain.Order `json:"orders"`
}

// OrderHandler handles HTTP requests for order operations
type OrderHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// RegisterRoutes registers all order routes. createLimit, when set, guards
// order submission.
func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware, createLimit func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		if createLimit != nil {
			r.With(createLimit).Post("/api/orders", h.Create)
		} else {
			r.Post("/api/orders", h.Create)
		}
		r.Get("/api/orders", h.ListMine)
		r.Get("/api/orders/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireStaff(h.logger))
			r.Get("/api/admin/orders", h.ListAll)
			r.Patch("/api/orders/{id}/status", h.UpdateStatus)
		})
	})
}

// Create handles order submission
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Order validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	input := service.CreateOrderInput{
		Items:           make([]service.OrderItemInput, 0, len(req.Items)),
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		DeliveryType:    req.DeliveryType,
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, service.OrderItemInput{
			MedicineID: uuid.MustParse(item.MedicineID),
			Quantity:   item.Quantity,
		})
	}
	if req.PrescriptionID != "" {
		id := uuid.MustParse(req.PrescriptionID)
		input.PrescriptionID = &id
	}

	order, err := h.orderService.CreateOrder(r.Context(), userID, input)
	if err != nil {
		middleware.RespondWithServiceError(w, h.logger, err, "failed to create order")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, CreateOrderResponse{
		Success:     true,
		OrderNumber: order.OrderNumber,
		Order:       order,
	})
}

// ListMine returns the caller's orders newest first
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	orders, err := h.orderService.ListForUser(r.Context(), userID)
	if err != nil {
		middleware.RespondWithServiceError(w, h.logger, err, "failed to list orders")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, OrderListResponse{Success: true, Orders: orders})
}

// Get returns one order. Customers only see their own.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	order, err := h.orderService.Get(r.Context(), id)
	if err != nil {
		middleware.RespondWithServiceError(w, h.logger, err, "failed to get order")
		return
	}

	role, _ := middleware.GetUserRole(r.Context())
	if order.UserID != userID && role != middleware.RoleStaff && role != middleware.RoleAdmin {
		middleware.RespondWithError(w, http.StatusNotFound, "order not found")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, OrderResponse{Success: true, Order: order})
}

// ListAll returns every order for staff, optionally filtered by status
func (h *OrderHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.ListAll(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		middleware.RespondWithServiceError(w, h.logger, err, "failed to list orders")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, OrderListResponse{Success: true, Orders: orders})
}

// UpdateStatus moves an order through its lifecycle
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	order, err := h.orderService.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		middleware.RespondWithServiceError(w, h.logger, err, "failed to update order status")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, OrderResponse{Success: true, Order: order})
}
