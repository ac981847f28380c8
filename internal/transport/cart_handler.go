package transport

import (
	"net/http"

	"pharmacy-store/internal/middleware"
	"pharmacy-store/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// QuoteRequest prices a prospective cart
type QuoteRequest struct {
	Items          []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	PrescriptionID string             `json:"prescriptionId" validate:"omitempty,uuid"`
}

// QuoteLine is one priced line of a quote
type QuoteLine struct {
	MedicineID           uuid.UUID       `json:"medicineId"`
	Name                 string          `json:"name"`
	Category             string          `json:"category"`
	UnitPrice            decimal.Decimal `json:"unitPrice"`
	Quantity             int             `json:"quantity"`
	Stock                int             `json:"stock"`
	LineTotal            decimal.Decimal `json:"lineTotal"`
	RequiresPrescription bool            `json:"requiresPrescription"`
}

// QuoteResponse is the server-side view of a cart and its checkout gate
type QuoteResponse struct {
	Success              bool            `json:"success"`
	Items                []QuoteLine     `json:"items"`
	ItemCount            int             `json:"itemCount"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	RequiresPrescription bool            `json:"requiresPrescription"`
	CheckoutBlocked      bool            `json:"checkoutBlocked"`
	State                string          `json:"state"`
}

// CartHandler prices carts without placing orders
type CartHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(orderService service.OrderService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// RegisterRoutes registers the cart routes
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/cart/quote", h.Quote)
}

// Quote clamps quantities to stock and evaluates the prescription gate
func (h *CartHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	items := make([]service.OrderItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.OrderItemInput{MedicineID: uuid.MustParse(item.MedicineID), Quantity: item.Quantity})
	}
	var prescriptionID *uuid.UUID
	if req.PrescriptionID != "" {
		id := uuid.MustParse(req.PrescriptionID)
		prescriptionID = &id
	}

	c, err := h.orderService.Quote(r.Context(), items, prescriptionID)
	if err != nil {
		middleware.RespondWithServiceError(w, h.logger, err, "failed to price cart")
		return
	}

	resp := QuoteResponse{
		Success:              true,
		Items:                make([]QuoteLine, 0, len(c.Lines())),
		ItemCount:            c.ItemCount(),
		Subtotal:             c.Subtotal(),
		RequiresPrescription: c.RequiresPrescription(),
		CheckoutBlocked:      c.RequiresCheckoutBlock(),
		State:                string(c.State()),
	}
	for _, line := range c.Lines() {
		resp.Items = append(resp.Items, QuoteLine{
			MedicineID:           line.Medicine.ID,
			Name:                 line.Medicine.Name,
			Category:             line.Medicine.CategoryName,
			UnitPrice:            line.Medicine.Price,
			Quantity:             line.Quantity,
			Stock:                line.Medicine.Stock,
			LineTotal:            line.LineTotal(),
			RequiresPrescription: line.Medicine.RequiresPrescription,
		})
	}

	middleware.RespondWithJSON(w, http.StatusOK, resp)
}
