package transport

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"pharmacy-store/internal/cart"
	"pharmacy-store/internal/domain"
	"pharmacy-store/internal/ingest"
	"pharmacy-store/internal/middleware"
	"pharmacy-store/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type stubCatalogService struct {
	page       *service.CatalogPage
	lastFilter service.CatalogFilter
	lastPage   int
	lastLimit  int
	medicine   *domain.Medicine
	categories []*domain.Category
	err        error

	lastInventory service.InventoryInput
}

func (s *stubCatalogService) List(ctx context.Context, filter service.CatalogFilter, page, limit int) (*service.CatalogPage, error) {
	s.lastFilter, s.lastPage, s.lastLimit = filter, page, limit
	return s.page, s.err
}

func (s *stubCatalogService) Get(ctx context.Context, id uuid.UUID) (*domain.Medicine, error) {
	return s.medicine, s.err
}

func (s *stubCatalogService) Categories(ctx context.Context) ([]*domain.Category, error) {
	return s.categories, s.err
}

func (s *stubCatalogService) UpdateInventory(ctx context.Context, id uuid.UUID, input service.InventoryInput) (*domain.Medicine, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.lastInventory = input
	m := *s.medicine
	if input.Stock != nil {
		m.Stock = *input.Stock
	}
	if input.Price != nil {
		m.Price = *input.Price
	}
	if input.MRP != nil {
		m.MRP = *input.MRP
	}
	if input.RequiresPrescription != nil {
		m.RequiresPrescription = *input.RequiresPrescription
	}
	return &m, nil
}

type stubOrderService struct {
	created   *domain.Order
	lastInput service.CreateOrderInput
	lastUser  string
	order     *domain.Order
	orders    []*domain.Order
	quote     *cart.Cart
	err       error
}

func (s *stubOrderService) CreateOrder(ctx context.Context, userID string, input service.CreateOrderInput) (*domain.Order, error) {
	s.lastUser, s.lastInput = userID, input
	return s.created, s.err
}

func (s *stubOrderService) Quote(ctx context.Context, items []service.OrderItemInput, prescriptionID *uuid.UUID) (*cart.Cart, error) {
	if s.err != nil {
		return nil, s.err
	}
	if prescriptionID != nil {
		s.quote.SelectPrescription(*prescriptionID)
	}
	return s.quote, nil
}

func (s *stubOrderService) ListForUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	s.lastUser = userID
	return s.orders, s.err
}

func (s *stubOrderService) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.order, s.err
}

func (s *stubOrderService) ListAll(ctx context.Context, status string) ([]*domain.Order, error) {
	return s.orders, s.err
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*domain.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	o := *s.order
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

type stubPrescriptionService struct {
	received []service.ImageUpload
	bodies   []string
	err      error
}

func (s *stubPrescriptionService) Upload(ctx context.Context, userID string, images []service.ImageUpload) (*domain.Prescription, error) {
	s.received = images
	for _, img := range images {
		data, _ := io.ReadAll(img.Body)
		s.bodies = append(s.bodies, string(data))
	}
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Prescription{ID: uuid.New(), UserID: userID, Status: domain.PrescriptionPending, CreatedAt: time.Now()}, nil
}

func (s *stubPrescriptionService) ListForUser(ctx context.Context, userID string) ([]*domain.Prescription, error) {
	return []*domain.Prescription{}, s.err
}

type stubImporter struct {
	lastSource string
	lastOpts   ingest.Options
	ctxErr     error
	result     *ingest.Result
	err        error
}

func (s *stubImporter) Ingest(ctx context.Context, source string, opts ingest.Options) (*ingest.Result, error) {
	s.lastSource, s.lastOpts = source, opts
	s.ctxErr = ctx.Err()
	return s.result, s.err
}

func (s *stubImporter) Status() ingest.Status {
	return ingest.Status{Running: false}
}

func (s *stubImporter) Sources() []string {
	return []string{"full", "tablets"}
}

// testRouter wires handlers the same way the server does
type testRouter struct {
	catalog       *stubCatalogService
	orders        *stubOrderService
	prescriptions *stubPrescriptionService
	importer      *stubImporter
	http.Handler
}

func newTestRouter() *testRouter {
	tr := &testRouter{
		catalog:       &stubCatalogService{},
		orders:        &stubOrderService{},
		prescriptions: &stubPrescriptionService{},
		importer:      &stubImporter{},
	}

	logger := zap.NewNop()
	auth := middleware.AuthMiddleware(testSecret, logger)
	r := chi.NewRouter()
	NewMedicineHandler(tr.catalog, logger).RegisterRoutes(r, auth)
	NewCartHandler(tr.orders, logger).RegisterRoutes(r)
	NewOrderHandler(tr.orders, logger).RegisterRoutes(r, auth, nil)
	NewPrescriptionHandler(tr.prescriptions, logger).RegisterRoutes(r, auth)
	NewImportHandler(tr.importer, time.Minute, logger).RegisterRoutes(r, auth)
	tr.Handler = r
	return tr
}

func bearer(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		UserID: userID,
		Email:  userID + "@example.com",
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return "Bearer " + token
}
