package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"

	"pharmacy-store/internal/domain"
	"pharmacy-store/internal/events"
	"pharmacy-store/internal/repository"

	"github.com/google/uuid"
)

// Mock repositories for testing
type mockMedicineRepository struct {
	medicines []*domain.Medicine
}

func (m *mockMedicineRepository) add(med *domain.Medicine) *domain.Medicine {
	if med.ID == uuid.Nil {
		med.ID = uuid.New()
	}
	m.medicines = append(m.medicines, med)
	return med
}

func (m *mockMedicineRepository) matching(filter repository.MedicineFilter) []*domain.Medicine {
	out := []*domain.Medicine{}
	for _, med := range m.medicines {
		if filter.Search != "" && !strings.Contains(strings.ToLower(med.Name), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.InStockOnly && med.Stock <= 0 {
			continue
		}
		if filter.CategoryID != nil && med.CategoryID != nil && *med.CategoryID != *filter.CategoryID {
			continue
		}
		copied := *med
		out = append(out, &copied)
	}
	return out
}

func (m *mockMedicineRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Medicine, error) {
	for _, med := range m.medicines {
		if med.ID == id {
			copied := *med
			return &copied, nil
		}
	}
	return nil, repository.ErrMedicineNotFound
}

func (m *mockMedicineRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Medicine, error) {
	out := make(map[uuid.UUID]*domain.Medicine)
	for _, id := range ids {
		if med, err := m.FindByID(ctx, id); err == nil {
			out[id] = med
		}
	}
	return out, nil
}

func (m *mockMedicineRepository) List(ctx context.Context, filter repository.MedicineFilter, limit, offset int) ([]*domain.Medicine, int, error) {
	all := m.matching(filter)
	if offset >= len(all) {
		return []*domain.Medicine{}, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (m *mockMedicineRepository) WorkingSet(ctx context.Context, filter repository.MedicineFilter, max int) ([]*domain.Medicine, error) {
	all := m.matching(filter)
	if len(all) > max {
		all = all[:max]
	}
	return all, nil
}

func (m *mockMedicineRepository) UpdateInventory(ctx context.Context, id uuid.UUID, update repository.InventoryUpdate) (*domain.Medicine, error) {
	for _, med := range m.medicines {
		if med.ID == id {
			if update.Price != nil {
				med.Price = *update.Price
			}
			if update.MRP != nil {
				med.MRP = *update.MRP
			}
			if update.Stock != nil {
				med.Stock = *update.Stock
			}
			if update.RequiresPrescription != nil {
				med.RequiresPrescription = *update.RequiresPrescription
			}
			copied := *med
			return &copied, nil
		}
	}
	return nil, repository.ErrMedicineNotFound
}

type mockCategoryRepository struct {
	categories []*domain.Category
}

func (m *mockCategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	out := append([]*domain.Category{}, m.categories...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockCategoryRepository) FindByName(ctx context.Context, name string) (*domain.Category, error) {
	for _, c := range m.categories {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, repository.ErrCategoryNotFound
}

type mockOrderRepository struct {
	mu          sync.Mutex
	orders      map[uuid.UUID]*domain.Order
	creates     int
	duplicates  int // number of Create calls that report a taken order number
	seenNumbers []string
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{orders: make(map[uuid.UUID]*domain.Order)}
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seenNumbers = append(m.seenNumbers, order.OrderNumber)
	if m.duplicates > 0 {
		m.duplicates--
		return repository.ErrDuplicateOrderNumber
	}
	m.creates++
	copied := *order
	m.orders[order.ID] = &copied
	return nil
}

func (m *mockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	copied := *o
	return &copied, nil
}

func (m *mockOrderRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Order{}
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockOrderRepository) ListAll(ctx context.Context, status *domain.OrderStatus) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Order{}
	for _, o := range m.orders {
		if status == nil || o.Status == *status {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if o.Status != from {
		return repository.ErrStatusChanged
	}
	o.Status = to
	return nil
}

type mockPrescriptionRepository struct {
	prescriptions map[uuid.UUID]*domain.Prescription
	failCreate    bool
}

func newMockPrescriptionRepository() *mockPrescriptionRepository {
	return &mockPrescriptionRepository{prescriptions: make(map[uuid.UUID]*domain.Prescription)}
}

func (m *mockPrescriptionRepository) add(userID string, status domain.PrescriptionStatus) *domain.Prescription {
	p := &domain.Prescription{ID: uuid.New(), UserID: userID, ImageURLs: []string{"http://files/rx.jpg"}, Status: status}
	m.prescriptions[p.ID] = p
	return p
}

func (m *mockPrescriptionRepository) Create(ctx context.Context, p *domain.Prescription) error {
	if m.failCreate {
		return errors.New("database unavailable")
	}
	m.prescriptions[p.ID] = p
	return nil
}

func (m *mockPrescriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Prescription, error) {
	p, ok := m.prescriptions[id]
	if !ok {
		return nil, repository.ErrPrescriptionNotFound
	}
	return p, nil
}

func (m *mockPrescriptionRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Prescription, error) {
	out := []*domain.Prescription{}
	for _, p := range m.prescriptions {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
	err    error
}

func (p *recordingPublisher) PublishOrder(ctx context.Context, event events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() {}

type memoryObjectStore struct {
	objects  map[string][]byte
	failOn   int // 1-based Put call that fails, 0 never
	puts     int
	removals []string
}

func newMemoryObjectStore() *memoryObjectStore {
	return &memoryObjectStore{objects: make(map[string][]byte)}
}

func (s *memoryObjectStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	s.puts++
	if s.failOn == s.puts {
		return "", errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.objects[key] = data
	return "http://files/" + key, nil
}

func (s *memoryObjectStore) Remove(ctx context.Context, key string) error {
	s.removals = append(s.removals, key)
	delete(s.objects, key)
	return nil
}
