package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"pharmacy-store/internal/domain"
	"pharmacy-store/internal/repository"
	"pharmacy-store/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MaxPrescriptionImages    = 5
	MaxPrescriptionImageSize = 10 << 20
)

// allowedImageTypes are the content types accepted for prescription scans
var allowedImageTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/heic":      true,
	"application/pdf": true,
}

// ImageUpload is one uploaded prescription file
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// PrescriptionService defines the interface for prescription uploads
type PrescriptionService interface {
	Upload(ctx context.Context, userID string, images []ImageUpload) (*domain.Prescription, error)
	ListForUser(ctx context.Context, userID string) ([]*domain.Prescription, error)
}

type prescriptionService struct {
	repo   repository.PrescriptionRepository
	store  storage.ObjectStore
	logger *zap.Logger
}

// NewPrescriptionService creates a new instance of PrescriptionService
func NewPrescriptionService(repo repository.PrescriptionRepository, store storage.ObjectStore, logger *zap.Logger) PrescriptionService {
	return &prescriptionService{
		repo:   repo,
		store:  store,
		logger: logger.Named("prescriptions"),
	}
}

// Upload stores every image and records a pending prescription owned by
// userID. Either all images are kept and the record exists, or neither.
func (s *prescriptionService) Upload(ctx context.Context, userID string, images []ImageUpload) (*domain.Prescription, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.NewValidationError("userId", "is required")
	}
	if len(images) == 0 {
		return nil, domain.NewValidationError("images", "at least one image is required")
	}
	if len(images) > MaxPrescriptionImages {
		return nil, domain.NewValidationError("images", fmt.Sprintf("at most %d images are allowed", MaxPrescriptionImages))
	}
	for i, img := range images {
		if !allowedImageTypes[strings.ToLower(img.ContentType)] {
			return nil, domain.NewValidationError(fmt.Sprintf("images[%d]", i), fmt.Sprintf("unsupported content type %q", img.ContentType))
		}
		if img.Size <= 0 || img.Size > MaxPrescriptionImageSize {
			return nil, domain.NewValidationError(fmt.Sprintf("images[%d]", i), "must be between 1 byte and 10 MB")
		}
	}

	p := &domain.Prescription{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    domain.PrescriptionPending,
		CreatedAt: time.Now().UTC(),
	}

	keys := make([]string, 0, len(images))
	for i, img := range images {
		key := fmt.Sprintf("%s/%s/%d-%s", storage.SafeName(userID), p.ID, i+1, storage.SafeName(img.Filename))
		url, err := s.store.Put(ctx, key, img.Body, img.Size, img.ContentType)
		if err != nil {
			s.cleanup(keys)
			return nil, fmt.Errorf("failed to store prescription image: %w", err)
		}
		keys = append(keys, key)
		p.ImageURLs = append(p.ImageURLs, url)
	}

	if err := s.repo.Create(ctx, p); err != nil {
		s.cleanup(keys)
		return nil, err
	}

	s.logger.Info("Prescription uploaded",
		zap.String("prescription_id", p.ID.String()),
		zap.String("user_id", userID),
		zap.Int("images", len(p.ImageURLs)),
	)
	return p, nil
}

// ListForUser returns a user's prescriptions, newest first
func (s *prescriptionService) ListForUser(ctx context.Context, userID string) ([]*domain.Prescription, error) {
	prescriptions, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	return prescriptions, nil
}

func (s *prescriptionService) cleanup(keys []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, key := range keys {
		if err := s.store.Remove(ctx, key); err != nil {
			s.logger.Warn("Failed to remove orphaned image", zap.String("key", key), zap.Error(err))
		}
	}
}
