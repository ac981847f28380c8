package domain

import (
	"time"

	"github.com/google/uuid"
)

// PrescriptionStatus is the review state of an uploaded prescription
type PrescriptionStatus string

const (
	PrescriptionPending  PrescriptionStatus = "pending"
	PrescriptionApproved PrescriptionStatus = "approved"
	PrescriptionRejected PrescriptionStatus = "rejected"
)

// Prescription is a set of uploaded images owned by one user. The image set
// never changes after creation.
type Prescription struct {
	ID        uuid.UUID          `json:"id" db:"id"`
	UserID    string             `json:"userId" db:"user_id"`
	ImageURLs []string           `json:"imageUrls" db:"image_urls"`
	Status    PrescriptionStatus `json:"status" db:"status"`
	CreatedAt time.Time          `json:"createdAt" db:"created_at"`
}
