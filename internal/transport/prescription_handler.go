package transport

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"pharmacy-store/internal/domain"
	"pharmacy-store/internal/middleware"
	"pharmacy-store/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// uploadBodyLimit caps a whole multipart upload
const uploadBodyLimit = service.MaxPrescriptionImages*service.MaxPrescriptionImageSize + 1<<20

// PrescriptionResponse wraps a single prescription
type PrescriptionResponse struct {
	Success      bool                 `json:"success"`
	Prescription *domain.Prescription `json:"prescription"`
}

// PrescriptionListResponse wraps the caller's prescriptions
type PrescriptionListResponse struct {
	Success       bool                   `json:"success"`
	Prescriptions []*domain.Prescription `json:"prescriptions"`
}

// PrescriptionHandler handles prescription uploads
type PrescriptionHandler struct {
	prescriptionService service.PrescriptionService
	logger              *zap.Logger
}

// NewPrescriptionHandler creates a new PrescriptionHandler
func NewPrescriptionHandler(prescriptionService service.PrescriptionService, logger *zap.Logger) *PrescriptionHandler {
	return &PrescriptionHandler{
		prescriptionService: prescriptionService,
		logger:              logger,
	}
}

// RegisterRoutes registers all prescription routes
func (h *PrescriptionHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/api/prescriptions", h.Upload)
		r.Get("/api/prescriptions", h.ListMine)
	})
}

// Upload accepts the multipart field "images" with one or more scans
func (h *PrescriptionHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, uploadBodyLimit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.logger.Debug("Invalid prescription upload", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["images"]
	images := make([]service.ImageUpload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "unreadable file "+fh.Filename)
			return
		}
		defer f.Close()

		contentType, err := detectContentType(fh, f)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "unreadable file "+fh.Filename)
			return
		}

		images = append(images, service.ImageUpload{
			Filename:    fh.Filename,
			ContentType: contentType,
			Size:        fh.Size,
			Body:        f,
		})
	}

	p, err := h.prescriptionService.Upload(r.Context(), userID, images)
	if err != nil {
		middleware.RespondWithServiceError(w, h.logger, err, "failed to upload prescription")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, PrescriptionResponse{Success: true, Prescription: p})
}

// ListMine returns the caller's prescriptions newest first
func (h *PrescriptionHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	prescriptions, err := h.prescriptionService.ListForUser(r.Context(), userID)
	if err != nil {
		middleware.RespondWithServiceError(w, h.logger, err, "failed to list prescriptions")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, PrescriptionListResponse{Success: true, Prescriptions: prescriptions})
}

// detectContentType trusts the part header unless it is missing or generic,
// in which case the first bytes are sniffed and f is rewound
func detectContentType(fh *multipart.FileHeader, f multipart.File) (string, error) {
	declared := strings.TrimSpace(strings.SplitN(fh.Header.Get("Content-Type"), ";", 2)[0])
	if declared != "" && declared != "application/octet-stream" {
		return declared, nil
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}
