package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"pharmacy-store/internal/cart"
	"pharmacy-store/internal/domain"
	"pharmacy-store/internal/ingest"
	"pharmacy-store/internal/repository"
	"pharmacy-store/internal/storage"

	"go.uber.org/zap"
)

// Reasons carried in details.reason so clients can branch without parsing
// messages
const (
	ReasonValidation            = "validation_failed"
	ReasonPrescriptionRequired  = "prescription_required"
	ReasonNotFound              = "not_found"
	ReasonForbiddenPrescription = "prescription_not_owned"
	ReasonImportRunning         = "import_running"
	ReasonInvalidTransition     = "invalid_status_transition"
	ReasonStorageUnavailable    = "storage_unavailable"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// RespondWithError sends a structured error response
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	RespondWithErrorDetails(w, statusCode, message, nil)
}

// RespondWithErrorDetails sends a structured error response with additional details
func RespondWithErrorDetails(w http.ResponseWriter, statusCode int, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: ErrorDetail{
			Code:      http.StatusText(statusCode),
			Message:   message,
			Details:   details,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	json.NewEncoder(w).Encode(response)
}

// RespondWithValidationErrors sends validation error response
func RespondWithValidationErrors(w http.ResponseWriter, errors []ValidationError) {
	details := make(map[string]interface{})
	details["validation_errors"] = errors

	RespondWithErrorDetails(w, http.StatusBadRequest, "validation failed", details)
}

// RespondWithServiceError maps an error returned by the services onto a status
// and reason. Unexpected errors are logged and reported as fallback.
func RespondWithServiceError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		details := map[string]interface{}{"field": validationErr.Field, "reason": ReasonValidation}
		if errors.Is(err, domain.ErrPrescriptionRequired) {
			details["reason"] = ReasonPrescriptionRequired
		}
		RespondWithErrorDetails(w, http.StatusBadRequest, validationErr.Error(), details)

	case errors.Is(err, cart.ErrInvalidQuantity):
		respondWithReason(w, http.StatusBadRequest, err.Error(), ReasonValidation)

	case errors.Is(err, repository.ErrMedicineNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrPrescriptionNotFound),
		errors.Is(err, repository.ErrCategoryNotFound),
		errors.Is(err, ingest.ErrSourceNotFound):
		respondWithReason(w, http.StatusNotFound, err.Error(), ReasonNotFound)

	case errors.Is(err, domain.ErrForbiddenPrescription):
		respondWithReason(w, http.StatusForbidden, err.Error(), ReasonForbiddenPrescription)

	case errors.Is(err, domain.ErrImportRunning):
		respondWithReason(w, http.StatusConflict, err.Error(), ReasonImportRunning)

	case errors.Is(err, domain.ErrInvalidStatusTransition):
		respondWithReason(w, http.StatusUnprocessableEntity, err.Error(), ReasonInvalidTransition)

	case errors.Is(err, storage.ErrNotConfigured):
		respondWithReason(w, http.StatusServiceUnavailable, "prescription uploads are unavailable", ReasonStorageUnavailable)

	default:
		logger.Error(fallback, zap.Error(err))
		RespondWithError(w, http.StatusInternalServerError, fallback)
	}
}

func respondWithReason(w http.ResponseWriter, statusCode int, message, reason string) {
	RespondWithErrorDetails(w, statusCode, message, map[string]interface{}{"reason": reason})
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)

					RespondWithError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
