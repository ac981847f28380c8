package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pharmacy-store/internal/cart"
	"pharmacy-store/internal/domain"
	"pharmacy-store/internal/ingest"
	"pharmacy-store/internal/repository"
	"pharmacy-store/internal/storage"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

var errorStatusCodes = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusUnprocessableEntity,
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
}

// Feature: pharmacy-storefront, Property: errors have a consistent envelope
func TestProperty_ErrorsHaveConsistentStructure(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("all error responses have consistent structure", prop.ForAll(
		func(message string, pick int) bool {
			statusCode := errorStatusCodes[pick]

			w := httptest.NewRecorder()
			RespondWithError(w, statusCode, message)

			if w.Code != statusCode || w.Header().Get("Content-Type") != "application/json" {
				return false
			}

			var response ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				return false
			}
			if response.Error.Code != http.StatusText(statusCode) || response.Error.Message != message {
				return false
			}
			_, err := time.Parse(time.RFC3339, response.Error.Timestamp)
			return err == nil
		},
		gen.AlphaString().SuchThat(func(s string) bool { return len(s) > 0 }),
		gen.IntRange(0, len(errorStatusCodes)-1),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRespondWithErrorDetails(t *testing.T) {
	w := httptest.NewRecorder()
	RespondWithErrorDetails(w, http.StatusBadRequest, "validation failed", map[string]interface{}{"field": "customerPhone"})

	var response ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if response.Error.Details["field"] != "customerPhone" {
		t.Errorf("details missing: %+v", response.Error)
	}
}

func TestRespondWithValidationErrors(t *testing.T) {
	w := httptest.NewRecorder()
	RespondWithValidationErrors(w, []ValidationError{{Field: "items", Message: "This field is required"}})

	var response ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if _, ok := response.Error.Details["validation_errors"]; !ok {
		t.Errorf("validation errors missing from details: %+v", response.Error)
	}
}

func TestErrorHandlingMiddleware_RecoversPanics(t *testing.T) {
	handler := ErrorHandlingMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/medicines", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestProperty_JSONResponsesAreValid(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("JSON responses are valid and parseable", prop.ForAll(
		func(data map[string]string) bool {
			w := httptest.NewRecorder()
			RespondWithJSON(w, http.StatusOK, data)

			var result map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
				return false
			}
			for k, v := range data {
				if result[k] != v {
					return false
				}
			}
			return w.Header().Get("Content-Type") == "application/json"
		},
		gen.MapOf(gen.AlphaString(), gen.AlphaString()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRespondWithServiceError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantReason string
	}{
		{domain.NewValidationError("items", "empty"), http.StatusBadRequest, ReasonValidation},
		{&domain.ValidationError{Field: "prescriptionId", Message: "required", Err: domain.ErrPrescriptionRequired}, http.StatusBadRequest, ReasonPrescriptionRequired},
		{cart.ErrInvalidQuantity, http.StatusBadRequest, ReasonValidation},
		{repository.ErrOrderNotFound, http.StatusNotFound, ReasonNotFound},
		{fmt.Errorf("%w: nightly", ingest.ErrSourceNotFound), http.StatusNotFound, ReasonNotFound},
		{domain.ErrForbiddenPrescription, http.StatusForbidden, ReasonForbiddenPrescription},
		{domain.ErrImportRunning, http.StatusConflict, ReasonImportRunning},
		{domain.ErrInvalidStatusTransition, http.StatusUnprocessableEntity, ReasonInvalidTransition},
		{fmt.Errorf("failed to store prescription image: %w", storage.ErrNotConfigured), http.StatusServiceUnavailable, ReasonStorageUnavailable},
		{errors.New("boom"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		RespondWithServiceError(w, zap.NewNop(), tt.err, "failed")
		if w.Code != tt.wantStatus {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.wantStatus, w.Code)
		}

		var response ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("%v: invalid JSON: %v", tt.err, err)
		}
		reason, _ := response.Error.Details["reason"].(string)
		if reason != tt.wantReason {
			t.Errorf("%v: expected reason %q, got %q", tt.err, tt.wantReason, reason)
		}
		if tt.wantStatus == http.StatusInternalServerError && response.Error.Message != "failed" {
			t.Errorf("unexpected errors must not leak, got %q", response.Error.Message)
		}
	}
}
