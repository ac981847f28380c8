package transport

import (
	"context"
	"net/http"
	"time"

	"pharmacy-store/internal/ingest"
	"pharmacy-store/internal/middleware"
	"pharmacy-store/internal/repository"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Importer runs catalog imports
type Importer interface {
	Ingest(ctx context.Context, source string, opts ingest.Options) (*ingest.Result, error)
	Status() ingest.Status
	Sources() []string
}

// ImportResponse reports a finished import
type ImportResponse struct {
	Success bool `json:"success"`
	*ingest.Result
}

// ImportStatusResponse reports whether an import is running
type ImportStatusResponse struct {
	Success bool `json:"success"`
	ingest.Status
	Sources []string `json:"sources"`
}

// ImportHandler exposes catalog imports to admins
type ImportHandler struct {
	importer Importer
	timeout  time.Duration
	logger   *zap.Logger
}

// NewImportHandler creates a new ImportHandler. Each import may run for at
// most timeout regardless of the client connection.
func NewImportHandler(importer Importer, timeout time.Duration, logger *zap.Logger) *ImportHandler {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &ImportHandler{
		importer: importer,
		timeout:  timeout,
		logger:   logger,
	}
}

// RegisterRoutes registers the admin import routes
func (h *ImportHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequireAdmin(h.logger))
		r.Get("/api/admin/import/status", h.Status)
		r.Post("/api/admin/import/{source}", h.Import)
	})
}

// Import replaces the catalog from a configured source. The request must
// carry confirm=true; scope is medicines (default) or full.
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	q := r.URL.Query()

	scope, ok := repository.ParseResetScope(q.Get("scope"))
	if !ok {
		middleware.RespondWithErrorDetails(w, http.StatusBadRequest, "unknown reset scope", map[string]interface{}{"field": "scope"})
		return
	}

	// The import outlives a dropped connection but not the configured timeout
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.timeout)
	defer cancel()
	if err := http.NewResponseController(w).SetWriteDeadline(time.Now().Add(h.timeout + 30*time.Second)); err != nil {
		h.logger.Debug("Could not extend write deadline", zap.Error(err))
	}

	userID, _ := middleware.GetUserID(r.Context())
	h.logger.Info("Import requested",
		zap.String("source", source),
		zap.String("scope", string(scope)),
		zap.String("by", userID),
	)

	result, err := h.importer.Ingest(ctx, source, ingest.Options{
		ConfirmReset: parseBool(q.Get("confirm")),
		Scope:        scope,
	})
	if err != nil {
		middleware.RespondWithServiceError(w, h.logger, err, "import failed")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ImportResponse{Success: true, Result: result})
}

// Status reports the running import, if any, and the last outcome
func (h *ImportHandler) Status(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, ImportStatusResponse{
		Success: true,
		Status:  h.importer.Status(),
		Sources: h.importer.Sources(),
	})
}
