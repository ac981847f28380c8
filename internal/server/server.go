package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"pharmacy-store/internal/config"
	"pharmacy-store/internal/events"
	"pharmacy-store/internal/ingest"
	"pharmacy-store/internal/lock"
	custommiddleware "pharmacy-store/internal/middleware"
	"pharmacy-store/internal/repository"
	"pharmacy-store/internal/service"
	"pharmacy-store/internal/storage"
	"pharmacy-store/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// importLockKey is shared by every process importing into the same database
const importLockKey = "pharmacy:import:lock"

// Deps are the external resources the server runs on. Redis, Store and
// Publisher are optional.
type Deps struct {
	DB        *sql.DB
	Redis     *redis.Client
	Store     storage.ObjectStore
	Publisher events.Publisher
}

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	deps   Deps
}

// NewImporter builds the catalog ingestor. With Redis the import lock is
// shared across processes, otherwise it only guards this one.
func NewImporter(cfg *config.Config, db *sql.DB, redisClient *redis.Client, logger *zap.Logger) *ingest.Ingestor {
	var locker lock.Locker = lock.NewLocal()
	if redisClient != nil {
		locker = lock.Chain{locker, lock.NewRedis(redisClient, importLockKey, cfg.Import.LockTTL)}
	}

	return ingest.New(repository.NewCatalogStore(db), locker, ingest.Config{
		DataDir:       cfg.Import.DataDir,
		Sources:       cfg.Import.Sources,
		MaxRows:       cfg.Import.MaxRows,
		BatchSize:     cfg.Import.BatchSize,
		ProgressEvery: cfg.Import.ProgressEvery,
	}, logger)
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Deps) *Server {
	if deps.Store == nil {
		deps.Store = storage.Disabled{}
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Noop{}
	}

	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.LoggingMiddleware(logger.Named("http")))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.Env == "development"))

	// Initialize repositories
	medicineRepo := repository.NewMedicineRepository(deps.DB)
	categoryRepo := repository.NewCategoryRepository(deps.DB)
	orderRepo := repository.NewOrderRepository(deps.DB)
	prescriptionRepo := repository.NewPrescriptionRepository(deps.DB)

	// Initialize services
	catalogService := service.NewCatalogService(medicineRepo, categoryRepo, service.CatalogLimits{
		MinLimit:     cfg.Catalog.MinLimit,
		MaxLimit:     cfg.Catalog.MaxLimit,
		DefaultLimit: cfg.Catalog.DefaultLimit,
		WorkingSet:   cfg.Catalog.WorkingSet,
	})
	orderService := service.NewOrderService(orderRepo, medicineRepo, prescriptionRepo, deps.Publisher, service.OrderPolicy{
		DeliveryFee:     decimal.NewFromFloat(cfg.Order.DeliveryFee),
		EnforceAdjacent: cfg.Order.EnforceAdjacent,
	}, logger)
	prescriptionService := service.NewPrescriptionService(prescriptionRepo, deps.Store, logger)
	importer := NewImporter(cfg, deps.DB, deps.Redis, logger)

	// Create auth middleware
	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)

	var orderLimit func(http.Handler) http.Handler
	if cfg.Order.RateLimit > 0 {
		var counter custommiddleware.Counter = custommiddleware.NewMemoryCounter()
		if deps.Redis != nil {
			counter = custommiddleware.NewRedisCounter(deps.Redis)
		}
		orderLimit = custommiddleware.RateLimitMiddleware(counter, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.Order.RateLimit,
			Window:            time.Minute,
			KeyPrefix:         "pharmacy:ratelimit:orders",
		}, logger)
	}

	s := &Server{
		config: cfg,
		logger: logger,
		deps:   deps,
	}

	// Health check endpoint
	router.Get("/health", s.health)

	// Register routes
	transport.NewMedicineHandler(catalogService, logger).RegisterRoutes(router, authMiddleware)
	transport.NewCartHandler(orderService, logger).RegisterRoutes(router)
	transport.NewOrderHandler(orderService, logger).RegisterRoutes(router, authMiddleware, orderLimit)
	transport.NewPrescriptionHandler(prescriptionService, logger).RegisterRoutes(router, authMiddleware)
	transport.NewImportHandler(importer, cfg.Import.Timeout, logger).RegisterRoutes(router, authMiddleware)

	s.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	code := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.deps.DB.PingContext(ctx); err != nil {
		status["status"], status["database"] = "degraded", "down"
		code = http.StatusServiceUnavailable
	} else {
		status["database"] = "up"
	}

	if s.deps.Redis != nil {
		if err := s.deps.Redis.Ping(ctx).Err(); err != nil {
			// Redis only backs the shared lock and rate limits
			status["redis"] = "down"
		} else {
			status["redis"] = "up"
		}
	}

	custommiddleware.RespondWithJSON(w, code, status)
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	s.deps.Publisher.Close()

	if s.deps.Redis != nil {
		if err := s.deps.Redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	// Close database connection
	if s.deps.DB != nil {
		if err := s.deps.DB.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
