// Package ingest replaces the medicine catalog from supplier CSV exports.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"pharmacy-store/internal/category"
	"pharmacy-store/internal/domain"
	"pharmacy-store/internal/lock"
	"pharmacy-store/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSourceNotFound = errors.New("import source not found")
)

// maxReportedSkips bounds the skip reasons kept on a Result
const maxReportedSkips = 100

// Config controls where sources live and how they are loaded
type Config struct {
	DataDir       string
	Sources       map[string]string
	MaxRows       int
	BatchSize     int
	ProgressEvery int
}

// Options are supplied per import. ConfirmReset must be set: an import
// irreversibly deletes the current catalog before loading the new one.
type Options struct {
	ConfirmReset bool
	Scope        repository.ResetScope
}

// Result summarizes a finished import
type Result struct {
	Source            string        `json:"source"`
	Scope             string        `json:"scope"`
	InsertedCount     int           `json:"insertedCount"`
	SkippedCount      int           `json:"skippedCount"`
	Skips             []Skip        `json:"skips"`
	CategoriesCreated int           `json:"categoriesCreated"`
	Truncated         bool          `json:"truncated"`
	StartedAt         time.Time     `json:"startedAt"`
	Duration          time.Duration `json:"duration"`
}

func (r *Result) skip(line int, reason string) {
	r.SkippedCount++
	if len(r.Skips) < maxReportedSkips {
		r.Skips = append(r.Skips, Skip{Line: line, Reason: reason})
	}
}

// Status reports whether this process is running an import and how the
// last one ended
type Status struct {
	Running    bool       `json:"running"`
	Source     string     `json:"source,omitempty"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	LastResult *Result    `json:"lastResult,omitempty"`
	LastError  string     `json:"lastError,omitempty"`
}

// Ingestor loads catalogs. At most one import runs at a time across every
// process sharing the locker.
type Ingestor struct {
	store  repository.CatalogStore
	locker lock.Locker
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	status Status
}

// New creates an Ingestor. Zero-valued limits in cfg fall back to defaults.
func New(store repository.CatalogStore, locker lock.Locker, cfg Config, logger *zap.Logger) *Ingestor {
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 45000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 1000
	}
	return &Ingestor{
		store:  store,
		locker: locker,
		cfg:    cfg,
		logger: logger.Named("ingest"),
	}
}

// Sources lists the configured source names alphabetically
func (i *Ingestor) Sources() []string {
	names := make([]string, 0, len(i.cfg.Sources))
	for name := range i.cfg.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status returns a snapshot of the import state
func (i *Ingestor) Status() Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}

// Ingest replaces the catalog with the contents of the named source
func (i *Ingestor) Ingest(ctx context.Context, source string, opts Options) (*Result, error) {
	if err := checkOptions(opts); err != nil {
		return nil, err
	}

	path, err := i.resolve(source)
	if err != nil {
		return nil, err
	}

	return i.IngestFile(ctx, path, opts)
}

// IngestFile replaces the catalog with the contents of the file at path
func (i *Ingestor) IngestFile(ctx context.Context, path string, opts Options) (*Result, error) {
	if err := checkOptions(opts); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, filepath.Base(path))
		}
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	defer f.Close()

	return i.IngestReader(ctx, SourceTag(path), f, opts)
}

// IngestReader replaces the catalog with the CSV read from r, plain or
// gzip-compressed. tag is stored as the source of every medicine and takes
// part in category resolution.
func (i *Ingestor) IngestReader(ctx context.Context, tag string, r io.Reader, opts Options) (*Result, error) {
	if err := checkOptions(opts); err != nil {
		return nil, err
	}
	if opts.Scope == "" {
		opts.Scope = repository.ResetMedicines
	}

	release, ok, err := i.locker.TryAcquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire import lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrImportRunning
	}
	defer release()

	started := time.Now()
	i.begin(tag, started)

	result := &Result{Source: tag, Scope: string(opts.Scope), Skips: []Skip{}, StartedAt: started.UTC()}
	logger := i.logger.With(zap.String("source", tag), zap.String("scope", string(opts.Scope)))
	logger.Info("Import started")

	err = i.store.Replace(ctx, opts.Scope, func(ctx context.Context, w repository.CatalogWriter) error {
		return i.load(ctx, w, tag, r, opts, result, logger)
	})
	result.Duration = time.Since(started)

	if err != nil {
		logger.Error("Import failed, catalog left unchanged", zap.Error(err), zap.Duration("duration", result.Duration))
		i.finish(nil, err)
		return nil, err
	}

	logger.Info("Import completed",
		zap.Int("inserted", result.InsertedCount),
		zap.Int("skipped", result.SkippedCount),
		zap.Int("categories_created", result.CategoriesCreated),
		zap.Bool("truncated", result.Truncated),
		zap.Duration("duration", result.Duration),
	)
	i.finish(result, nil)
	return result, nil
}

func (i *Ingestor) load(ctx context.Context, w repository.CatalogWriter, tag string, r io.Reader, opts Options, result *Result, logger *zap.Logger) error {
	src, closeSrc, err := decompress(r)
	if err != nil {
		return err
	}
	defer closeSrc()

	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	record, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return domain.NewValidationError("source", "source is empty")
		}
		return fmt.Errorf("failed to read header: %w", err)
	}
	header, err := ParseHeader(record)
	if err != nil {
		return &domain.ValidationError{Field: "source", Message: err.Error(), Err: err}
	}

	requireManufacturer := opts.Scope == repository.ResetFull
	categories := make(map[string]uuid.UUID)
	batch := make([]*domain.Medicine, 0, i.cfg.BatchSize)
	accepted, processed := 0, 0

	flush := func() error {
		n, err := w.InsertMedicines(ctx, batch)
		if err != nil {
			return err
		}
		result.InsertedCount += n
		batch = batch[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("import cancelled: %w", err)
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				result.skip(parseErr.StartLine, "malformed csv: "+parseErr.Err.Error())
				continue
			}
			return fmt.Errorf("failed to read source: %w", err)
		}
		line, _ := reader.FieldPos(0)

		if accepted >= i.cfg.MaxRows {
			result.Truncated = true
			break
		}

		processed++
		if processed%i.cfg.ProgressEvery == 0 {
			logger.Info("Import progress",
				zap.Int("processed", processed),
				zap.Int("accepted", accepted),
				zap.Int("skipped", result.SkippedCount),
			)
		}

		if isBlank(record) {
			result.skip(line, "empty row")
			continue
		}

		row, reason := ParseRow(header, record, requireManufacturer)
		if reason != "" {
			result.skip(line, reason)
			continue
		}

		name := category.Resolve(tag, row.Category)
		categoryID, ok := categories[name]
		if !ok {
			id, created, err := w.EnsureCategory(ctx, name)
			if err != nil {
				return err
			}
			if created {
				result.CategoriesCreated++
			}
			categories[name] = id
			categoryID = id
		}

		batch = append(batch, toMedicine(row, tag, name, categoryID))
		accepted++

		if len(batch) >= i.cfg.BatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	if len(batch) > 0 {
		return flush()
	}
	return nil
}

func (i *Ingestor) resolve(source string) (string, error) {
	file, ok := i.cfg.Sources[strings.ToLower(strings.TrimSpace(source))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSourceNotFound, source)
	}
	return filepath.Join(i.cfg.DataDir, file), nil
}

func (i *Ingestor) begin(tag string, started time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()
	at := started.UTC()
	i.status.Running = true
	i.status.Source = tag
	i.status.StartedAt = &at
}

func (i *Ingestor) finish(result *Result, err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.status.Running = false
	i.status.Source = ""
	i.status.StartedAt = nil
	if err != nil {
		i.status.LastError = err.Error()
		return
	}
	i.status.LastResult = result
	i.status.LastError = ""
}

func checkOptions(opts Options) error {
	if !opts.ConfirmReset {
		return domain.NewValidationError("confirm", "import deletes the current catalog and must be confirmed")
	}
	if _, ok := repository.ParseResetScope(string(opts.Scope)); !ok {
		return domain.NewValidationError("scope", fmt.Sprintf("unknown reset scope %q", opts.Scope))
	}
	return nil
}

func toMedicine(row Row, tag, categoryName string, categoryID uuid.UUID) *domain.Medicine {
	m := &domain.Medicine{
		ID:                   uuid.New(),
		Name:                 row.Name,
		Manufacturer:         row.Manufacturer,
		GenericName:          row.GenericName,
		PackSize:             row.PackSize,
		Price:                row.Price,
		MRP:                  row.MRP,
		Stock:                row.Stock,
		RequiresPrescription: row.Restricted,
		CategoryID:           &categoryID,
		CategoryName:         categoryName,
	}
	if tag != "" {
		source := tag
		m.SourceFile = &source
	}
	if row.ImageURL != "" {
		image := row.ImageURL
		m.ImageURL = &image
	}
	return m
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
