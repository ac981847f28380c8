// Command import replaces the medicine catalog from a supplier CSV without
// going through the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"pharmacy-store/internal/config"
	"pharmacy-store/internal/database"
	"pharmacy-store/internal/ingest"
	"pharmacy-store/internal/logger"
	"pharmacy-store/internal/repository"
	"pharmacy-store/internal/server"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run performs one import and returns the process exit code. Returning
// instead of exiting lets deferred closes and the final log sync happen.
func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("import", flag.ContinueOnError)
	flags.SetOutput(stderr)
	source := flags.String("source", "", "configured source name, see IMPORT_SOURCES")
	file := flags.String("file", "", "path to a CSV or gzip-compressed CSV file")
	confirm := flags.Bool("confirm-reset", false, "confirm that the current catalog will be deleted")
	scope := flags.String("scope", string(repository.ResetMedicines), "what to reset: medicines or full")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	if (*source == "") == (*file == "") {
		fmt.Fprintln(stderr, "exactly one of -source or -file is required")
		flags.Usage()
		return 2
	}
	resetScope, ok := repository.ParseResetScope(*scope)
	if !ok {
		fmt.Fprintf(stderr, "unknown scope %q\n", *scope)
		return 2
	}

	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	dbService, err := database.New(cfg.Database)
	if err != nil {
		log.Error("Failed to open database", zap.Error(err))
		return 1
	}
	defer dbService.Close()

	if err := database.RunMigrations(dbService.DB(), "migrations", log); err != nil {
		log.Error("Failed to run migrations", zap.Error(err))
		return 1
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	importer := server.NewImporter(cfg, dbService.DB(), redisClient, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cfg.Import.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Import.Timeout)
		defer cancel()
	}

	opts := ingest.Options{ConfirmReset: *confirm, Scope: resetScope}

	var result *ingest.Result
	if *file != "" {
		result, err = importer.IngestFile(ctx, *file, opts)
	} else {
		result, err = importer.Ingest(ctx, *source, opts)
	}
	if err != nil {
		log.Error("Import failed", zap.Error(err))
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Error("Failed to write result", zap.Error(err))
		return 1
	}
	return 0
}
