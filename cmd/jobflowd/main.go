// Jobflowd is the job-description extraction daemon.
//
// It exposes an HTTP API for submitting documents, polling extraction
// progress, and retrying unfinished jobs. Workflow state is checkpointed
// after every phase so interrupted jobs resume without redoing work.
//
// Usage:
//
//	# Start with defaults (heuristic extraction, sqlite checkpoints)
//	jobflowd
//
//	# Configure via file and environment
//	jobflowd -config config.yaml
//	JOBFLOW_SERVER_PORT=9090 JOBFLOW_EXTRACTION_PROVIDER=openai jobflowd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/jobflow/internal/checkpoint"
	"github.com/fyrsmithlabs/jobflow/internal/config"
	"github.com/fyrsmithlabs/jobflow/internal/engine"
	"github.com/fyrsmithlabs/jobflow/internal/extractor"
	"github.com/fyrsmithlabs/jobflow/internal/logging"
	"github.com/fyrsmithlabs/jobflow/internal/retry"
	"github.com/fyrsmithlabs/jobflow/internal/server"
	"github.com/fyrsmithlabs/jobflow/internal/steps"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("jobflowd %s (%s)\n", version, gitCommit)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, shutting down", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("server error: %v", err)
	}
	log.Println("shutdown complete")
}

// run wires the daemon together and blocks until the context is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	store, err := newStore(cfg.Checkpoint, logger)
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}
	defer store.Close()

	extractors, err := extractor.NewExtractors(cfg.Extraction, logger)
	if err != nil {
		return fmt.Errorf("create extractors: %w", err)
	}

	policy := retry.Policy{
		MaxRetries:  cfg.Retry.MaxRetries,
		MinScore:    cfg.Retry.MinScore,
		BaseBackoff: cfg.Retry.BaseBackoff,
	}
	registry := steps.NewRegistry(extractors, policy, logger)
	aggregator := extractor.NewRecordAggregator(logger)

	eng, err := engine.New(registry, extractor.NewFileLoader(), aggregator, store, logger)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	srv, err := server.NewServer(eng, store, logger, cfg.Server)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("jobflowd started",
		zap.String("version", version),
		zap.String("provider", cfg.Extraction.Provider),
		zap.String("checkpoint_backend", cfg.Checkpoint.Backend),
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newStore opens the configured checkpoint backend.
func newStore(cfg config.CheckpointConfig, logger *zap.Logger) (checkpoint.Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return checkpoint.NewSQLiteStore(cfg.Path, logger)
	case config.BackendMemory:
		return checkpoint.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Backend)
	}
}
