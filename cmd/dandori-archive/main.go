// Command dandori-archive inspects the SQLite run archive: it lists past
// simulation runs and dumps a run's stage events.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/ashita-ai/dandori/internal/config"
	"github.com/ashita-ai/dandori/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var (
		dbPath = flag.String("db", "", "archive SQLite path (overrides DANDORI_DB_PATH)")
		runID  = flag.String("run", "", "run id: dump that run's events instead of listing runs")
	)
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	path := cfg.DatabasePath
	if *dbPath != "" {
		path = *dbPath
	}
	if path == "" {
		return fmt.Errorf("no archive database (set DANDORI_DB_PATH or -db)")
	}

	db, err := storage.New(ctx, path, cfg.ArchiveBatchMax)
	if err != nil {
		return err
	}
	defer db.Close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if *runID != "" {
		id, err := uuid.Parse(*runID)
		if err != nil {
			return fmt.Errorf("parse run id: %w", err)
		}
		events, err := db.EventsByRun(ctx, id)
		if err != nil {
			return err
		}
		return enc.Encode(events)
	}

	runs, err := db.ListRuns(ctx)
	if err != nil {
		return err
	}
	return enc.Encode(runs)
}
