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

	"golang.org/x/sync/errgroup"

	dandori "github.com/ashita-ai/dandori"
	"github.com/ashita-ai/dandori/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("DANDORI_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	var (
		scenarioPath = flag.String("scenario", "", "scenario JSON file (overrides DANDORI_SCENARIO)")
		horizonDays  = flag.Int("horizon", 0, "simulation horizon in days (overrides DANDORI_HORIZON_DAYS)")
		dbPath       = flag.String("db", "", "archive SQLite path (overrides DANDORI_DB_PATH)")
		sweep        = flag.Bool("sweep", false, "sweep quota staffing levels instead of a single run")
	)
	flag.Parse()

	if *sweep {
		return runSweep(ctx, logger, *scenarioPath, *horizonDays)
	}

	opts := []dandori.Option{
		dandori.WithLogger(logger),
		dandori.WithVersion(version),
	}
	if *scenarioPath != "" {
		opts = append(opts, dandori.WithScenarioPath(*scenarioPath))
	}
	if *horizonDays > 0 {
		opts = append(opts, dandori.WithHorizonDays(*horizonDays))
	}
	if *dbPath != "" {
		opts = append(opts, dandori.WithDatabasePath(*dbPath))
	}

	sim, err := dandori.New(opts...)
	if err != nil {
		return err
	}
	defer func() { _ = sim.Close(context.Background()) }()

	report, err := sim.Run(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// sweepResult is one staffing level's outcome, printed as a JSON line.
type sweepResult struct {
	QuotaCount  int     `json:"quota_count"`
	Completed   int     `json:"completed"`
	Pending     int     `json:"pending"`
	Stalls      int     `json:"stalls"`
	Late        int     `json:"late"`
	Utilization float64 `json:"utilization"`
}

// runSweep replays the scenario once per quota staffing level in
// [DANDORI_SWEEP_FROM, DANDORI_SWEEP_TO], in parallel, and prints one result
// line per level. Use it to find the smallest staff that clears the slate.
func runSweep(ctx context.Context, logger *slog.Logger, scenarioPath string, horizonDays int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	results := make([]sweepResult, cfg.SweepTo-cfg.SweepFrom+1)
	g, ctx := errgroup.WithContext(ctx)
	for n := cfg.SweepFrom; n <= cfg.SweepTo; n++ {
		n := n
		g.Go(func() error {
			opts := []dandori.Option{
				dandori.WithLogger(logger.With("quota_count", n)),
				dandori.WithVersion(version),
				dandori.WithQuotaCount(n),
			}
			if scenarioPath != "" {
				opts = append(opts, dandori.WithScenarioPath(scenarioPath))
			}
			if horizonDays > 0 {
				opts = append(opts, dandori.WithHorizonDays(horizonDays))
			}

			sim, err := dandori.New(opts...)
			if err != nil {
				return fmt.Errorf("quota %d: %w", n, err)
			}
			defer func() { _ = sim.Close(context.Background()) }()

			report, err := sim.Run(ctx)
			if err != nil {
				return fmt.Errorf("quota %d: %w", n, err)
			}
			results[n-cfg.SweepFrom] = sweepResult{
				QuotaCount:  n,
				Completed:   report.Completed,
				Pending:     len(report.Pending),
				Stalls:      len(report.Stalls),
				Late:        len(report.Late),
				Utilization: report.Utilization,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
