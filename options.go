package dandori

import (
	"log/slog"
)

// Option configures a Simulator.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	scenario     *Scenario
	scenarioPath string
	horizonDays  int
	databasePath string
	quotaCount   int
	logger       *slog.Logger
	version      string
	resolver     ConflictResolver
	hooks        []StageHook
}

// WithScenario supplies the scenario directly, skipping the file load from
// config (DANDORI_SCENARIO env var).
func WithScenario(s Scenario) Option {
	return func(o *resolvedOptions) { o.scenario = &s }
}

// WithScenarioPath overrides the scenario file path from config
// (DANDORI_SCENARIO env var).
func WithScenarioPath(path string) Option {
	return func(o *resolvedOptions) { o.scenarioPath = path }
}

// WithHorizonDays overrides the simulation horizon from config
// (DANDORI_HORIZON_DAYS env var).
func WithHorizonDays(days int) Option {
	return func(o *resolvedOptions) { o.horizonDays = days }
}

// WithDatabasePath overrides the archive database path from config
// (DANDORI_DB_PATH env var). An empty path disables archiving either way.
func WithDatabasePath(path string) Option {
	return func(o *resolvedOptions) { o.databasePath = path }
}

// WithQuotaCount replaces the scenario's quota-type resources with n
// generated ones. Capacity sweeps use this to try staffing levels without
// editing the scenario file.
func WithQuotaCount(n int) Option {
	return func(o *resolvedOptions) { o.quotaCount = n }
}

// WithLogger sets the structured logger for the Simulator.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in logs and telemetry.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithResolver replaces the built-in priority-matching conflict resolver.
// Only the last call wins.
func WithResolver(r ConflictResolver) Option {
	return func(o *resolvedOptions) { o.resolver = r }
}

// WithStageHook registers a hook to receive completed stage events.
// Multiple hooks may be registered; all registered hooks receive every event.
func WithStageHook(hook StageHook) Option {
	return func(o *resolvedOptions) { o.hooks = append(o.hooks, hook) }
}
