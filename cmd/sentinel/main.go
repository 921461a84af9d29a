// Sentinel - Bayesian decision engine for home security cameras.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/novinai/sentinel/internal/activity"
	"github.com/novinai/sentinel/internal/api"
	"github.com/novinai/sentinel/internal/bus"
	"github.com/novinai/sentinel/internal/cache"
	"github.com/novinai/sentinel/internal/decision"
	"github.com/novinai/sentinel/internal/domain"
	"github.com/novinai/sentinel/internal/evidence"
	"github.com/novinai/sentinel/internal/policy"
	"github.com/novinai/sentinel/internal/repository"
	"github.com/novinai/sentinel/internal/summary"
	"github.com/novinai/sentinel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("SENTINEL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting sentinel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("SENTINEL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Activity Service
	activitySvc := activity.NewService(repo, cacheImpl)
	slog.Info("activity service initialized")

	// Initialize Policy Engine with activity getter
	policies, err := policy.NewEngine(activitySvc.GetActivityGetter(), 100)
	if err != nil {
		slog.Error("failed to initialize policy engine", "error", err)
		os.Exit(1)
	}

	// Built-in policies apply everywhere; user policies layer on top via
	// the API and database.
	if err := policies.LoadPolicies(policy.BuiltinPolicies()); err != nil {
		slog.Error("failed to load builtin policies", "error", err)
		os.Exit(1)
	}
	if err := loadPoliciesFromDatabase(ctx, repo, policies); err != nil {
		slog.Error("failed to load policies", "error", err)
		os.Exit(1)
	}
	slog.Info("policy engine initialized", "policies_count", policies.PoliciesCount())

	// Initialize LLM summarizer sidecar client (optional)
	var summarizer summary.Provider
	if cfg.Summarizer.Enabled {
		summarizer = summary.NewClient(cfg.Summarizer, logger)
		slog.Info("summarizer sidecar enabled", "base_url", cfg.Summarizer.BaseURL)
	}

	// Initialize Decision Processor
	extractor := evidence.NewExtractor(cfg.Engine)
	processor := decision.NewProcessor(cfg.Engine, extractor, summarizer, logger)
	slog.Info("decision processor initialized",
		"profile", cfg.Engine.Profile,
		"incident_ttl", cfg.Engine.IncidentTTL,
	)

	// Periodic sweep of expired incident windows. Upserts sweep lazily;
	// this keeps idle shards from holding stale state.
	go func() {
		ticker := time.NewTicker(cfg.Engine.IncidentTTL)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if closed := processor.Store().Sweep(now); closed > 0 {
					slog.Debug("swept expired incidents", "closed", closed)
				}
			}
		}
	}()

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("SENTINEL_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, cacheImpl, processor, policies, activitySvc)

		// Get home IDs to process (from environment or default)
		var homeIDs []string
		if envHomes := os.Getenv("SENTINEL_HOMES"); envHomes != "" {
			for _, h := range strings.Split(envHomes, ",") {
				if h = strings.TrimSpace(h); h != "" {
					homeIDs = append(homeIDs, h)
				}
			}
		}

		workerCfg := worker.Config{
			HomeIDs:        homeIDs,
			ActivityWindow: 600,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "home_count", len(homeIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, policies, activitySvc, processor, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("sentinel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("sentinel shutdown complete")
}

// GlobalHomeID is used for policies that apply to all homes.
const GlobalHomeID = "*"

// loadPoliciesFromDatabase loads stored global policies into the engine.
// Per-home policies are configured via POST /policies.
func loadPoliciesFromDatabase(ctx context.Context, repo domain.Repository, policies *policy.Engine) error {
	dbPolicies, err := repo.ListPolicies(ctx, GlobalHomeID)
	if err != nil {
		slog.Warn("failed to list policies from database", "error", err)
		return nil // Start with builtins only - more can be added via API
	}

	if len(dbPolicies) > 0 {
		// Stored global rows carry the sentinel home ID; clear it so the
		// engine applies them to every home.
		for _, p := range dbPolicies {
			if p.HomeID == GlobalHomeID {
				p.HomeID = ""
			}
		}
		slog.Info("loading policies from database", "count", len(dbPolicies))
		return policies.LoadPolicies(dbPolicies)
	}

	slog.Info("no policies in database - configure via POST /policies API")
	return nil
}

// applyEnvOverrides adjusts the loaded configuration from SENTINEL_*
// environment variables. Only the settings that commonly differ between
// deployments are exposed this way.
func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv("SENTINEL_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("SENTINEL_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := os.Getenv("SENTINEL_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("SENTINEL_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("SENTINEL_SUMMARIZER_URL"); v != "" {
		cfg.Summarizer.Enabled = true
		cfg.Summarizer.BaseURL = v
	}
	switch os.Getenv("SENTINEL_PROFILE") {
	case "conservative":
		cfg.Engine.Profile = domain.ProfileConservative
	case "balanced":
		cfg.Engine.Profile = domain.ProfileBalanced
	case "vigilant":
		cfg.Engine.Profile = domain.ProfileVigilant
	}
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               SENTINEL                    ║")
	fmt.Println("  ║     Thinking layer for home security      ║")
	fmt.Println("  ║      Reasons before it alerts.            ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Profile:  %s\n", cfg.Engine.Profile)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /events            - Ingest a camera event")
	fmt.Println("    GET  /events/{id}       - Get event by ID")
	fmt.Println("    GET  /assessments       - List recent assessments")
	fmt.Println("    GET  /assessments/{id}  - Get assessment by ID")
	fmt.Println("    GET  /incidents         - List open incident windows")
	fmt.Println("    POST /outcomes          - Record ground-truth outcome")
	fmt.Println("    GET  /policies          - List all policies")
	fmt.Println("    POST /policies          - Create a new policy")
	fmt.Println("    PUT  /policies/{id}     - Update a policy")
	fmt.Println("    DELETE /policies/{id}   - Delete a policy")
	fmt.Println("    POST /policies/reload   - Hot-reload policies")
	fmt.Println("    GET  /health            - Health check")
	fmt.Println()
}
