// Copyright 2025 Certen Protocol
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/didwebvh/webvh-hosting/pkg/config"
	"github.com/didwebvh/webvh-hosting/pkg/coordinator"
	"github.com/didwebvh/webvh-hosting/pkg/database"
	"github.com/didwebvh/webvh-hosting/pkg/metrics"
	"github.com/didwebvh/webvh-hosting/pkg/policy"
	"github.com/didwebvh/webvh-hosting/pkg/server"
	"github.com/didwebvh/webvh-hosting/pkg/tails"
	"github.com/didwebvh/webvh-hosting/pkg/tasks"
	"github.com/didwebvh/webvh-hosting/pkg/witness"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("🚀 Starting did:webvh hosting service")

	var (
		dev      = flag.Bool("dev", false, "relax startup validation for local development")
		showHelp = flag.Bool("help", false, "show help message")
	)
	flag.Parse()
	if *showHelp {
		printHelp()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	if *dev {
		if err := cfg.ValidateForDevelopment(); err != nil {
			log.Fatalf("❌ Configuration invalid: %v", err)
		}
		log.Printf("⚠️ Running with relaxed development validation — do not use in production")
	} else {
		if err := cfg.Validate(); err != nil {
			log.Fatalf("❌ Configuration invalid: %v", err)
		}
	}
	log.Printf("📋 Hosting domain: %s", cfg.Domain)

	// ==========================================================================
	// Phase 1: Connect to PostgreSQL and run migrations
	// ==========================================================================
	log.Println("🗄️ [Phase 1] Connecting to PostgreSQL database...")
	dbClient, err := database.NewClient(cfg, database.WithLogger(
		log.New(log.Writer(), "[Database] ", log.LstdFlags),
	))
	if err != nil {
		log.Fatalf("❌ [Phase 1] Database connection REQUIRED but failed: %v", err)
	}
	defer dbClient.Close()
	log.Println("✅ [Phase 1] Connected to PostgreSQL database")

	if err := dbClient.MigrateUp(context.Background()); err != nil {
		log.Fatalf("❌ [Phase 1] Database migration failed: %v", err)
	}
	log.Println("✅ [Phase 1] Schema migrations applied")

	repos := database.NewRepositories(dbClient)

	// ==========================================================================
	// Phase 2: Reconcile policy and witness registry, publish the live Store
	// ==========================================================================
	log.Println("📜 [Phase 2] Reconciling policy and witness registry...")
	bootPolicy := &policy.Policy{
		Version:            "1.0",
		WitnessRequired:    cfg.PolicyWitnessRequired,
		Watcher:            cfg.PolicyWatcher,
		Portability:        cfg.PolicyPortability,
		Prerotation:        cfg.PolicyPrerotation,
		Endorsement:        cfg.PolicyEndorsement,
		Validity:           cfg.PolicyValidity,
		WitnessRegistryURL: cfg.WitnessRegistryURL,
	}
	policyStore := policy.NewStore(bootPolicy, &policy.WitnessRegistry{Entries: map[string]policy.KnownWitness{}})

	taskLogger := log.New(log.Writer(), "[Tasks] ", log.LstdFlags)
	taskRunner := tasks.NewRunner(repos, policyStore, taskLogger)

	bootCtx := context.Background()
	if err := taskRunner.ReconcilePolicy(bootCtx, cfg); err != nil {
		log.Printf("⚠️ [Phase 2] Policy reconciliation failed: %v", err)
	} else {
		log.Println("✅ [Phase 2] Policy reconciled")
	}
	if err := taskRunner.RegisterInitialWitness(bootCtx, cfg); err != nil {
		log.Printf("⚠️ [Phase 2] Initial witness registration failed: %v", err)
	} else {
		log.Println("✅ [Phase 2] Witness registry seeded")
	}

	// ==========================================================================
	// Phase 3: Wire the mutation coordinator and supporting stores
	// ==========================================================================
	log.Println("🧩 [Phase 3] Wiring mutation coordinator...")
	m := metrics.New(nil)
	coord := coordinator.New(coordinator.Dependencies{
		Repos:          repos,
		PolicyStore:    policyStore,
		WitnessChecker: witness.NewChecker(),
		Metrics:        m,
	})
	tailsStore := tails.New(repos.Tails)
	log.Println("✅ [Phase 3] Coordinator ready")

	// ==========================================================================
	// Phase 4: Start the HTTP surface
	// ==========================================================================
	serverLogger := log.New(log.Writer(), "[Server] ", log.LstdFlags)
	handlers := server.New(repos, policyStore, coord, tailsStore, m, dbClient, cfg.Domain, cfg.AdminAPIKey, serverLogger)
	mux := handlers.NewMux()

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handlers.WithMetrics(mux),
	}

	log.Printf("✅ [Phase 4] Route surface configured:")
	log.Printf("   - GET  /?namespace=&alias=           (creation template)")
	log.Printf("   - POST /{namespace}/{alias}          (create/append log entry)")
	log.Printf("   - GET  /{namespace}/{alias}/did.jsonl (full log)")
	log.Printf("   - GET  /{namespace}/{alias}/did.json  (current document)")
	log.Printf("   - POST /{namespace}/{alias}/whois     (submit WHOIS presentation)")
	log.Printf("   - GET  /{namespace}/{alias}/whois.vp  (fetch WHOIS presentation)")
	log.Printf("   - POST /{namespace}/{alias}/resources (attest a resource)")
	log.Printf("   - GET|PUT /{namespace}/{alias}/resources/{digest}")
	log.Printf("   - GET|PUT /tails/hash/{digest}")
	log.Printf("   - GET|PUT /admin/policy, GET|POST /admin/witnesses")
	log.Printf("   - GET /admin/tasks, /admin/tasks/{id}, /admin/controllers")

	go func() {
		log.Printf("🌐 HTTP API listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("🛑 Shutting down did:webvh hosting service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Printf("✅ did:webvh hosting service stopped")
}

func printHelp() {
	log.Println("did:webvh hosting service")
	log.Println()
	log.Println("Environment variables (see pkg/config):")
	log.Println("  WEBVH_DOMAIN        public hostname this service hosts identifiers under")
	log.Println("  DATABASE_URL        PostgreSQL connection string")
	log.Println("  ADMIN_API_KEY       key expected in the X-Admin-Api-Key header on /admin/* routes")
	log.Println("  API_HOST, API_PORT, METRICS_PORT, HEALTH_CHECK_PORT")
	log.Println("  POLICY_WITNESS_REQUIRED, POLICY_WATCHER, POLICY_PORTABILITY,")
	log.Println("  POLICY_PREROTATION, POLICY_ENDORSEMENT, POLICY_VALIDITY, WITNESS_REGISTRY_URL")
	log.Println("  INITIAL_WITNESSES  comma-separated Ed25519 multikeys to seed the registry")
	log.Println()
	log.Println("Flags:")
	log.Println("  -dev    relax startup configuration validation for local development")
}
