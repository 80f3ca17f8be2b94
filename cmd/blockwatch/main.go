package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/blockwatch/blockwatch/internal/config"
	"github.com/blockwatch/blockwatch/internal/database"
	"github.com/blockwatch/blockwatch/internal/handlers"
	"github.com/blockwatch/blockwatch/internal/jobs"
	"github.com/blockwatch/blockwatch/internal/middleware"
	"github.com/blockwatch/blockwatch/internal/services"
	"github.com/blockwatch/blockwatch/internal/slack"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded (this is fine if using environment variables): %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Starting blockwatch %s...", handlers.Version)

	if err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL, database.ParseLogLevel(cfg.DatabaseLogLevel)); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	store := database.NewStore(database.GetDB())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.SitesFile != "" {
		seeds, err := services.LoadSitesFile(cfg.SitesFile)
		if err != nil {
			log.Fatalf("Failed to load sites: %v", err)
		}
		n, err := services.NewSiteService(store).Seed(ctx, seeds)
		if err != nil {
			log.Fatalf("Failed to seed sites: %v", err)
		}
		log.Printf("Seeded %d sites from %s", n, cfg.SitesFile)
	}

	// Authentication
	passwordHash, err := middleware.HashPassword(cfg.AdminPassword)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}
	jwtAuth := middleware.NewJWTAuthMiddleware(middleware.JWTAuthConfig{
		AdminUsername:     cfg.AdminUsername,
		AdminPasswordHash: passwordHash,
		JWTSecret:         cfg.JWTSecret,
		JWTExpiryHours:    cfg.JWTExpiryHours,
		SkipPaths: []string{
			"/health",
			"/metrics",
			"/auth/login",
		},
		QueryTokenPaths: []string{"/ws/alerts"},
	})
	log.Printf("JWT authentication enabled for user: %s", cfg.AdminUsername)

	cors := middleware.NewCORSMiddleware(cfg.CORSAllowedOrigins...)
	loginLimit := middleware.NewRateLimitMiddleware(cfg.LoginRatePerMinute, cfg.LoginBurst, "/auth/login")
	defer loginLimit.Stop()

	// Alert sinks
	feed := handlers.NewAlertFeedHandler(cors.IsAllowedOrigin)
	notifier := slack.FromConfig(cfg.SlackBotToken, cfg.SlackAlertsChannel)

	locks := services.NewBlockLocks()
	ingestion := services.NewIngestionService(services.NewRuleStore(store), locks, feed, notifier)

	var observationStore services.ObservationStore = store
	if cfg.SiteCacheTTL > 0 {
		sites := services.NewCachedSites(store, cfg.SiteCacheTTL)
		defer sites.Stop()
		observationStore = sites
	}
	observations := services.NewObservationService(observationStore, ingestion)

	if cfg.RulesRetryInterval > 0 {
		retry := jobs.NewRulesRetryJob(store, ingestion)
		go retry.Start(ctx, cfg.RulesRetryInterval)
		log.Printf("Rules retry job started (interval: %s)", cfg.RulesRetryInterval)
	}

	sqlDB, err := database.GetDB().DB()
	if err != nil {
		log.Fatalf("Failed to get database handle: %v", err)
	}

	router := handlers.NewRouter(cors, loginLimit, jwtAuth,
		handlers.NewHTTPHandler(sqlDB),
		handlers.NewAuthHandler(jwtAuth),
		handlers.NewObservationHandler(observations, store),
		feed,
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting HTTP server on port %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Printf("Health check endpoint: http://localhost:%d/health", cfg.HTTPPort)
	log.Printf("Observation intake: http://localhost:%d/api/observations", cfg.HTTPPort)
	log.Printf("Live alert feed: ws://localhost:%d/ws/alerts", cfg.HTTPPort)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("Received shutdown signal, cleaning up...")

	cancel()
	feed.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	if n, ok := notifier.(*slack.Notifier); ok {
		n.Wait()
	}
	log.Println("Shutdown complete")
}
