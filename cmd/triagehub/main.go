package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"

	"github.com/triagehub/triagehub/internal/alerts"
	"github.com/triagehub/triagehub/internal/config"
	"github.com/triagehub/triagehub/internal/database"
	"github.com/triagehub/triagehub/internal/handlers"
	"github.com/triagehub/triagehub/internal/jobs"
	"github.com/triagehub/triagehub/internal/middleware"
	"github.com/triagehub/triagehub/internal/notify"
	"github.com/triagehub/triagehub/internal/services"
)

// fanoutNotifier forwards incident notifications to multiple sinks.
type fanoutNotifier []services.IncidentNotifier

func (f fanoutNotifier) NotifyIncident(incident *database.Incident) {
	for _, n := range f {
		n.NotifyIncident(incident)
	}
}

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting TriageHub...")

	// Authentication. With no ANALYST_PASSWORD set the API runs open,
	// which is only sensible for local evaluation.
	var passwordHash string
	if cfg.AuthEnabled {
		passwordHash, err = middleware.HashPassword(cfg.AnalystPassword)
		if err != nil {
			log.Fatalf("Failed to hash analyst password: %v", err)
		}
	} else {
		log.Printf("WARNING: ANALYST_PASSWORD is not set, authentication is DISABLED")
	}

	jwtAuthMiddleware := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		Enabled:             cfg.AuthEnabled,
		AnalystUsername:     cfg.AnalystUsername,
		AnalystPasswordHash: passwordHash,
		JWTSecret:           cfg.JWTSecret,
		JWTExpiryHours:      cfg.JWTExpiryHours,
		SkipPaths: []string{
			"/api/health",
			"/api/auth/login",
			"/metrics",
		},
	})
	if cfg.AuthEnabled {
		log.Printf("JWT authentication enabled for user: %s", cfg.AnalystUsername)
	}

	// Database
	db, err := database.Connect(cfg.DatabaseURL, logger.Warn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}
	if err := database.InitializeDefaults(db); err != nil {
		log.Fatalf("Failed to initialize database defaults: %v", err)
	}

	// Field mapping configuration, optionally overridden from YAML.
	mapping := alerts.DefaultMappingConfig()
	if cfg.MappingConfigPath != "" {
		mapping, err = alerts.LoadMappingConfig(cfg.MappingConfigPath)
		if err != nil {
			log.Fatalf("Failed to load mapping config %s: %v", cfg.MappingConfigPath, err)
		}
		log.Printf("Loaded field mapping overrides from %s", cfg.MappingConfigPath)
	}

	// Services. Incident updates fan out to the websocket feed and Slack.
	hub := handlers.NewWSHub()
	notifier := notify.NewNotifier(db)
	importService := services.NewImportService(db, mapping, fanoutNotifier{hub, notifier})
	incidentService := services.NewIncidentService(db)

	// HTTP routes
	apiHandler := handlers.NewAPIHandler(db, importService, incidentService, jwtAuthMiddleware, hub, cfg.DemoDataDir)
	mux := http.NewServeMux()
	apiHandler.SetupRoutes(mux)

	corsMiddleware := middleware.NewCORSMiddleware() // allow all origins
	handler := corsMiddleware.Wrap(middleware.RequestIDMiddleware(jwtAuthMiddleware.Wrap(mux)))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handler,
	}

	go func() {
		log.Printf("Starting HTTP server on port %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Background recorrelation
	stopJobs := make(chan struct{})
	recorrelationJob := jobs.NewRecorrelationJob(db, importService)
	go recorrelationJob.Start(stopJobs)

	log.Printf("API base URL: http://localhost:%d/api", cfg.HTTPPort)
	log.Printf("Health check endpoint: http://localhost:%d/api/health", cfg.HTTPPort)
	log.Printf("Metrics endpoint: http://localhost:%d/metrics", cfg.HTTPPort)

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Received shutdown signal, cleaning up...")
	close(stopJobs)
	if err := httpServer.Close(); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}
	log.Println("Shutdown complete")
}
