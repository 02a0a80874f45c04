/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the attendance ingestion and reconciliation server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Load column mapping profiles (optional)
  4. Create reconciliation engine and API handler
  5. Start the background reconciliation scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port        HTTP server port (default: 8080)
  -db          SQLite database path (default: attendance.db)
               Use ":memory:" for in-memory database
  -profiles    YAML file of named column mappings (default: none)
  -workers     Employees reconciled concurrently (default: 1)
  -interval    Scheduler check interval (default: 15m)
  -scheduler   Run the background scheduler (default: true)
  -max-upload  Maximum upload size in bytes (default: 32 MiB)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database and device profiles
  ./server -db="./data/attendance.db" -profiles=./mappings.yaml

  # Parallel reconciliation, scheduler every 5 minutes
  ./server -workers=8 -interval=5m

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Background reconciliation
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/ingest"
	"github.com/warp/attendance-engine/reconcile"
	"github.com/warp/attendance-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "attendance.db", "SQLite database path")
	profilesPath := flag.String("profiles", "", "YAML file of named column mappings")
	workers := flag.Int("workers", 1, "Employees reconciled concurrently")
	interval := flag.Duration("interval", 15*time.Minute, "Scheduler check interval")
	schedulerEnabled := flag.Bool("scheduler", true, "Run the background reconciliation scheduler")
	maxUpload := flag.Int64("max-upload", api.DefaultMaxUploadBytes, "Maximum upload size in bytes")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Column mapping profiles
	var profiles *ingest.MappingProfiles
	if *profilesPath != "" {
		profiles, err = ingest.LoadMappingProfiles(*profilesPath)
		if err != nil {
			log.Fatalf("Failed to load mapping profiles: %v", err)
		}
		log.Printf("Loaded mapping profiles: %v", profiles.Names())
	}

	// Initialize engine and handler
	engine := reconcile.NewEngine(store)
	engine.Workers = *workers

	handler := api.NewHandler(store, engine, profiles)
	handler.MaxUploadBytes = *maxUpload

	// Background reconciliation
	scheduler := api.NewReconciliationScheduler(handler)
	scheduler.CheckInterval = *interval
	scheduler.Enabled = *schedulerEnabled
	scheduler.Start()

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
