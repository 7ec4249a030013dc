package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nafes-passport/backend/internal/auth"
	"nafes-passport/backend/internal/changelog"
	"nafes-passport/backend/internal/gateway"
	"nafes-passport/backend/internal/shared"
	"nafes-passport/backend/internal/student"
)

func main() {
	log.Println("INFO: Starting Nafes Passport API...")

	// 1. Load Configuration
	shared.LoadEnv("")
	cfg, err := shared.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Invalid configuration: %v", err)
	}

	// 2. Connect to MongoDB
	client, db, err := shared.ConnectMongoDB(&cfg.MongoDB)
	if err != nil {
		log.Fatalf("FATAL: Failed to connect to MongoDB: %v", err)
	}
	defer shared.DisconnectMongoDB(client)

	// 3. Initialize Services
	logsService := changelog.NewService(db)
	studentService := student.NewService(db, logsService)
	authService := auth.NewService(cfg.Security)

	// 4. Setup Routes and Middleware
	router := gateway.SetupRoutes(cfg, db, authService, studentService, logsService)

	// 5. Configure Server
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: the roster stream endpoint holds its
		// connection open indefinitely.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// 6. Start Server in a Goroutine
	go func() {
		log.Printf("INFO: API listening on port %s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("FATAL: HTTP server error: %v", err)
		}
	}()

	// 7. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("INFO: Shutting down API...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("WARN: HTTP server shutdown: %v", err)
	}

	log.Println("INFO: API stopped.")
}
