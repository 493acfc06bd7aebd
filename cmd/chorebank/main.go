package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chorebank/internal/database"
	"chorebank/internal/logging"
	"chorebank/internal/server"
)

func main() {
	port := os.Getenv("CHOREBANK_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("CHOREBANK_DB_PATH")
	if dbPath == "" {
		dbPath = "chorebank.db"
	}

	logger := logging.Setup(os.Getenv("CHOREBANK_LOG_LEVEL"))

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	srv := server.New(db, os.Getenv("CHOREBANK_CALENDAR_URL"), logger)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// CHOREBANK_JOBS=off leaves generation and the sweep entirely to the
	// admin endpoints, for deployments that drive them externally.
	stopJobs := make(chan struct{})
	if os.Getenv("CHOREBANK_JOBS") != "off" {
		go runScheduledJobs(srv, logger, stopJobs)
	}

	go func() {
		fmt.Printf("ChoreBank running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	close(stopJobs)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
