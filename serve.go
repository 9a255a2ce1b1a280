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

	"github.com/xiaot623/millrun/internal/config"
	"github.com/xiaot623/millrun/internal/hub"
	"github.com/xiaot623/millrun/internal/policy"
	"github.com/xiaot623/millrun/internal/repository"
	"github.com/xiaot623/millrun/internal/service"
	"github.com/xiaot623/millrun/internal/solver"
	httptransport "github.com/xiaot623/millrun/internal/transport/http"
	"github.com/xiaot623/millrun/internal/transport/ws"
)

func serve() error {
	// Load configuration
	cfg := config.Load()
	if cfg.LogLevel == "debug" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	log.Printf("Starting millrun service...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Workspace: %s", cfg.WorkspaceDir)
	log.Printf("LIGGGHTS command: %s", cfg.LiggghtsCmd)
	log.Printf("Database: %s", cfg.DatabaseURL)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize run index
	store, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize run index: %w", err)
	}
	defer store.Close()

	// Initialize policy engine
	policyEngine, err := policy.NewEngineFromFile(ctx, cfg.PolicyFile)
	if err != nil {
		return fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	// Initialize solver runner
	runner, err := solver.NewRunner(cfg.WorkspaceDir, cfg.LiggghtsCmd)
	if err != nil {
		return fmt.Errorf("failed to initialize solver runner: %w", err)
	}

	// Initialize event hub
	eventHub := hub.NewHub()
	go eventHub.Run(ctx)

	svc := service.New(store, runner, policyEngine, eventHub)
	wsServer := ws.NewServer(cfg, eventHub)
	e := httptransport.NewServer(svc, wsServer, cfg.FrontendDir)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	log.Printf("HTTP server started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down millrun...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown HTTP server gracefully: %v", err)
	}
	stop()

	log.Println("millrun stopped")
	return nil
}
