package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"neuroquest/internal/api"
	"neuroquest/internal/config"
	"neuroquest/internal/db"
	"neuroquest/internal/realtime"
	"neuroquest/internal/repository"
	"neuroquest/internal/sandbox"
	"neuroquest/internal/telemetry"
)

func main() {
	log.Println("🧠 Starting NeuroQuest sandbox service...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Tracing first, so everything below is covered.
	jaegerShutdown, err := telemetry.InitJaeger("neuroquest", cfg.JaegerEndpoint)
	if err != nil {
		log.Printf("⚠️  Failed to initialize Jaeger: %v (continuing without tracing)", err)
		jaegerShutdown = func(ctx context.Context) error { return nil }
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := jaegerShutdown(ctx); err != nil {
			log.Printf("⚠️  Failed to shutdown Jaeger: %v", err)
		}
	}()

	database, err := db.NewGorm(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()

	circuitRepo := repository.NewCircuitRepository(database.DB)

	// Realtime hub and the per-room mirrors that let REST observe
	// sandbox state.
	hub := realtime.NewHub()
	mirrors := sandbox.NewMirrors(hub, cfg.RoomIdleTimeout)
	wsHandler := realtime.NewWebSocketHandler(hub)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	handler := api.NewHandler(hub, mirrors, circuitRepo, rng)
	router := api.SetupRoutes(handler, wsHandler)

	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🌐 Server listening on http://%s", addr)
		log.Printf("📚 Endpoints:")
		log.Printf("   POST   /api/rooms                 - Mint a room id")
		log.Printf("   GET    /api/rooms/:id             - Room circuit + participants")
		log.Printf("   POST   /api/rooms/:id/sync        - Rebroadcast room snapshot")
		log.Printf("   POST   /api/rooms/:id/simulate    - Run signal propagation")
		log.Printf("   POST   /api/circuits              - Save a room's circuit")
		log.Printf("   GET    /api/circuits              - List saved circuits")
		log.Printf("   WS     /ws/rooms/:id              - Join a sandbox room")
		log.Println()

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("\n🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}

	// Mirrors before the hub: each mirror unsubscribes cleanly instead
	// of finding its room already torn down.
	mirrors.Shutdown()
	hub.Shutdown()

	log.Println("✓ Server shutdown complete")
}
