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

	"airmini-gateway/internal/backend"
	"airmini-gateway/internal/cache"
	"airmini-gateway/internal/config"
	"airmini-gateway/internal/credits"
	"airmini-gateway/internal/database"
	"airmini-gateway/internal/handlers"
	"airmini-gateway/internal/middleware"
	"airmini-gateway/internal/router"
	"airmini-gateway/internal/session"
	"airmini-gateway/internal/stream"
)

func main() {
	log.Println("🚀 Starting Airmini Gateway...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize Redis ────
	redisClient, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClient.Close()
	log.Println("✓ Redis connected")

	guestTTL := time.Duration(cfg.GuestSessionTTLHours) * time.Hour

	// ──── Step 3: Initialize Assistant Backend Clients ────
	backendClient := backend.NewClient(cfg.BackendURL, time.Duration(cfg.BackendTimeoutSecs)*time.Second)
	transport := stream.NewTransport(cfg.BackendURL, time.Duration(cfg.StreamTimeoutSecs)*time.Second)
	log.Println("✓ Assistant backend client initialized")

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	creditStore := credits.NewRedisStore(redisClient, guestTTL)
	creditManager := credits.NewManager(creditStore, time.Duration(cfg.CreditWindowHours)*time.Hour, cfg.CreditMaxRequests)
	guestGate := credits.NewGuestGate(creditStore, cfg.FreeMessageLimit)
	cacheStore := cache.New(cache.NewRedisStore(redisClient), 5*time.Minute)
	registry := session.NewRegistry(session.NewRedisSnapshotStore(redisClient, guestTTL))

	// ──── Initialize Handlers ────
	chatHandler := handlers.NewChatHandler(registry, transport, creditManager, guestGate, cacheStore)
	chatsHandler := handlers.NewChatsHandler(backendClient, cacheStore, registry)
	creditsHandler := handlers.NewCreditsHandler(creditManager, guestGate, cacheStore)
	tripContextHandler := handlers.NewTripContextHandler(backendClient, cacheStore)

	// ──── Step 4: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		chatHandler,
		chatsHandler,
		creditsHandler,
		tripContextHandler,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout must outlast the longest assistant stream.
		WriteTimeout: time.Duration(cfg.StreamTimeoutSecs+15) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ Airmini Gateway ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
