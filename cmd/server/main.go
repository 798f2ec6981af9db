// tonechat - tone-aware chat server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/tonechat/internal/api"
	"github.com/ashureev/tonechat/internal/config"
	"github.com/ashureev/tonechat/internal/domain"
	"github.com/ashureev/tonechat/internal/identity"
	"github.com/ashureev/tonechat/internal/llm"
	"github.com/ashureev/tonechat/internal/middleware"
	"github.com/ashureev/tonechat/internal/session"
	"github.com/ashureev/tonechat/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	client, err := newCompletionClient(ctx, cfg, logger)
	if err != nil {
		slog.Error("Failed to initialize completion client", "error", err)
		os.Exit(1)
	}

	sessions := session.NewManager(repo, client, logger)

	sendLimiter := middleware.NewRateLimiter(cfg.Chat.SendRatePerMin, time.Minute)
	sendLimiter.StartEviction(ctx)

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, sessions, cfg)
	authHandler := api.NewAuthHandler(baseHandler)
	chatHandler := api.NewChatHandler(baseHandler, sendLimiter)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Public routes.
	authHandler.RegisterRoutes(r)

	// Everything else needs a signed-in owner.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo))
		chatHandler.RegisterRoutes(r)
	})

	// Sends wait on the completion backend, so the write timeout is generous.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	identity.StartCleanupWorker(ctx, repo, cfg.Chat.CleanupInterval)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	// Sends outlive their requests, so wait for them before the repository closes.
	if err := sessions.Drain(shutdownCtx); err != nil {
		slog.Error("In-flight sends abandoned", "error", err)
	}

	slog.Info("Server stopped")
}

func newCompletionClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.CompletionClient, error) {
	if cfg.Gemini.UseMock {
		slog.Warn("Using mock completion client (USE_MOCK_LLM set)")
		return llm.NewMockClient(), nil
	}
	client, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
		APIKey: cfg.Gemini.APIKey,
		Model:  cfg.Gemini.Model,
	}, logger)
	if err != nil {
		return nil, err
	}
	slog.Info("Gemini client initialized", "model", cfg.Gemini.Model)
	return client, nil
}
