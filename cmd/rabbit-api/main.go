package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/rabbitlabs/rabbit/internal/api"
	"github.com/rabbitlabs/rabbit/internal/oracle"
	"github.com/rabbitlabs/rabbit/internal/pipeline"
	"github.com/rabbitlabs/rabbit/internal/synth"
)

const (
	defaultAddr      = ":8080"
	defaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = 4096
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevel(),
	}))
	slog.SetDefault(log)

	addr := envOr("RABBIT_ADDR", defaultAddr)
	model := envOr("RABBIT_MODEL", defaultModel)
	maxTokens := int64(defaultMaxTokens)
	if v := os.Getenv("RABBIT_MAX_TOKENS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			maxTokens = n
		}
	}

	prompts, err := synth.LoadPrompts()
	if err != nil {
		log.Error("failed to load prompts", "error", err)
		os.Exit(1)
	}

	client := oracle.NewAnthropicClient(anthropic.Model(model), maxTokens)
	pipe, err := pipeline.New(pipeline.Config{
		Logger:  log,
		Oracle:  oracle.New(client, log),
		Prompts: prompts,
	})
	if err != nil {
		log.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	server, err := api.New(api.Config{
		Logger:   log,
		Pipeline: pipe,
	})
	if err != nil {
		log.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	handler := middleware.Logger(cors.Handler(cors.Options{
		AllowedOrigins:   []string{envOr("RABBIT_CORS_ORIGIN", "http://localhost:5173")},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	})(server.Routes()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("API server starting", "addr", addr, "model", model)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	sig := <-shutdown
	log.Info("shutting down", "signal", sig.String())

	// Give existing connections 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		return
	}
	log.Info("server stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func logLevel() slog.Level {
	switch os.Getenv("RABBIT_LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
