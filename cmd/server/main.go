package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumenlearn/backend/internal/api"
	"github.com/lumenlearn/backend/internal/digest"
	"github.com/lumenlearn/backend/internal/evaluation"
	"github.com/lumenlearn/backend/internal/infrastructure/config"
	"github.com/lumenlearn/backend/internal/judge"
	"github.com/lumenlearn/backend/internal/mastery"
	"github.com/lumenlearn/backend/internal/service"
	"github.com/lumenlearn/backend/internal/store"
	"github.com/lumenlearn/backend/internal/timezone"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// ── Dependencies ────────────────────────────────────────────────
	db, err := store.NewSQLite(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	llm := judge.NewOpenAIJudge(judge.Config{
		BaseURL: cfg.LLMURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
	})

	evalCfg := evaluation.DefaultConfig()
	evalCfg.JudgeTimeout = cfg.JudgeTimeout
	evaluator := evaluation.NewWithConfig(llm, evalCfg, logger)

	coord := mastery.New(evaluator)
	reviews := service.NewReviewService(db, coord, logger)
	handler := api.NewHandler(db, reviews, logger)

	// ── Routes ──────────────────────────────────────────────────────
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "ok"}`))
	})

	api.RegisterRoutes(mux, handler)

	// ── Middleware chain: Logging → CORS → mux ──────────────────────
	logged := api.Logging(logger)(api.CORS(mux))

	// ── Daily digest ────────────────────────────────────────────────
	loc, err := timezone.Parse(cfg.DefaultTimezone)
	if err != nil {
		logger.Warn("invalid default timezone, using UTC", "timezone", cfg.DefaultTimezone)
	}
	dailyDigest := digest.New(db, digest.LogNotifier{Logger: logger}, logger, loc)
	if cfg.DigestHour >= 0 {
		if err := dailyDigest.Start(cfg.DigestHour); err != nil {
			logger.Error("failed to start digest", "error", err)
			os.Exit(1)
		}
		defer dailyDigest.Stop()
	}

	// ── Server ──────────────────────────────────────────────────────
	server := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           logged,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		logger.Info("shutting down server")
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server forced to shutdown", "error", err)
		}
	}()

	logger.Info("starting server", "address", cfg.ServerAddress)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed to start", "error", err)
		os.Exit(1)
	}
}
