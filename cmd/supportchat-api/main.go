package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/PabloGalante/supportchat/internal/adapters/http"
	"github.com/PabloGalante/supportchat/internal/adapters/llm"
	"github.com/PabloGalante/supportchat/internal/adapters/natsworker"
	"github.com/PabloGalante/supportchat/internal/app/conversation"
	"github.com/PabloGalante/supportchat/internal/config"
	"github.com/PabloGalante/supportchat/internal/domain"
	"github.com/PabloGalante/supportchat/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		observability.Logger().Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log, err := observability.Init(observability.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		log.Error("error initializing log file", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Error("error initializing storage", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()
	log.Info("storage ready", "backend", cfg.StorageBackend)

	// Model gateway
	gateway, err := llm.New(ctx, llm.ProviderConfig{
		Type:            llm.ProviderType(cfg.LLMProvider),
		APIKey:          cfg.LLMAPIKey,
		BaseURL:         cfg.LLMBaseURL,
		GCPProjectID:    cfg.GCPProjectID,
		GCPLocation:     cfg.GCPLocation,
		Model:           cfg.LLMModel,
		Temperature:     cfg.LLMTemperature,
		MaxOutputTokens: cfg.LLMMaxOutputTokens,
		Timeout:         cfg.LLMTimeout,
		HistoryTurns:    cfg.HistoryTurns,
	})
	if err != nil {
		log.Error("error initializing model gateway", "provider", cfg.LLMProvider, "error", err)
		os.Exit(1)
	}
	log.Info("model gateway ready", "provider", cfg.LLMProvider)

	// Conversation Service
	svc := conversation.NewService(gateway, store)

	// Optional NATS worker
	var worker *natsworker.Worker
	if cfg.NATSURL != "" {
		worker, err = natsworker.Connect(cfg.NATSURL, svc, workerOptions(cfg))
		if err != nil {
			log.Error("error connecting to NATS", "error", err)
			os.Exit(1)
		}
		if err := worker.Start(ctx); err != nil {
			log.Error("error starting NATS worker", "error", err)
			os.Exit(1)
		}
	}

	// HTTP server
	pinger, _ := store.(domain.Pinger)
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpadapter.NewServer(svc, pinger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.LLMTimeout + requestMargin,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("supportchat API listening", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error("server failed", "error", err)
			return
		}
	}

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	if worker != nil {
		if err := worker.Stop(shutdownCtx); err != nil {
			log.Error("nats worker forced to stop", "error", err)
		}
	}

	log.Info("server stopped")
}
