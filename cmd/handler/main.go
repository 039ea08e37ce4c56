package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rocjay1/tax-analyzer/internal/cgt"
	"github.com/rocjay1/tax-analyzer/internal/config"
	"github.com/rocjay1/tax-analyzer/internal/handler"
	"github.com/rocjay1/tax-analyzer/internal/logger"
	"github.com/rocjay1/tax-analyzer/internal/losses"
	"github.com/rocjay1/tax-analyzer/internal/rates"
	"github.com/rocjay1/tax-analyzer/internal/rnd"
	"github.com/rocjay1/tax-analyzer/internal/services"
	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Services
	dbService, err := services.NewDatabaseService(ctx, cfg)
	if err != nil {
		slog.Error("failed to init DatabaseService", "error", err)
		os.Exit(1)
	}

	blobService, err := services.NewBlobService(cfg.BlobServiceURL)
	if err != nil {
		slog.Error("failed to init BlobService", "error", err)
		os.Exit(1)
	}

	queueService, err := services.NewQueueService(cfg.QueueServiceURL)
	if err != nil {
		slog.Error("failed to init QueueService", "error", err)
		os.Exit(1)
	}

	rateProvider := rates.NewProvider(dbService,
		rates.WithTTL(cfg.RateCacheTTL),
		rates.WithTimeout(cfg.RateFetchTimeout),
		rates.WithRetries(cfg.RateFetchAttempts, 200*time.Millisecond),
	)

	deps := &handler.Dependencies{
		Transactions: dbService,
		Entities:     dbService,
		Blob:         blobService,
		Queue:        queueService,
		Config:       cfg,
		Analyzers: map[string]handler.AnalyzeFunc{
			"rnd":    handler.Adapt(rnd.NewAnalyzer(rateProvider).Analyze),
			"losses": handler.Adapt(losses.NewAnalyzer(rateProvider).Analyze),
			"cgt":    handler.Adapt(cgt.NewAnalyzer(rateProvider).Analyze),
		},
	}

	// Router
	mux := http.NewServeMux()

	// API Routes
	mux.HandleFunc("POST /api/tenants/{tenant}/analysis/{kind}", deps.HandleAnalysis)

	mux.HandleFunc("GET /api/tenants/{tenant}/entity", deps.HandleEntity)
	mux.HandleFunc("POST /api/tenants/{tenant}/entity", deps.HandleEntity)

	mux.HandleFunc("POST /api/upload", deps.HandleUpload)

	// Adapter for HTTP Trigger (since enableForwardingHttpRequest is false)
	mux.HandleFunc("/HttpTrigger", deps.HandleHttpTrigger(mux))

	// Use simpler path matching for ProcessQueue to avoid method mismatch issues
	mux.HandleFunc("/ProcessQueue", deps.ProcessQueue)

	mux.HandleFunc("/NightlyTrigger", deps.HandleNightlyTrigger)

	// Catch-all handler for unmatched requests to debug what the Host is sending
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		headers := make(map[string]string)
		for k, v := range r.Header {
			if strings.EqualFold(k, "Authorization") {
				continue
			}
			headers[k] = strings.Join(v, ", ")
		}
		slog.Warn("unmatched request",
			"method", r.Method,
			"path", r.URL.Path,
			"headers", headers,
			"content_length", r.ContentLength,
		)
		http.NotFound(w, r)
	})

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           loggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
		}
	}()

	slog.Info("starting server", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
