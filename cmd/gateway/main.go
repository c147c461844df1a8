package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jmwangi/pesalink-gateway/internal/application/services"
	"github.com/jmwangi/pesalink-gateway/internal/config"
	"github.com/jmwangi/pesalink-gateway/internal/infrastructure/alert"
	"github.com/jmwangi/pesalink-gateway/internal/infrastructure/daraja"
	"github.com/jmwangi/pesalink-gateway/internal/infrastructure/listmonk"
	"github.com/jmwangi/pesalink-gateway/internal/infrastructure/memstore"
	"github.com/jmwangi/pesalink-gateway/internal/interfaces/rest/handlers"
	"github.com/jmwangi/pesalink-gateway/internal/interfaces/rest/middleware"
	"github.com/jmwangi/pesalink-gateway/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting gateway service",
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
		"untrusted_policy", cfg.Callback.UntrustedPolicy,
	)

	amount, err := cfg.Daraja.AmountDecimal()
	if err != nil {
		logger.Error("invalid subscription amount", "error", err)
		os.Exit(1)
	}

	store := memstore.NewPendingStore()
	gatewayClient := daraja.NewClient(cfg.Daraja)
	directory := listmonk.NewClient(cfg.Directory)
	alerter := alert.NewWebhookNotifier(cfg.Alert, logger)

	initiateService := services.NewInitiateService(store, gatewayClient, amount, logger)
	reconcileService := services.NewReconcileService(
		store,
		directory,
		alerter,
		services.NewCallbackValidator(cfg.Callback),
		cfg.Callback,
		cfg.Directory,
		logger,
	)

	h := handlers.NewHandlers(initiateService, reconcileService, logger)

	router := chi.NewRouter()
	h.RegisterRoutes(router)

	handler := middleware.Recovery(logger)(router)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Timeout(cfg.Server.ReadTimeout)(handler)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sweeper := worker.NewSweeper(
		store,
		cfg.Worker.SweepInterval,
		cfg.Worker.MaxPendingAge,
		logger,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go sweeper.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
