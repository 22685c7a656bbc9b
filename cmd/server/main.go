package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"sms-activation-tracker/internal/config"
	"sms-activation-tracker/internal/handler"
	"sms-activation-tracker/internal/middleware"
	"sms-activation-tracker/internal/reconciler"
	"sms-activation-tracker/internal/repository"
	"sms-activation-tracker/internal/service"
	"sms-activation-tracker/internal/upstream"
	"sms-activation-tracker/pkg/logger"
)

func main() {
	// Create .env from .env.example if not exists
	if err := ensureEnvFile(); err != nil {
		log.Printf("Warning: Failed to create .env file: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Starting SMS activation tracker")
	if cfg.Upstream.APIKey == "" {
		appLogger.Warn("SMS_API_KEY is not set, upstream calls will fail with AUTH_ERROR")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Persistence for trusted activation timers
	kv, closeStore, err := openStore(ctx, &cfg.Store, appLogger)
	if err != nil {
		appLogger.Error("Failed to open activation store", "error", err)
		log.Fatalf("Failed to open activation store: %v", err)
	}
	defer closeStore()
	store := repository.NewActivationStore(kv)

	// Upstream access and domain services
	client := upstream.NewClient(&cfg.Upstream, appLogger)
	activationService := service.NewActivationService(client, store, appLogger)
	sweeper := service.NewExpirationSweeper(store, reconciler.New(), activationService.GetActivationStatus, appLogger)

	// Optional WhatsApp notifications
	var codeNotifier service.CodeNotifier
	var connection handler.ConnectionReporter
	var groupsHandler *handler.GroupsHandler
	if cfg.WhatsApp.Enabled {
		notifier, err := service.NewWhatsAppNotifier(ctx, &cfg.WhatsApp, appLogger)
		if err != nil {
			appLogger.Error("Failed to initialize WhatsApp notifier", "error", err)
			log.Fatalf("Failed to initialize WhatsApp notifier: %v", err)
		}
		if err := notifier.Connect(ctx); err != nil {
			appLogger.Error("Failed to connect to WhatsApp", "error", err)
			log.Fatalf("Failed to connect to WhatsApp: %v\nPlease scan QR code first", err)
		}
		defer notifier.Disconnect()

		codeNotifier = notifier
		connection = notifier
		groupsHandler = handler.NewGroupsHandler(notifier, appLogger)
	}

	poller := service.NewPoller(activationService, sweeper, codeNotifier, &cfg.Polling, appLogger)
	go poller.Run(ctx)

	// Initialize handlers
	activationHandler := handler.NewActivationHandler(activationService, poller, appLogger)
	healthHandler := handler.NewHealthHandler(poller, connection, cfg, appLogger)
	authMiddleware := middleware.NewAuthMiddleware(cfg.Security.APIKey, appLogger)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.NewRouter(activationHandler, healthHandler, groupsHandler, authMiddleware, appLogger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Upstream.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("HTTP server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server error", "error", err)
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	appLogger.Info("SMS activation tracker started successfully",
		"address", addr,
		"upstream", cfg.Upstream.BaseURL,
		"whatsapp_enabled", cfg.WhatsApp.Enabled,
	)

	<-ctx.Done()
	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
		return
	}

	appLogger.Info("Server stopped gracefully")
}

// openStore opens the KV backing activation timers. The returned func
// releases it.
func openStore(ctx context.Context, cfg *config.StoreConfig, appLogger *logger.Logger) (repository.KV, func(), error) {
	if cfg.DBPath == config.MemoryStore {
		appLogger.Warn("Activation timers are kept in memory and lost on restart")
		return repository.NewMemoryKV(), func() {}, nil
	}

	sqliteKV, err := repository.NewSQLiteKV(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}

	count, err := sqliteKV.Count(ctx)
	if err != nil {
		appLogger.Warn("Failed to count activation timers", "error", err)
	}
	appLogger.Info("Activation store ready", "path", cfg.DBPath, "timers", count)

	return sqliteKV, func() { sqliteKV.Close() }, nil
}

// ensureEnvFile creates .env from .env.example if .env doesn't exist
func ensureEnvFile() error {
	if _, err := os.Stat(".env"); err == nil {
		return nil
	}

	if _, err := os.Stat(".env.example"); os.IsNotExist(err) {
		return fmt.Errorf(".env.example not found")
	}

	source, err := os.Open(".env.example")
	if err != nil {
		return fmt.Errorf("failed to open .env.example: %w", err)
	}
	defer source.Close()

	destination, err := os.Create(".env")
	if err != nil {
		return fmt.Errorf("failed to create .env: %w", err)
	}
	defer destination.Close()

	if _, err := io.Copy(destination, source); err != nil {
		return fmt.Errorf("failed to copy .env.example to .env: %w", err)
	}

	log.Println("Created .env file from .env.example")
	return nil
}
