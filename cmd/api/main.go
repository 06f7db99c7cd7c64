package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/influencer-lens/backend/internal/api"
	"github.com/influencer-lens/backend/internal/app"
	"github.com/influencer-lens/backend/pkg/config"
	appLogger "github.com/influencer-lens/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Influencer Lens batch API server",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model),
	)

	provider, err := app.NewProvider(cfg.LLM)
	if err != nil {
		appLogger.Fatal("Failed to create LLM provider", zap.Error(err))
	}

	a := app.New(cfg, provider)
	defer a.Close()

	deps := api.Deps{
		Client:         a.Client,
		Poller:         a.Poller,
		OutputDir:      cfg.Batch.OutputDir,
		PollInterval:   cfg.Batch.PollInterval(),
		MaxWait:        cfg.Batch.MaxWait(),
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:      cfg.Server.BodyLimit,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		MetricsEnabled: cfg.Metrics.Enabled,
		AccessLog:      true,
		Development:    cfg.Logging.Format == "console",
	}
	// Typed nil pointers must not reach the interfaces.
	if a.Redis != nil {
		deps.Cache = a.Redis
	}
	if a.SQLite != nil {
		deps.History = a.SQLite
	}

	server, stop := api.NewApp(deps)
	defer stop()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := server.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
