package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/amqp"
	"bilancio/internal/cache"
	appcli "bilancio/internal/cli"
	"bilancio/internal/core"
	apphttp "bilancio/internal/http"
	"bilancio/internal/log"
	"bilancio/internal/recurrence"
	"bilancio/internal/services"
)

func main() {
	appcli.LoadEnvFile()
	cfg := appcli.LoadAndValidateConfig()
	logger := appcli.SetupLogger(cfg, log.ComponentApp)

	repo := appcli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Event publishing is optional; without AMQP_URL writes are not announced.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		publisher = client
		logger.Info("AMQP event publishing enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP event publishing disabled - no AMQP_URL provided")
	}

	ctx, cancel := appcli.SignalContext(logger)
	defer cancel()

	settingsCache := cache.NewLRU[uuid.UUID, core.UserSettings](cfg.SettingsCacheSize, cfg.SettingsCacheTTL)
	janitor := cache.NewJanitor()
	janitor.Register("settings", settingsCache)
	janitor.Run(ctx, cfg.SettingsCacheTTL)

	clock := services.SystemClock(cfg.Location())
	expander := recurrence.Expander{Horizon: cfg.HorizonYears}
	settings := services.NewSettingsService(repo, settingsCache)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Transactions:       services.NewTransactionService(repo, settings, publisher, expander, clock),
		Stats:              services.NewStatsService(repo, settings, clock),
		Settings:           settings,
		DB:                 repo,
		Logger:             logger,
		Today:              clock,
		MutationsPerMinute: cfg.RateLimitPerMinute,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	}()

	logger.Info("Starting bilancio server",
		"port", cfg.Port,
		"db", cfg.SQLiteDBPath,
		"timezone", cfg.Timezone,
		"horizon_years", cfg.HorizonYears)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	janitor.Wait()
	logger.Info("Server stopped gracefully")
}
