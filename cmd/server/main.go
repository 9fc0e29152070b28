package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"weatherai/internal/api"
	"weatherai/internal/catalog"
	"weatherai/internal/config"
	"weatherai/internal/dashboard"
	"weatherai/internal/events"
	"weatherai/internal/logging"
	"weatherai/internal/narrative"
	"weatherai/internal/server"
	"weatherai/internal/weathercode"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "./config.yaml", "path to the YAML config file")
	flag.Parse()

	// A missing .env is fine; the environment may already be populated
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Failed to load .env: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	cat, err := loadCatalog(cfg.Catalog.Path)
	if err != nil {
		return err
	}

	table, err := weathercode.Default()
	if err != nil {
		return fmt.Errorf("failed to load weather codes: %w", err)
	}

	forecasts := api.NewOpenMeteoClient(cfg.Forecast.BaseURL, logger)

	narrator, err := narrative.NewClient(narrative.Config{
		BaseURL:           cfg.Narrative.BaseURL,
		APIKey:            cfg.Narrative.APIKey,
		Model:             cfg.Narrative.Model,
		RequestsPerSecond: cfg.Narrative.RequestsPerSecond,
		Burst:             cfg.Narrative.Burst,
	}, logger)
	if err != nil {
		return err
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		publisher = events.NewRedisPublisher(redisClient, cfg.Redis.Stream, logger)
		logger.Info("publishing city picks", zap.String("stream", cfg.Redis.Stream))
	}

	sessions := dashboard.NewStore(dashboard.Deps{
		Catalog:    cat,
		Table:      table,
		Forecasts:  forecasts,
		Narratives: narrator,
		Publisher:  publisher,
		Logger:     logger,
	})
	defer sessions.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sessions.RunSweeper(ctx, cfg.Server.SweepInterval, cfg.Server.SessionIdleTimeout)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.NewServer(cat, forecasts, sessions, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(path)
}
