package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"weatherai/internal/config"
	"weatherai/internal/events"
	"weatherai/internal/logging"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// picks tails the city pick stream published by the dashboard and logs each
// entry as a structured line.
func main() {
	configPath := flag.String("config", "./config.yaml", "path to the YAML config file")
	group := flag.String("group", "weatherai_pick_loggers", "consumer group name")
	consumer := flag.String("consumer", hostname(), "consumer name within the group")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader := events.NewConsumer(redisClient, events.ConsumerConfig{
		Stream:   cfg.Redis.Stream,
		Group:    *group,
		Consumer: *consumer,
	}, func(ctx context.Context, event events.CityPicked) error {
		logger.Info("city picked",
			zap.String("id", event.ID),
			zap.String("session", event.SessionID),
			zap.Uint64("generation", event.Generation),
			zap.String("country", event.Country),
			zap.String("city", event.City),
			zap.Float64("latitude", event.Latitude),
			zap.Float64("longitude", event.Longitude),
			zap.Int("weather_code", event.WeatherCode),
			zap.Time("picked_at", event.PickedAt),
		)
		return nil
	}, logger)

	if err := reader.EnsureGroup(ctx); err != nil {
		logger.Fatal("failed to prepare consumer group", zap.Error(err))
	}

	logger.Info("reading city picks", zap.String("stream", cfg.Redis.Stream), zap.String("group", *group))
	if err := reader.Run(ctx); err != nil {
		logger.Error("consumer stopped", zap.Error(err))
	}
	logger.Info("pick logger stopped")
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "picks-1"
	}
	return name
}
