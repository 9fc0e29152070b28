// Package events publishes dashboard activity to a Redis stream for
// downstream consumers. Publishing is best effort and never blocks a user
// request on failure.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const TypeCityPicked = "city_picked"

// CityPicked is emitted after a city's forecast has been committed to a session
type CityPicked struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Generation  uint64    `json:"generation"`
	Country     string    `json:"country"`
	City        string    `json:"city"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Timezone    string    `json:"timezone"`
	WeatherCode int       `json:"weather_code"`
	PickedAt    time.Time `json:"picked_at"`
}

type Publisher interface {
	PublishCityPicked(ctx context.Context, event CityPicked) error
}

// StreamClient is the part of *redis.Client used for publishing
type StreamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

type RedisPublisher struct {
	client StreamClient
	stream string
	logger *zap.Logger
}

func NewRedisPublisher(client StreamClient, stream string, logger *zap.Logger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{client: client, stream: stream, logger: logger}
}

// PublishCityPicked serializes the event and appends it to the stream.
// Missing ID and PickedAt are filled in.
func (p *RedisPublisher) PublishCityPicked(ctx context.Context, event CityPicked) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.PickedAt.IsZero() {
		event.PickedAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"type": TypeCityPicked,
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", p.stream, err)
	}

	p.logger.Debug("published event",
		zap.String("stream", p.stream),
		zap.String("entry_id", id),
		zap.String("city", event.City),
	)
	return nil
}

// Nop discards every event
type Nop struct{}

func (Nop) PublishCityPicked(context.Context, CityPicked) error { return nil }
