package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrUnknownEvent is returned for stream entries that are not city picks
var ErrUnknownEvent = errors.New("unknown event type")

// GroupClient is the part of *redis.Client used by a consumer group reader
type GroupClient interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

// HandlerFunc processes one decoded event. Returning an error leaves the
// entry pending so it is redelivered to the group.
type HandlerFunc func(ctx context.Context, event CityPicked) error

type ConsumerConfig struct {
	Stream   string
	Group    string
	Consumer string
	Count    int64
	Block    time.Duration
}

// Consumer reads city picks from a stream through a consumer group
type Consumer struct {
	client GroupClient
	cfg    ConsumerConfig
	handle HandlerFunc
	logger *zap.Logger
}

func NewConsumer(client GroupClient, cfg ConsumerConfig, handle HandlerFunc, logger *zap.Logger) *Consumer {
	if cfg.Count <= 0 {
		cfg.Count = 10
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{client: client, cfg: cfg, handle: handle, logger: logger}
}

// EnsureGroup creates the consumer group and the stream when missing
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s: %w", c.cfg.Group, err)
	}
	return nil
}

// Run reads until ctx is cancelled
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := c.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("stream read failed", zap.String("stream", c.cfg.Stream), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Poll reads and handles one batch of entries
func (c *Consumer) Poll(ctx context.Context) error {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.Count,
		Block:    c.cfg.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			c.process(ctx, msg)
		}
	}
	return nil
}

func (c *Consumer) process(ctx context.Context, msg redis.XMessage) {
	event, err := Decode(msg)
	if err != nil {
		// Entries that can never decode are acknowledged so they do not
		// stay pending forever.
		c.logger.Warn("dropping stream entry", zap.String("entry_id", msg.ID), zap.Error(err))
		c.ack(ctx, msg.ID)
		return
	}

	if err := c.handle(ctx, event); err != nil {
		c.logger.Warn("failed to handle event", zap.String("entry_id", msg.ID), zap.Error(err))
		return
	}
	c.ack(ctx, msg.ID)
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, id).Err(); err != nil {
		c.logger.Warn("failed to acknowledge entry", zap.String("entry_id", id), zap.Error(err))
	}
}

// Decode turns a stream entry written by RedisPublisher back into an event
func Decode(msg redis.XMessage) (CityPicked, error) {
	var event CityPicked

	if typ, _ := msg.Values["type"].(string); typ != TypeCityPicked {
		return event, fmt.Errorf("%w: %q", ErrUnknownEvent, typ)
	}
	data, ok := msg.Values["data"].(string)
	if !ok {
		return event, fmt.Errorf("entry %s has no data field", msg.ID)
	}
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return event, fmt.Errorf("failed to decode entry %s: %w", msg.ID, err)
	}
	return event, nil
}
