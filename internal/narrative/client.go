// Package narrative asks a hosted chat completion model for a plain-language
// weather summary and tourist recommendation. It never fails: any problem is
// reported to the caller as FallbackText.
package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"weatherai/internal/metrics"
	"weatherai/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.together.xyz/v1"
	DefaultModel   = "meta-llama/Llama-Vision-Free"

	// FallbackText replaces the narrative whenever it cannot be produced
	FallbackText = "Failed to retrieve the weather summary and recommendations."
)

// ErrMissingAPIKey is returned by NewClient when no API key is configured
var ErrMissingAPIKey = errors.New("narrative: API key is required")

type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	RequestsPerSecond float64 // <= 0 disables limiting
	Burst             int
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message *chatMessage `json:"message"`
	} `json:"choices"`
}

// Client talks to an OpenAI-compatible chat completions endpoint
type Client struct {
	http    *resty.Client
	model   string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient validates cfg and builds a client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		http:    httpClient,
		model:   cfg.Model,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}, nil
}

// BuildPrompt renders the single user message sent to the model
func BuildPrompt(city, country string, forecast *models.Forecast) (string, error) {
	data, err := json.Marshal(forecast)
	if err != nil {
		return "", fmt.Errorf("failed to encode forecast: %w", err)
	}
	return "Summary the weather in " + city + ", " + country +
		" with the following weather data: " + string(data) +
		". Give some recommendation for tourist about this city. Limit everything in 500 words.", nil
}

// FetchNarrative returns the model's answer, or FallbackText on any failure
// including cancellation of ctx.
func (c *Client) FetchNarrative(ctx context.Context, city, country string, forecast *models.Forecast) string {
	text, err := c.complete(ctx, city, country, forecast)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.logger.Debug("narrative request canceled", zap.String("city", city))
		} else {
			c.logger.Warn("narrative unavailable, using fallback",
				zap.String("city", city),
				zap.String("country", country),
				zap.Error(err),
			)
		}
		return FallbackText
	}
	return text
}

func (c *Client) complete(ctx context.Context, city, country string, forecast *models.Forecast) (string, error) {
	prompt, err := BuildPrompt(city, country, forecast)
	if err != nil {
		return "", err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait canceled: %w", err)
	}

	var result chatResponse
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:    c.model,
			Messages: []chatMessage{{Role: "user", Content: prompt}},
		}).
		SetResult(&result).
		Post("/chat/completions")
	if err != nil {
		metrics.RecordUpstream(metrics.UpstreamNarrative, 0, time.Since(start), err)
		return "", fmt.Errorf("failed to call chat completions: %w", err)
	}
	metrics.RecordUpstream(metrics.UpstreamNarrative, resp.StatusCode(), time.Since(start), nil)

	if resp.IsError() {
		return "", fmt.Errorf("API error: status %d, body: %s", resp.StatusCode(), truncate(resp.String(), 512))
	}

	if len(result.Choices) == 0 || result.Choices[0].Message == nil || result.Choices[0].Message.Content == "" {
		return "", errors.New("response contained no message content")
	}

	return result.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
