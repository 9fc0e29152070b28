package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"weatherai/internal/metrics"
	"weatherai/internal/models"

	"go.uber.org/zap"
)

const DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

// maxErrorBody bounds how much of an error response is kept on NetworkError
const maxErrorBody = 512

// Fields requested for every dashboard forecast
var (
	CurrentFields = []string{
		"temperature_2m", "relative_humidity_2m", "apparent_temperature", "is_day",
		"precipitation", "rain", "showers", "snowfall", "weather_code", "cloud_cover",
		"pressure_msl", "surface_pressure", "wind_speed_10m", "wind_direction_10m",
		"wind_gusts_10m",
	}
	HourlyFields = []string{
		"temperature_2m", "relative_humidity_2m", "dew_point_2m", "apparent_temperature",
		"precipitation_probability", "precipitation", "rain", "showers", "snowfall",
		"snow_depth", "weather_code", "wind_speed_10m", "temperature_80m",
	}
	DailyFields = []string{
		"weather_code", "temperature_2m_max", "temperature_2m_min",
		"apparent_temperature_max", "apparent_temperature_min", "sunrise", "sunset",
		"daylight_duration", "sunshine_duration", "uv_index_max", "rain_sum",
	}
)

// NetworkError is returned when the forecast endpoint cannot be reached or
// answers with a non-success status. StatusCode is 0 for transport failures.
type NetworkError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API error: status %d, body: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("failed to fetch forecast: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// OpenMeteoClient is a client for the Open-Meteo API
type OpenMeteoClient struct {
	client  *http.Client
	baseURL string
	logger  *zap.Logger
}

type ForecastParams struct {
	Latitude          float64
	Longitude         float64
	CurrentFields     []string
	HourlyFields      []string
	DailyFields       []string
	Timezone          string
	TemperatureUnit   string
	WindSpeedUnit     string
	PrecipitationUnit string
	PastDays          int // how many days in the past you want to get
	ForecastDays      int // how many days in the future, 0 keeps the API default
}

// NewOpenMeteoClient creates a new Open-Meteo API client. An empty baseURL
// selects the public endpoint.
func NewOpenMeteoClient(baseURL string, logger *zap.Logger) *OpenMeteoClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenMeteoClient{
		client:  &http.Client{},
		baseURL: baseURL,
		logger:  logger,
	}
}

// FetchForecast fetches the current, hourly and daily forecast used by the
// dashboard, in imperial units and the location's own timezone.
func (c *OpenMeteoClient) FetchForecast(ctx context.Context, latitude, longitude float64) (*models.Forecast, error) {
	forecast, err := c.GetForecast(ctx, ForecastParams{
		Latitude:          latitude,
		Longitude:         longitude,
		CurrentFields:     CurrentFields,
		HourlyFields:      HourlyFields,
		DailyFields:       DailyFields,
		Timezone:          "auto",
		TemperatureUnit:   "fahrenheit",
		WindSpeedUnit:     "mph",
		PrecipitationUnit: "inch",
	})
	if err != nil {
		c.logger.Error("forecast request failed",
			zap.Float64("latitude", latitude),
			zap.Float64("longitude", longitude),
			zap.Error(err),
		)
		return nil, err
	}
	return forecast, nil
}

// GetForecast fetches forecast data for arbitrary parameters. Every failure is
// reported as a *NetworkError.
func (c *OpenMeteoClient) GetForecast(ctx context.Context, forecastParams ForecastParams) (*models.Forecast, error) {
	url := c.BuildURL(forecastParams)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("failed to build request: %w", err)}
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RecordUpstream(metrics.UpstreamForecast, 0, time.Since(start), err)
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		netErr := &NetworkError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
		metrics.RecordUpstream(metrics.UpstreamForecast, resp.StatusCode, time.Since(start), netErr)
		return nil, netErr
	}

	var forecast models.Forecast
	if err := json.NewDecoder(resp.Body).Decode(&forecast); err != nil {
		metrics.RecordUpstream(metrics.UpstreamForecast, resp.StatusCode, time.Since(start), err)
		return nil, &NetworkError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	metrics.RecordUpstream(metrics.UpstreamForecast, resp.StatusCode, time.Since(start), nil)

	c.logger.Debug("forecast fetched",
		zap.Float64("latitude", forecastParams.Latitude),
		zap.Float64("longitude", forecastParams.Longitude),
		zap.String("timezone", forecast.Timezone),
	)

	return &forecast, nil
}

// Builds URL for OpenMeteoClient request
func (c *OpenMeteoClient) BuildURL(forecastParams ForecastParams) string {
	if forecastParams.Timezone == "" {
		forecastParams.Timezone = "auto"
	}

	if forecastParams.TemperatureUnit == "" {
		forecastParams.TemperatureUnit = "fahrenheit"
	}

	url := fmt.Sprintf("%s?latitude=%.4f&longitude=%.4f&timezone=%s&temperature_unit=%s",
		c.baseURL, forecastParams.Latitude, forecastParams.Longitude, forecastParams.Timezone, forecastParams.TemperatureUnit)

	if forecastParams.WindSpeedUnit != "" {
		url += "&wind_speed_unit=" + forecastParams.WindSpeedUnit
	}

	if forecastParams.PrecipitationUnit != "" {
		url += "&precipitation_unit=" + forecastParams.PrecipitationUnit
	}

	if forecastParams.PastDays > 0 {
		url += fmt.Sprintf("&past_days=%d", forecastParams.PastDays)
	}

	if forecastParams.ForecastDays > 0 {
		url += fmt.Sprintf("&forecast_days=%d", forecastParams.ForecastDays)
	}

	if len(forecastParams.CurrentFields) > 0 {
		url += "&current=" + strings.Join(forecastParams.CurrentFields, ",")
	}

	if len(forecastParams.DailyFields) > 0 {
		url += "&daily=" + strings.Join(forecastParams.DailyFields, ",")
	}

	if len(forecastParams.HourlyFields) > 0 {
		url += "&hourly=" + strings.Join(forecastParams.HourlyFields, ",")
	}

	return url
}
