package dashboard

import (
	"context"
	"sync"
	"time"
	"weatherai/internal/events"
	"weatherai/internal/metrics"
	"weatherai/internal/models"
	"weatherai/internal/narrative"
	"weatherai/internal/selection"

	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

type NarrativeStatus string

const (
	NarrativeIdle    NarrativeStatus = "idle"
	NarrativeLoading NarrativeStatus = "loading"
	NarrativeReady   NarrativeStatus = "ready"
)

// NarrativeFetcher is satisfied by *narrative.Client
type NarrativeFetcher interface {
	FetchNarrative(ctx context.Context, city, country string, forecast *models.Forecast) string
}

// Session is one user's dashboard. The forecast and the narrative slot share a
// generation number; a narrative finishing for an older generation is dropped.
type Session struct {
	ID string

	pipeline  *selection.Pipeline
	narrator  NarrativeFetcher
	publisher events.Publisher
	deps      Deps
	logger    *zap.Logger
	now       func() time.Time

	mu         sync.Mutex
	lastSeen   time.Time
	generation uint64
	applied    uint64
	forecast   *models.Forecast
	country    string
	city       string
	text       string
	status     NarrativeStatus
	cancel     context.CancelFunc
	closed     bool

	wg sync.WaitGroup
}

func newSession(id string, deps Deps, now func() time.Time) *Session {
	s := &Session{
		ID:        id,
		narrator:  deps.Narratives,
		publisher: deps.Publisher,
		deps:      deps,
		logger:    deps.Logger.With(zap.String("session", id)),
		now:       now,
		lastSeen:  now(),
		status:    NarrativeIdle,
	}
	s.pipeline = selection.New(deps.Catalog, deps.Forecasts, s.onForecast, s.logger)
	return s
}

func (s *Session) SelectCountry(code string) error {
	s.touch()
	return s.pipeline.SelectCountry(code)
}

func (s *Session) SelectState(code string) error {
	s.touch()
	return s.pipeline.SelectState(code)
}

// SelectCity blocks on the forecast fetch. On success the new forecast is
// shown immediately and its narrative is requested in the background.
func (s *Session) SelectCity(ctx context.Context, name, stateCode string) error {
	s.touch()
	return s.pipeline.SelectCity(ctx, name, stateCode)
}

// Generation returns the number of the currently displayed forecast
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Close cancels any in-flight narrative. Late completions are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
}

// Wait blocks until background work started by this session has finished
func (s *Session) Wait() {
	s.wg.Wait()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = s.now()
	s.mu.Unlock()
}

// onForecast applies a committed pick. revision orders commits, so a callback
// that arrives after a newer one has been applied is ignored.
func (s *Session) onForecast(forecast *models.Forecast, countryLabel, cityName string, revision uint64) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if revision <= s.applied {
		s.mu.Unlock()
		s.logger.Debug("ignoring out of order forecast",
			zap.String("city", cityName),
			zap.Uint64("revision", revision),
		)
		return
	}
	s.applied = revision
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	gen := s.generation
	s.forecast = forecast
	s.country = countryLabel
	s.city = cityName
	s.text = ""
	s.status = NarrativeLoading

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(2)
	s.mu.Unlock()

	s.logger.Info("city picked",
		zap.String("country", countryLabel),
		zap.String("city", cityName),
		zap.Uint64("generation", gen),
	)

	go s.runNarrative(ctx, gen, cityName, countryLabel, forecast)
	go s.publishPick(gen, cityName, countryLabel, forecast)
}

func (s *Session) runNarrative(ctx context.Context, gen uint64, city, country string, forecast *models.Forecast) {
	defer s.wg.Done()

	text := s.narrator.FetchNarrative(ctx, city, country, forecast)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || ctx.Err() != nil {
		metrics.RecordNarrative(metrics.NarrativeStale)
		s.logger.Debug("discarding stale narrative", zap.Uint64("generation", gen))
		return
	}

	if text == narrative.FallbackText {
		metrics.RecordNarrative(metrics.NarrativeFallback)
	} else {
		metrics.RecordNarrative(metrics.NarrativeSuccess)
	}
	s.text = text
	s.status = NarrativeReady
	s.cancel = nil
}

func (s *Session) publishPick(gen uint64, city, country string, forecast *models.Forecast) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err := s.publisher.PublishCityPicked(ctx, events.CityPicked{
		SessionID:   s.ID,
		Generation:  gen,
		Country:     country,
		City:        city,
		Latitude:    forecast.Latitude,
		Longitude:   forecast.Longitude,
		Timezone:    forecast.Timezone,
		WeatherCode: forecast.Current.WeatherCode,
	})
	if err != nil {
		s.logger.Warn("failed to publish city pick", zap.Error(err))
	}
}
