package dashboard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"weatherai/internal/catalog"
	"weatherai/internal/events"
	"weatherai/internal/models"
	"weatherai/internal/narrative"
	"weatherai/internal/presentation"
	"weatherai/internal/selection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `{
  "countries": [
    {"isoCode": "GB", "name": "United Kingdom", "latitude": "54", "longitude": "-2"},
    {"isoCode": "US", "name": "United States", "latitude": "38", "longitude": "-97"}
  ],
  "states": [
    {"countryCode": "US", "isoCode": "NY", "name": "New York", "latitude": "40.7", "longitude": "-74.0"}
  ],
  "cities": [
    {"countryCode": "GB", "stateCode": "ENG", "name": "London", "latitude": "51.5085", "longitude": "-0.1257"},
    {"countryCode": "GB", "stateCode": "ENG", "name": "Manchester", "latitude": "53.4809", "longitude": "-2.2374"},
    {"countryCode": "US", "stateCode": "NY", "name": "New York City", "latitude": "40.7128", "longitude": "-74.0060"}
  ]
}`

type stubForecasts struct {
	mu  sync.Mutex
	err error
}

func (f *stubForecasts) FetchForecast(ctx context.Context, latitude, longitude float64) (*models.Forecast, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	forecast := &models.Forecast{Latitude: latitude, Longitude: longitude, Timezone: "auto"}
	forecast.Current = models.Current{Time: "2024-05-01T15:45", ApparentTemperature: 55, WeatherCode: 3}
	forecast.Hourly = models.Hourly{
		Time:                []string{"2024-05-01T00:00", "2024-05-01T01:00"},
		ApparentTemperature: []float64{50, 49},
		WeatherCode:         []int{3, 3},
	}
	forecast.Daily = models.Daily{Time: []string{"2024-05-01"}, WeatherCode: []int{61}}
	return forecast, nil
}

// gatedNarratives blocks each call until its city is released
type gatedNarratives struct {
	mu      sync.Mutex
	gates   map[string]chan string
	started chan string
}

func newGatedNarratives() *gatedNarratives {
	return &gatedNarratives{gates: map[string]chan string{}, started: make(chan string, 10)}
}

func (g *gatedNarratives) gate(city string) chan string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.gates[city]; !ok {
		g.gates[city] = make(chan string, 1)
	}
	return g.gates[city]
}

func (g *gatedNarratives) FetchNarrative(ctx context.Context, city, country string, forecast *models.Forecast) string {
	gate := g.gate(city)
	g.started <- city
	select {
	case text := <-gate:
		return text
	case <-ctx.Done():
		// a canceled request still reports late, like the real client
		return <-gate
	}
}

type instantNarratives struct{ text string }

func (n instantNarratives) FetchNarrative(ctx context.Context, city, country string, forecast *models.Forecast) string {
	return n.text
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.CityPicked
}

func (p *recordingPublisher) PublishCityPicked(ctx context.Context, e events.CityPicked) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func newTestStore(t *testing.T, forecasts selection.ForecastFetcher, narratives NarrativeFetcher, publisher events.Publisher) *Store {
	t.Helper()

	cat, err := catalog.Load(strings.NewReader(testCatalog))
	require.NoError(t, err)
	return NewStore(Deps{
		Catalog:    cat,
		Forecasts:  forecasts,
		Narratives: narratives,
		Publisher:  publisher,
	})
}

func TestSession_CityPickShowsForecastAndNarrative(t *testing.T) {
	publisher := &recordingPublisher{}
	store := newTestStore(t, &stubForecasts{}, instantNarratives{text: "**Overview**\nCloudy all day."}, publisher)
	s := store.Create()

	require.NoError(t, s.SelectCountry("US"))
	require.NoError(t, s.SelectState("NY"))
	require.NoError(t, s.SelectCity(context.Background(), "New York City", ""))
	s.Wait()

	v := s.View(1024)
	assert.True(t, v.HasForecast)
	assert.Equal(t, uint64(1), v.Generation)
	require.NotNil(t, v.Current)
	assert.Equal(t, "55 °F", v.Current.Temperature)
	assert.Equal(t, presentation.CategoryCloudy, v.Current.Category)
	assert.Equal(t, "New York City", v.Current.City)
	assert.Equal(t, "United States", v.Current.Country)
	assert.Len(t, v.Hourly, 2)
	assert.Len(t, v.Daily, 1)
	assert.Equal(t, presentation.Dimensions{Width: 600, Height: 300}, v.Chart)

	assert.Equal(t, NarrativeReady, v.Narrative.Status)
	assert.Equal(t, []presentation.NarrativeBlock{
		{Kind: presentation.BlockHeading, Text: "Overview"},
		{Kind: presentation.BlockParagraph, Text: "Cloudy all day."},
	}, v.Narrative.Blocks)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, "New York City", publisher.events[0].City)
	assert.Equal(t, s.ID, publisher.events[0].SessionID)
	assert.Equal(t, 3, publisher.events[0].WeatherCode)
}

func TestSession_FallbackNarrativeIsShown(t *testing.T) {
	store := newTestStore(t, &stubForecasts{}, instantNarratives{text: narrative.FallbackText}, nil)
	s := store.Create()

	require.NoError(t, s.SelectCountry("GB"))
	require.NoError(t, s.SelectCity(context.Background(), "London", ""))
	s.Wait()

	nv := s.Narrative()
	assert.Equal(t, NarrativeReady, nv.Status)
	assert.Equal(t, narrative.FallbackText, nv.Text)
}

func TestSession_StaleNarrativeIsDiscarded(t *testing.T) {
	narratives := newGatedNarratives()
	store := newTestStore(t, &stubForecasts{}, narratives, nil)
	s := store.Create()

	require.NoError(t, s.SelectCountry("GB"))
	require.NoError(t, s.SelectCity(context.Background(), "London", ""))
	assert.Equal(t, "London", <-narratives.started)
	assert.Equal(t, NarrativeLoading, s.Narrative().Status)

	require.NoError(t, s.SelectCity(context.Background(), "Manchester", ""))
	assert.Equal(t, "Manchester", <-narratives.started)

	// the newer narrative finishes first, then the stale one arrives
	narratives.gate("Manchester") <- "Manchester narrative"
	require.Eventually(t, func() bool { return s.Narrative().Status == NarrativeReady }, time.Second, 5*time.Millisecond)
	narratives.gate("London") <- "London narrative"
	s.Wait()

	nv := s.Narrative()
	assert.Equal(t, uint64(2), nv.Generation)
	assert.Equal(t, "Manchester narrative", nv.Text)
	assert.Equal(t, "Manchester", s.View(0).Current.City)
}

func TestSession_LoadingUntilMatchingNarrative(t *testing.T) {
	narratives := newGatedNarratives()
	store := newTestStore(t, &stubForecasts{}, narratives, nil)
	s := store.Create()

	require.NoError(t, s.SelectCountry("GB"))
	require.NoError(t, s.SelectCity(context.Background(), "London", ""))
	<-narratives.started
	require.NoError(t, s.SelectCity(context.Background(), "Manchester", ""))
	<-narratives.started

	narratives.gate("London") <- "London narrative"
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, NarrativeLoading, s.Narrative().Status)

	narratives.gate("Manchester") <- "Manchester narrative"
	s.Wait()
	assert.Equal(t, "Manchester narrative", s.Narrative().Text)
}

func TestSession_OlderCommitArrivingLateIsIgnored(t *testing.T) {
	publisher := &recordingPublisher{}
	store := newTestStore(t, &stubForecasts{}, instantNarratives{text: "ok"}, publisher)
	s := store.Create()

	cat, err := catalog.Load(strings.NewReader(testCatalog))
	require.NoError(t, err)

	// hold back the London callback until Manchester has been applied
	reached := make(chan struct{})
	release := make(chan struct{})
	s.pipeline = selection.New(cat, &stubForecasts{}, func(forecast *models.Forecast, country, city string, revision uint64) {
		if city == "London" {
			close(reached)
			<-release
		}
		s.onForecast(forecast, country, city, revision)
	}, nil)

	require.NoError(t, s.SelectCountry("GB"))
	done := make(chan error, 1)
	go func() {
		done <- s.SelectCity(context.Background(), "London", "ENG")
	}()
	<-reached

	require.NoError(t, s.SelectCountry("GB"))
	require.NoError(t, s.SelectCity(context.Background(), "Manchester", "ENG"))
	close(release)
	require.NoError(t, <-done)
	s.Wait()

	v := s.View(0)
	require.NotNil(t, v.Selection.City)
	assert.Equal(t, "Manchester", v.Selection.City.Value.Name)
	require.NotNil(t, v.Current)
	assert.Equal(t, "Manchester", v.Current.City)
	assert.Equal(t, 53.4809, s.forecast.Latitude)
	assert.Equal(t, uint64(1), v.Generation)
	assert.Len(t, publisher.events, 1)
}

func TestSession_ForecastFailureKeepsDisplay(t *testing.T) {
	forecasts := &stubForecasts{}
	store := newTestStore(t, forecasts, instantNarratives{text: "ok"}, nil)
	s := store.Create()

	require.NoError(t, s.SelectCountry("GB"))
	require.NoError(t, s.SelectCity(context.Background(), "London", ""))
	s.Wait()
	before := s.View(1024)

	forecasts.mu.Lock()
	forecasts.err = errors.New("network down")
	forecasts.mu.Unlock()

	err := s.SelectCity(context.Background(), "Manchester", "")
	require.Error(t, err)

	assert.Equal(t, before, s.View(1024))
}

func TestSession_EmptyView(t *testing.T) {
	store := newTestStore(t, &stubForecasts{}, instantNarratives{}, nil)
	s := store.Create()

	v := s.View(320)
	assert.False(t, v.HasForecast)
	assert.Nil(t, v.Current)
	assert.Empty(t, v.Hourly)
	assert.Equal(t, NarrativeIdle, v.Narrative.Status)
	assert.Equal(t, selection.NoCountry, v.Selection.State)
	assert.Equal(t, presentation.Dimensions{Width: 300, Height: 200}, v.Chart)
}

func TestStore_GetDelete(t *testing.T) {
	store := newTestStore(t, &stubForecasts{}, instantNarratives{}, nil)
	s := store.Create()
	assert.Equal(t, 1, store.Len())

	got, err := store.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, store.Delete(s.ID))
	_, err = store.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, store.Delete(s.ID), ErrSessionNotFound)
}

func TestStore_DeleteDiscardsInFlightNarrative(t *testing.T) {
	narratives := newGatedNarratives()
	store := newTestStore(t, &stubForecasts{}, narratives, nil)
	s := store.Create()

	require.NoError(t, s.SelectCountry("GB"))
	require.NoError(t, s.SelectCity(context.Background(), "London", ""))
	<-narratives.started

	require.NoError(t, store.Delete(s.ID))
	narratives.gate("London") <- "too late"
	s.Wait()

	assert.Equal(t, NarrativeLoading, s.Narrative().Status)
}

func TestStore_Sweep(t *testing.T) {
	store := newTestStore(t, &stubForecasts{}, instantNarratives{}, nil)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	stale := store.Create()
	now = now.Add(20 * time.Minute)
	fresh := store.Create()
	now = now.Add(15 * time.Minute)

	removed := store.Sweep(30 * time.Minute)
	assert.Equal(t, 1, removed)

	_, err := store.Get(stale.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.Get(fresh.ID)
	assert.NoError(t, err)
}

func TestStore_RunSweeperStops(t *testing.T) {
	store := newTestStore(t, &stubForecasts{}, instantNarratives{}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		store.RunSweeper(ctx, time.Millisecond, time.Hour)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunSweeper did not stop after cancel")
	}
}

func TestStore_Close(t *testing.T) {
	store := newTestStore(t, &stubForecasts{}, instantNarratives{}, nil)
	store.Create()
	store.Create()

	store.Close()
	assert.Equal(t, 0, store.Len())
}
