package selection

import (
	"context"
	"errors"
	"strings"
	"testing"
	"weatherai/internal/catalog"
	"weatherai/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testCatalog = `{
  "countries": [
    {"isoCode": "AQ", "name": "Antarctica", "latitude": "-75", "longitude": "0"},
    {"isoCode": "GB", "name": "United Kingdom", "latitude": "54", "longitude": "-2"},
    {"isoCode": "US", "name": "United States", "latitude": "38", "longitude": "-97"}
  ],
  "states": [
    {"countryCode": "US", "isoCode": "NY", "name": "New York", "latitude": "40.7", "longitude": "-74.0"},
    {"countryCode": "US", "isoCode": "CA", "name": "California", "latitude": "36.7", "longitude": "-119.4"}
  ],
  "cities": [
    {"countryCode": "GB", "stateCode": "ENG", "name": "London", "latitude": "51.5085", "longitude": "-0.1257"},
    {"countryCode": "US", "stateCode": "NY", "name": "New York City", "latitude": "40.7128", "longitude": "-74.0060"},
    {"countryCode": "US", "stateCode": "CA", "name": "San Francisco", "latitude": "37.7749", "longitude": "-122.4194"}
  ]
}`

type fakeFetcher struct {
	forecast *models.Forecast
	err      error
	calls    int
	lat, lon float64
	hook     func()
}

func (f *fakeFetcher) FetchForecast(ctx context.Context, latitude, longitude float64) (*models.Forecast, error) {
	f.calls++
	f.lat, f.lon = latitude, longitude
	if f.hook != nil {
		f.hook()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.forecast, nil
}

type callback struct {
	calls     int
	forecast  *models.Forecast
	country   string
	city      string
	revisions []uint64
}

func (c *callback) fn(forecast *models.Forecast, country, city string, revision uint64) {
	c.calls++
	c.forecast, c.country, c.city = forecast, country, city
	c.revisions = append(c.revisions, revision)
}

func newPipeline(t *testing.T, fetcher ForecastFetcher, cb *callback, logger *zap.Logger) *Pipeline {
	t.Helper()

	cat, err := catalog.Load(strings.NewReader(testCatalog))
	require.NoError(t, err)
	return New(cat, fetcher, cb.fn, logger)
}

func TestInitialSnapshot(t *testing.T) {
	p := newPipeline(t, &fakeFetcher{}, &callback{}, nil)

	snap := p.Snapshot()
	assert.Equal(t, NoCountry, snap.State)
	assert.Nil(t, snap.Country)
	assert.False(t, snap.ShowStates)
	assert.Empty(t, snap.Cities)
	assert.Len(t, snap.Countries, 3)
}

func TestSelectCountry_SpecialCountryExposesStates(t *testing.T) {
	p := newPipeline(t, &fakeFetcher{}, &callback{}, nil)

	require.NoError(t, p.SelectCountry("US"))

	snap := p.Snapshot()
	assert.Equal(t, CountrySelected, snap.State)
	assert.True(t, snap.ShowStates)
	assert.Len(t, snap.States, 2)
	assert.Empty(t, snap.Cities)
	assert.NotNil(t, snap.Cities)
}

func TestSelectCountry_OtherCountryExposesCities(t *testing.T) {
	p := newPipeline(t, &fakeFetcher{}, &callback{}, nil)

	tests := []struct {
		code   string
		cities int
	}{
		{"GB", 1},
		{"AQ", 0},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			require.NoError(t, p.SelectCountry(tt.code))

			snap := p.Snapshot()
			assert.False(t, snap.ShowStates)
			assert.Empty(t, snap.States)
			assert.Len(t, snap.Cities, tt.cities)
		})
	}
}

func TestSelectCountry_Unknown(t *testing.T) {
	p := newPipeline(t, &fakeFetcher{}, &callback{}, nil)
	require.NoError(t, p.SelectCountry("GB"))

	err := p.SelectCountry("ZZ")
	assert.ErrorIs(t, err, ErrUnknownCountry)
	assert.Equal(t, "GB", p.Snapshot().Country.Value.IsoCode)
}

func TestSelectState(t *testing.T) {
	p := newPipeline(t, &fakeFetcher{}, &callback{}, nil)

	assert.ErrorIs(t, p.SelectState("NY"), ErrNoCountry)

	require.NoError(t, p.SelectCountry("GB"))
	assert.ErrorIs(t, p.SelectState("NY"), ErrStateNotApplicable)

	require.NoError(t, p.SelectCountry("US"))
	assert.ErrorIs(t, p.SelectState("TX"), ErrUnknownState)

	require.NoError(t, p.SelectState("ny"))
	snap := p.Snapshot()
	assert.Equal(t, StateSelected, snap.State)
	assert.Equal(t, "New York", snap.Region.Label)
	require.Len(t, snap.Cities, 1)
	assert.Equal(t, "New York City", snap.Cities[0].Value.Name)
}

func TestSelectCity_Success(t *testing.T) {
	forecast := &models.Forecast{Timezone: "America/New_York"}
	fetcher := &fakeFetcher{forecast: forecast}
	cb := &callback{}
	p := newPipeline(t, fetcher, cb, nil)

	require.NoError(t, p.SelectCountry("US"))
	assert.ErrorIs(t, p.SelectCity(context.Background(), "New York City", ""), ErrNoState)

	require.NoError(t, p.SelectState("NY"))
	require.NoError(t, p.SelectCity(context.Background(), "New York City", ""))

	assert.Equal(t, 40.7128, fetcher.lat)
	assert.Equal(t, -74.0060, fetcher.lon)
	assert.Equal(t, 1, cb.calls)
	assert.Same(t, forecast, cb.forecast)
	assert.Equal(t, "United States", cb.country)
	assert.Equal(t, "New York City", cb.city)

	snap := p.Snapshot()
	assert.Equal(t, Ready, snap.State)
	assert.Equal(t, "New York City", snap.City.Value.Name)
}

func TestSelectCity_Unknown(t *testing.T) {
	fetcher := &fakeFetcher{forecast: &models.Forecast{}}
	p := newPipeline(t, fetcher, &callback{}, nil)

	assert.ErrorIs(t, p.SelectCity(context.Background(), "London", ""), ErrNoCountry)

	require.NoError(t, p.SelectCountry("GB"))
	assert.ErrorIs(t, p.SelectCity(context.Background(), "Paris", ""), ErrUnknownCity)
	assert.Equal(t, 0, fetcher.calls)
}

func TestSelectCity_ForecastFailureLeavesStateUnchanged(t *testing.T) {
	fetcher := &fakeFetcher{forecast: &models.Forecast{}}
	cb := &callback{}
	core, logs := observer.New(zapcore.ErrorLevel)
	p := newPipeline(t, fetcher, cb, zap.New(core))

	require.NoError(t, p.SelectCountry("US"))
	require.NoError(t, p.SelectState("CA"))
	require.NoError(t, p.SelectCity(context.Background(), "San Francisco", ""))
	before := p.Snapshot()

	fetcher.err = errors.New("connection refused")
	err := p.SelectCity(context.Background(), "san francisco", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, fetcher.err)

	assert.Equal(t, before, p.Snapshot())
	assert.Equal(t, 1, cb.calls)

	entries := logs.FilterMessage("city selection aborted").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "San Francisco", entries[0].ContextMap()["city"])
}

func TestSelectCity_SupersededSelection(t *testing.T) {
	fetcher := &fakeFetcher{forecast: &models.Forecast{}}
	cb := &callback{}
	p := newPipeline(t, fetcher, cb, nil)

	require.NoError(t, p.SelectCountry("GB"))
	fetcher.hook = func() {
		// another request switches the country while the forecast is loading
		require.NoError(t, p.SelectCountry("US"))
	}

	err := p.SelectCity(context.Background(), "London", "")
	assert.ErrorIs(t, err, ErrSelectionChanged)
	assert.Equal(t, 0, cb.calls)

	snap := p.Snapshot()
	assert.Equal(t, CountrySelected, snap.State)
	assert.Nil(t, snap.City)
}

func TestReselectCountryClearsSelections(t *testing.T) {
	p := newPipeline(t, &fakeFetcher{forecast: &models.Forecast{}}, &callback{}, nil)

	require.NoError(t, p.SelectCountry("US"))
	require.NoError(t, p.SelectState("CA"))
	require.NoError(t, p.SelectCity(context.Background(), "San Francisco", ""))

	require.NoError(t, p.SelectCountry("US"))
	snap := p.Snapshot()
	assert.Equal(t, CountrySelected, snap.State)
	assert.Nil(t, snap.Region)
	assert.Nil(t, snap.City)
	assert.Empty(t, snap.Cities)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "state(9)", State(9).String())

	text, err := StateSelected.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "state_selected", string(text))
}

func TestStateUnmarshalText(t *testing.T) {
	var s State
	require.NoError(t, s.UnmarshalText([]byte("country_selected")))
	assert.Equal(t, CountrySelected, s)

	assert.Error(t, s.UnmarshalText([]byte("elsewhere")))
}

const duplicateNamesCatalog = `{
  "countries": [
    {"isoCode": "DE", "name": "Germany", "latitude": "51", "longitude": "9"}
  ],
  "cities": [
    {"countryCode": "DE", "stateCode": "RP", "name": "Neustadt", "latitude": "49.35", "longitude": "8.14"},
    {"countryCode": "DE", "stateCode": "SN", "name": "Neustadt", "latitude": "51.02", "longitude": "14.21"},
    {"countryCode": "DE", "stateCode": "BE", "name": "Berlin", "latitude": "52.52", "longitude": "13.40"}
  ]
}`

func TestSelectCity_SameNameInDifferentStates(t *testing.T) {
	cat, err := catalog.Load(strings.NewReader(duplicateNamesCatalog))
	require.NoError(t, err)
	fetcher := &fakeFetcher{forecast: &models.Forecast{}}
	p := New(cat, fetcher, (&callback{}).fn, nil)

	require.NoError(t, p.SelectCountry("DE"))
	second := p.Snapshot().Cities[1]
	require.Equal(t, "SN", second.Value.StateCode)

	require.NoError(t, p.SelectCity(context.Background(), second.Value.Name, second.Value.StateCode))
	assert.Equal(t, 51.02, fetcher.lat)
	assert.Equal(t, 14.21, fetcher.lon)
	assert.Equal(t, "SN", p.Snapshot().City.Value.StateCode)

	require.NoError(t, p.SelectCity(context.Background(), "neustadt", "rp"))
	assert.Equal(t, 49.35, fetcher.lat)
	assert.Equal(t, "RP", p.Snapshot().City.Value.StateCode)

	calls := fetcher.calls
	assert.ErrorIs(t, p.SelectCity(context.Background(), "Neustadt", ""), ErrAmbiguousCity)
	assert.ErrorIs(t, p.SelectCity(context.Background(), "Neustadt", "BY"), ErrUnknownCity)
	assert.Equal(t, calls, fetcher.calls)

	// a unique name still works without a state code
	require.NoError(t, p.SelectCity(context.Background(), "Berlin", ""))
	assert.Equal(t, 52.52, fetcher.lat)
}

func TestSelectCity_CallbackRevisionsIncrease(t *testing.T) {
	cb := &callback{}
	p := newPipeline(t, &fakeFetcher{forecast: &models.Forecast{}}, cb, nil)

	require.NoError(t, p.SelectCountry("GB"))
	require.NoError(t, p.SelectCity(context.Background(), "London", ""))
	require.NoError(t, p.SelectCountry("GB"))
	require.NoError(t, p.SelectCity(context.Background(), "London", "ENG"))

	require.Len(t, cb.revisions, 2)
	assert.Greater(t, cb.revisions[1], cb.revisions[0])
}
