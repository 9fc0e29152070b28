// Package selection implements the country → state → city picker. Picking a
// city fetches its forecast and only then commits the selection, so a failed
// fetch leaves the previous selection on screen.
package selection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"weatherai/internal/catalog"
	"weatherai/internal/models"

	"go.uber.org/zap"
)

var (
	ErrUnknownCountry     = errors.New("unknown country")
	ErrStateNotApplicable = errors.New("state selection is not available for this country")
	ErrUnknownState       = errors.New("unknown state")
	ErrUnknownCity        = errors.New("unknown city")
	ErrAmbiguousCity      = errors.New("city matches more than one option")
	ErrNoCountry          = errors.New("no country selected")
	ErrNoState            = errors.New("no state selected")
	ErrSelectionChanged   = errors.New("selection changed while the forecast was loading")
)

type State int

const (
	NoCountry State = iota
	CountrySelected
	StateSelected
	Ready
)

func (s State) String() string {
	switch s {
	case NoCountry:
		return "no_country"
	case CountrySelected:
		return "country_selected"
	case StateSelected:
		return "state_selected"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for _, candidate := range []State{NoCountry, CountrySelected, StateSelected, Ready} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown selection state %q", text)
}

// ForecastFetcher is satisfied by *api.OpenMeteoClient
type ForecastFetcher interface {
	FetchForecast(ctx context.Context, latitude, longitude float64) (*models.Forecast, error)
}

// ForecastCallback receives the forecast of a freshly committed city.
// revision grows with every commit; callbacks may arrive out of order, so a
// receiver keeps the highest revision it has applied and ignores older ones.
type ForecastCallback func(forecast *models.Forecast, countryLabel, cityName string, revision uint64)

// Snapshot is a copy of the pipeline state for rendering
type Snapshot struct {
	State      State              `json:"state"`
	Country    *models.GeoOption  `json:"country,omitempty"`
	Region     *models.GeoOption  `json:"region,omitempty"`
	City       *models.GeoOption  `json:"city,omitempty"`
	ShowStates bool               `json:"showStates"`
	Countries  []models.GeoOption `json:"-"`
	States     []models.GeoOption `json:"states"`
	Cities     []models.GeoOption `json:"cities"`
}

// Pipeline is safe for concurrent use. Selections are serialized; a forecast
// fetch does not hold the lock, and its result is dropped if the selection
// moved on in the meantime.
type Pipeline struct {
	catalog    *catalog.Catalog
	fetcher    ForecastFetcher
	onForecast ForecastCallback
	logger     *zap.Logger

	mu       sync.Mutex
	revision uint64
	state    State
	country  *models.GeoOption
	region   *models.GeoOption
	city     *models.GeoOption
	states   []models.GeoOption
	cities   []models.GeoOption
}

func New(cat *catalog.Catalog, fetcher ForecastFetcher, onForecast ForecastCallback, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		catalog:    cat,
		fetcher:    fetcher,
		onForecast: onForecast,
		logger:     logger,
		states:     []models.GeoOption{},
		cities:     []models.GeoOption{},
	}
}

// SelectCountry resets the state and city and derives the next option list
func (p *Pipeline) SelectCountry(code string) error {
	country, ok := p.catalog.Country(code)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCountry, code)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.revision++
	p.country = &country
	p.region = nil
	p.city = nil
	p.state = CountrySelected

	if isSpecial(country.Value.IsoCode) {
		p.states = p.catalog.ListStates(country.Value.IsoCode)
		p.cities = []models.GeoOption{}
	} else {
		p.states = []models.GeoOption{}
		p.cities = p.catalog.ListCities(country.Value.IsoCode, "")
	}

	p.logger.Debug("country selected",
		zap.String("country", country.Value.IsoCode),
		zap.Int("states", len(p.states)),
		zap.Int("cities", len(p.cities)),
	)
	return nil
}

// SelectState scopes the city list to one state of the special country
func (p *Pipeline) SelectState(code string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.country == nil {
		return ErrNoCountry
	}
	if !isSpecial(p.country.Value.IsoCode) {
		return fmt.Errorf("%w: %s", ErrStateNotApplicable, p.country.Value.IsoCode)
	}

	var region *models.GeoOption
	for i := range p.states {
		if strings.EqualFold(p.states[i].Value.IsoCode, code) {
			opt := p.states[i]
			region = &opt
			break
		}
	}
	if region == nil {
		return fmt.Errorf("%w: %q", ErrUnknownState, code)
	}

	p.revision++
	p.region = region
	p.city = nil
	p.state = StateSelected
	p.cities = p.catalog.ListCities(p.country.Value.IsoCode, region.Value.IsoCode)
	return nil
}

// SelectCity fetches the forecast for a city from the current options. The
// city is matched by name and, when stateCode is set, by its state code; a
// name shared by several options needs the state code. On success the city is
// committed, the pipeline moves to Ready and the callback runs. On failure
// nothing changes and the error is returned.
func (p *Pipeline) SelectCity(ctx context.Context, name, stateCode string) error {
	p.mu.Lock()
	if p.country == nil {
		p.mu.Unlock()
		return ErrNoCountry
	}
	if isSpecial(p.country.Value.IsoCode) && p.region == nil {
		p.mu.Unlock()
		return ErrNoState
	}

	city, err := p.findCity(name, stateCode)
	if err != nil {
		p.mu.Unlock()
		return err
	}

	revision := p.revision
	countryLabel := p.country.Label
	p.mu.Unlock()

	forecast, err := p.fetcher.FetchForecast(ctx, city.Value.Latitude, city.Value.Longitude)
	if err != nil {
		p.logger.Error("city selection aborted",
			zap.String("country", countryLabel),
			zap.String("city", city.Value.Name),
			zap.Error(err),
		)
		return fmt.Errorf("failed to load forecast for %s: %w", city.Value.Name, err)
	}

	p.mu.Lock()
	if p.revision != revision {
		p.mu.Unlock()
		p.logger.Info("discarding forecast for superseded selection", zap.String("city", city.Value.Name))
		return ErrSelectionChanged
	}
	p.revision++
	committed := p.revision
	p.city = city
	p.state = Ready
	p.mu.Unlock()

	if p.onForecast != nil {
		p.onForecast(forecast, countryLabel, city.Value.Name, committed)
	}
	return nil
}

// findCity must be called with p.mu held
func (p *Pipeline) findCity(name, stateCode string) (*models.GeoOption, error) {
	var found *models.GeoOption
	for i := range p.cities {
		v := p.cities[i].Value
		if !strings.EqualFold(v.Name, name) {
			continue
		}
		if stateCode != "" && !strings.EqualFold(v.StateCode, stateCode) {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: %q", ErrAmbiguousCity, name)
		}
		opt := p.cities[i]
		found = &opt
	}
	if found == nil {
		if stateCode != "" {
			return nil, fmt.Errorf("%w: %q in %s", ErrUnknownCity, name, stateCode)
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownCity, name)
	}
	return found, nil
}

// Snapshot copies the current state
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := Snapshot{
		State:     p.state,
		Country:   copyOption(p.country),
		Region:    copyOption(p.region),
		City:      copyOption(p.city),
		Countries: p.catalog.ListCountries(),
		States:    append([]models.GeoOption{}, p.states...),
		Cities:    append([]models.GeoOption{}, p.cities...),
	}
	snap.ShowStates = p.country != nil && isSpecial(p.country.Value.IsoCode)
	return snap
}

func isSpecial(code string) bool {
	return strings.EqualFold(code, catalog.SpecialCountry)
}

func copyOption(opt *models.GeoOption) *models.GeoOption {
	if opt == nil {
		return nil
	}
	c := *opt
	return &c
}
