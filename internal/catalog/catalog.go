// Package catalog holds the static country/state/city dataset used by the
// location picker. A Catalog is built once at startup and never mutated, so it
// can be shared between goroutines without locking.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"weatherai/internal/models"
)

// SpecialCountry is the only country whose cities are picked through a state
// selector.
const SpecialCountry = "US"

//go:embed catalog.json
var embeddedCatalog []byte

type countryRecord struct {
	IsoCode   string `json:"isoCode"`
	Name      string `json:"name"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

type stateRecord struct {
	CountryCode string `json:"countryCode"`
	IsoCode     string `json:"isoCode"`
	Name        string `json:"name"`
	Latitude    string `json:"latitude"`
	Longitude   string `json:"longitude"`
}

type cityRecord struct {
	CountryCode string `json:"countryCode"`
	StateCode   string `json:"stateCode"`
	Name        string `json:"name"`
	Latitude    string `json:"latitude"`
	Longitude   string `json:"longitude"`
}

type dataset struct {
	Countries []countryRecord `json:"countries"`
	States    []stateRecord   `json:"states"`
	Cities    []cityRecord    `json:"cities"`
}

// Catalog answers country/state/city lookups over an immutable dataset
type Catalog struct {
	countries []models.GeoOption
	byCode    map[string]models.GeoOption
	states    map[string][]stateRecord
	cities    map[string][]cityRecord
}

// Default returns the catalog compiled into the binary
func Default() (*Catalog, error) {
	return Load(bytes.NewReader(embeddedCatalog))
}

// LoadFile reads a catalog from a JSON file on disk
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", path, err)
	}
	defer f.Close()

	return Load(f)
}

// Load builds a catalog from its JSON representation
func Load(r io.Reader) (*Catalog, error) {
	var ds dataset
	if err := json.NewDecoder(r).Decode(&ds); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	c := &Catalog{
		countries: make([]models.GeoOption, 0, len(ds.Countries)),
		byCode:    make(map[string]models.GeoOption, len(ds.Countries)),
		states:    make(map[string][]stateRecord),
		cities:    make(map[string][]cityRecord),
	}

	for _, rec := range ds.Countries {
		opt := models.GeoOption{
			Label: rec.Name,
			Value: models.GeoValue{
				Latitude:  parseCoordinate(rec.Latitude),
				Longitude: parseCoordinate(rec.Longitude),
				IsoCode:   rec.IsoCode,
			},
		}
		c.countries = append(c.countries, opt)
		c.byCode[strings.ToUpper(rec.IsoCode)] = opt
	}

	sort.SliceStable(c.countries, func(i, j int) bool {
		return c.countries[i].Label < c.countries[j].Label
	})

	for _, rec := range ds.States {
		key := strings.ToUpper(rec.CountryCode)
		c.states[key] = append(c.states[key], rec)
	}

	for _, rec := range ds.Cities {
		key := strings.ToUpper(rec.CountryCode)
		c.cities[key] = append(c.cities[key], rec)
	}

	return c, nil
}

// ListCountries returns every country ordered by name
func (c *Catalog) ListCountries() []models.GeoOption {
	out := make([]models.GeoOption, len(c.countries))
	copy(out, c.countries)
	return out
}

// Country looks up a single country by ISO code
func (c *Catalog) Country(code string) (models.GeoOption, bool) {
	opt, ok := c.byCode[strings.ToUpper(code)]
	return opt, ok
}

// ListStates returns the states of the special country. Any other country
// yields an empty list.
func (c *Catalog) ListStates(countryCode string) []models.GeoOption {
	key := strings.ToUpper(countryCode)
	if key != SpecialCountry {
		return []models.GeoOption{}
	}

	records := c.states[key]
	out := make([]models.GeoOption, 0, len(records))
	for _, rec := range records {
		out = append(out, models.GeoOption{
			Label: rec.Name,
			Value: models.GeoValue{
				Latitude:  parseCoordinate(rec.Latitude),
				Longitude: parseCoordinate(rec.Longitude),
				IsoCode:   rec.IsoCode,
			},
		})
	}
	return out
}

// ListCities returns the cities of a country, narrowed to one state when
// stateCode is not empty.
func (c *Catalog) ListCities(countryCode, stateCode string) []models.GeoOption {
	records := c.cities[strings.ToUpper(countryCode)]
	out := make([]models.GeoOption, 0, len(records))
	for _, rec := range records {
		if stateCode != "" && !strings.EqualFold(rec.StateCode, stateCode) {
			continue
		}
		out = append(out, models.GeoOption{
			Label: rec.Name,
			Value: models.GeoValue{
				Latitude:    parseCoordinate(rec.Latitude),
				Longitude:   parseCoordinate(rec.Longitude),
				CountryCode: rec.CountryCode,
				StateCode:   rec.StateCode,
				Name:        rec.Name,
			},
		})
	}
	return out
}

// parseCoordinate falls back to 0 for missing or malformed values
func parseCoordinate(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
