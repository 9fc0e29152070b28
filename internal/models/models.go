package models

import "strings"

// Forecast represents weather forecast data from Open-Meteo API.
// Missing fields decode to their zero values.
type Forecast struct {
	Latitude         float64      `json:"latitude"`
	Longitude        float64      `json:"longitude"`
	Timezone         string       `json:"timezone"`
	UTCOffsetSeconds int          `json:"utc_offset_seconds"`
	Elevation        float64      `json:"elevation"`
	CurrentUnits     CurrentUnits `json:"current_units"`
	Current          Current      `json:"current"`
	HourlyUnits      HourlyUnits  `json:"hourly_units"`
	Hourly           Hourly       `json:"hourly"`
	DailyUnits       DailyUnits   `json:"daily_units"`
	Daily            Daily        `json:"daily"`
	GenerationTimeMs float64      `json:"generationtime_ms"`
}

type CurrentUnits struct {
	Time                string `json:"time"`
	Temperature2m       string `json:"temperature_2m"`
	ApparentTemperature string `json:"apparent_temperature"`
	Precipitation       string `json:"precipitation"`
	WindSpeed10m        string `json:"wind_speed_10m"`
	SurfacePressure     string `json:"surface_pressure"`
}

type Current struct {
	Time                string  `json:"time"`
	Interval            int     `json:"interval"`
	Temperature2m       float64 `json:"temperature_2m"`
	RelativeHumidity2m  float64 `json:"relative_humidity_2m"`
	ApparentTemperature float64 `json:"apparent_temperature"`
	IsDay               int     `json:"is_day"`
	Precipitation       float64 `json:"precipitation"`
	Rain                float64 `json:"rain"`
	Showers             float64 `json:"showers"`
	Snowfall            float64 `json:"snowfall"`
	WeatherCode         int     `json:"weather_code"`
	CloudCover          float64 `json:"cloud_cover"`
	PressureMSL         float64 `json:"pressure_msl"`
	SurfacePressure     float64 `json:"surface_pressure"`
	WindSpeed10m        float64 `json:"wind_speed_10m"`
	WindDirection10m    float64 `json:"wind_direction_10m"`
	WindGusts10m        float64 `json:"wind_gusts_10m"`
}

type HourlyUnits struct {
	Time                string `json:"time"`
	Temperature2m       string `json:"temperature_2m"`
	ApparentTemperature string `json:"apparent_temperature"`
	Precipitation       string `json:"precipitation"`
}

type Hourly struct {
	Time                     []string  `json:"time"`
	Temperature2m            []float64 `json:"temperature_2m"`
	RelativeHumidity2m       []float64 `json:"relative_humidity_2m"`
	DewPoint2m               []float64 `json:"dew_point_2m"`
	ApparentTemperature      []float64 `json:"apparent_temperature"`
	PrecipitationProbability []float64 `json:"precipitation_probability"`
	Precipitation            []float64 `json:"precipitation"`
	Rain                     []float64 `json:"rain"`
	Showers                  []float64 `json:"showers"`
	Snowfall                 []float64 `json:"snowfall"`
	SnowDepth                []float64 `json:"snow_depth"`
	WeatherCode              []int     `json:"weather_code"`
	WindSpeed10m             []float64 `json:"wind_speed_10m"`
	Temperature80m           []float64 `json:"temperature_80m"`
}

type DailyUnits struct {
	Time                   string `json:"time"`
	WeatherCode            string `json:"weather_code"`
	ApparentTemperatureMax string `json:"apparent_temperature_max"`
	ApparentTemperatureMin string `json:"apparent_temperature_min"`
	RainSum                string `json:"rain_sum"`
}

type Daily struct {
	Time                   []string  `json:"time"`
	WeatherCode            []int     `json:"weather_code"`
	Temperature2mMax       []float64 `json:"temperature_2m_max"`
	Temperature2mMin       []float64 `json:"temperature_2m_min"`
	ApparentTemperatureMax []float64 `json:"apparent_temperature_max"`
	ApparentTemperatureMin []float64 `json:"apparent_temperature_min"`
	Sunrise                []string  `json:"sunrise"`
	Sunset                 []string  `json:"sunset"`
	DaylightDuration       []float64 `json:"daylight_duration"`
	SunshineDuration       []float64 `json:"sunshine_duration"`
	UVIndexMax             []float64 `json:"uv_index_max"`
	RainSum                []float64 `json:"rain_sum"`
}

// GeoOption is a selectable country, state or city
type GeoOption struct {
	Label string   `json:"label"`
	Value GeoValue `json:"value"`
}

// GeoValue carries the coordinates and hierarchical codes of a GeoOption.
// IsoCode is set for countries and states; CountryCode, StateCode and Name for cities.
type GeoValue struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	IsoCode     string  `json:"isoCode,omitempty"`
	CountryCode string  `json:"countryCode,omitempty"`
	StateCode   string  `json:"stateCode,omitempty"`
	Name        string  `json:"name,omitempty"`
}

// CityKey identifies a city within its country as "<stateCode>|<name>".
// Names repeat across states, so the name alone is not enough.
func (v GeoValue) CityKey() string {
	return v.StateCode + "|" + v.Name
}

// ParseCityKey splits a key built by CityKey. A key without a separator is
// treated as a bare name.
func ParseCityKey(key string) (name, stateCode string) {
	stateCode, name, found := strings.Cut(key, "|")
	if !found {
		return key, ""
	}
	return name, stateCode
}
