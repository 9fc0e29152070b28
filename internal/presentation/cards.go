package presentation

import (
	"strconv"
	"weatherai/internal/models"
	"weatherai/internal/weathercode"
)

// MobileBreakpoint is the viewport width below which charts shrink
const MobileBreakpoint = 768

type CurrentCard struct {
	City        string   `json:"city"`
	Country     string   `json:"country"`
	Temperature string   `json:"temperature"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Animation   string   `json:"animation"`
	Time        string   `json:"time"`
	Date        string   `json:"date"`
}

type DetailCard struct {
	Humidity        string `json:"humidity"`
	Precipitation   string `json:"precipitation"`
	Rain            string `json:"rain"`
	Snowfall        string `json:"snowfall"`
	WindSpeed       string `json:"windSpeed"`
	WindDirection   string `json:"windDirection"`
	SurfacePressure string `json:"surfacePressure"`
}

type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewCurrentCard builds the headline card for the picked city
func NewCurrentCard(current models.Current, table *weathercode.Table, country, city string) CurrentCard {
	description := table.Describe(current.WeatherCode)
	category := Categorize(description)

	card := CurrentCard{
		City:        city,
		Country:     country,
		Temperature: formatNumber(current.ApparentTemperature) + " °F",
		Description: description,
		Category:    category,
		Animation:   category.Animation(),
	}
	if t, ok := parseTimestamp(current.Time); ok {
		card.Time = t.Format("03:04 PM")
		card.Date = t.Format("January 2, 2006")
	}
	return card
}

// NewDetailCard formats the secondary current conditions
func NewDetailCard(current models.Current) DetailCard {
	return DetailCard{
		Humidity:        formatNumber(current.RelativeHumidity2m) + " %",
		Precipitation:   formatNumber(current.Precipitation) + " inches",
		Rain:            formatNumber(current.Rain) + " inches",
		Snowfall:        formatNumber(current.Snowfall) + " inches",
		WindSpeed:       formatNumber(current.WindSpeed10m) + " mph",
		WindDirection:   formatNumber(current.WindDirection10m) + " °",
		SurfacePressure: formatNumber(current.SurfacePressure) + " hPa",
	}
}

// ChartDimensions sizes both charts for a viewport width in pixels
func ChartDimensions(viewportWidth int) Dimensions {
	if viewportWidth < MobileBreakpoint {
		return Dimensions{Width: 300, Height: 200}
	}
	return Dimensions{Width: 600, Height: 300}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
